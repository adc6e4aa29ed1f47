package sessions

import (
	"fmt"
	"time"
)

// State identifies where a session is in its lifecycle.
type State string

const (
	// StateCollecting means at least one participant is still pending and
	// the session has not been force-completed.
	StateCollecting State = "collecting"

	// StateComplete means every participant submitted, or the session was
	// force-completed (typically by the expiry path).
	StateComplete State = "complete"
)

// Feedback is one participant's submission. One submission produces
// exactly one record.
type Feedback struct {
	ParticipantID string
	Sentiment     string
	Well          string
	Improve       string
	SubmittedAt   time.Time
}

// Text returns the free-text portion of the record for analysis.
func (f Feedback) Text() string {
	switch {
	case f.Well != "" && f.Improve != "":
		return f.Well + "\n" + f.Improve
	case f.Well != "":
		return f.Well
	default:
		return f.Improve
	}
}

// Session is one bounded feedback-collection round tied to a fixed
// participant list.
//
// Session carries no lock of its own. Cross-goroutine mutation must go
// through Registry.Mutate; everything the registry hands out past a
// Mutate callback is a deep copy, so shared read access never touches
// the stored instance.
type Session struct {
	id          string
	initiatorID string
	channelID   string
	reason      string
	targets     []string
	timeLimit   time.Duration // 0 means unlimited
	createdAt   time.Time
	lastAccess  time.Time

	pending   map[string]struct{}
	submitted map[string]struct{}
	feedback  []Feedback

	state   State
	summary string
}

// Option configures a Session at creation time.
type Option func(*Session)

// WithChannel records the channel the session was started from.
func WithChannel(channelID string) Option {
	return func(s *Session) { s.channelID = channelID }
}

// WithReason records the free-text topic of the round.
func WithReason(reason string) Option {
	return func(s *Session) { s.reason = reason }
}

// WithTimeLimit bounds the collection window. Zero or negative means
// unlimited.
func WithTimeLimit(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeLimit = d
		}
	}
}

// New creates a session for the given target participants. Duplicate ids
// in targets are collapsed, preserving first-seen order. A session with
// no targets is complete immediately.
func New(id, initiatorID string, targets []string, opts ...Option) *Session {
	now := time.Now()
	s := &Session{
		id:          id,
		initiatorID: initiatorID,
		createdAt:   now,
		lastAccess:  now,
		pending:     make(map[string]struct{}, len(targets)),
		submitted:   make(map[string]struct{}),
		state:       StateCollecting,
	}
	for _, t := range targets {
		if _, seen := s.pending[t]; seen {
			continue
		}
		s.targets = append(s.targets, t)
		s.pending[t] = struct{}{}
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.targets) == 0 {
		s.state = StateComplete
	}
	return s
}

// Submit records one participant's feedback and moves them from pending
// to submitted. It fails with ErrDuplicateSubmission if the participant
// already submitted, and with ErrNotAParticipant if the id was never a
// target or the session is already complete. A failed submit never
// mutates state.
func (s *Session) Submit(participantID string, fb Feedback) error {
	if _, done := s.submitted[participantID]; done {
		return fmt.Errorf("%w: %s", ErrDuplicateSubmission, participantID)
	}
	if s.state == StateComplete {
		// Pending is frozen once the session closed; late arrivals are
		// rejected rather than silently recorded.
		return fmt.Errorf("%w: %s", ErrNotAParticipant, participantID)
	}
	if _, ok := s.pending[participantID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotAParticipant, participantID)
	}

	fb.ParticipantID = participantID
	if fb.SubmittedAt.IsZero() {
		fb.SubmittedAt = time.Now()
	}
	s.feedback = append(s.feedback, fb)
	delete(s.pending, participantID)
	s.submitted[participantID] = struct{}{}
	if len(s.pending) == 0 {
		s.state = StateComplete
	}
	s.touch()
	return nil
}

// ForceComplete marks the session terminal regardless of pending
// participants, recording an optional summary. Idempotent.
func (s *Session) ForceComplete(summary string) {
	if s.state == StateComplete {
		return
	}
	s.state = StateComplete
	s.summary = summary
	s.touch()
}

// IsComplete reports whether the session reached its terminal state.
func (s *Session) IsComplete() bool { return s.state == StateComplete }

// State returns the session's lifecycle state.
func (s *Session) State() State { return s.state }

// TimeRemaining returns the time left until the session's deadline,
// clamped at zero. ok is false when the session has no time limit.
func (s *Session) TimeRemaining() (remaining time.Duration, ok bool) {
	if s.timeLimit == 0 {
		return 0, false
	}
	remaining = time.Until(s.createdAt.Add(s.timeLimit))
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

func (s *Session) ID() string                { return s.id }
func (s *Session) InitiatorID() string       { return s.initiatorID }
func (s *Session) ChannelID() string         { return s.channelID }
func (s *Session) Reason() string            { return s.reason }
func (s *Session) TimeLimit() time.Duration  { return s.timeLimit }
func (s *Session) CreatedAt() time.Time      { return s.createdAt }
func (s *Session) LastAccessedAt() time.Time { return s.lastAccess }
func (s *Session) Summary() string           { return s.summary }

// Targets returns the original participant list in creation order.
func (s *Session) Targets() []string {
	out := make([]string, len(s.targets))
	copy(out, s.targets)
	return out
}

// Pending returns participants who have not yet submitted, in target
// order.
func (s *Session) Pending() []string {
	return s.filterTargets(s.pending)
}

// Submitted returns participants who have submitted, in target order.
func (s *Session) Submitted() []string {
	return s.filterTargets(s.submitted)
}

// Feedback returns a copy of the accumulated records in submission order.
func (s *Session) Feedback() []Feedback {
	out := make([]Feedback, len(s.feedback))
	copy(out, s.feedback)
	return out
}

// Clone returns a deep copy, safe to hand to diagnostics or reporting
// without exposing live registry state.
func (s *Session) Clone() *Session {
	c := &Session{
		id:          s.id,
		initiatorID: s.initiatorID,
		channelID:   s.channelID,
		reason:      s.reason,
		timeLimit:   s.timeLimit,
		createdAt:   s.createdAt,
		lastAccess:  s.lastAccess,
		state:       s.state,
		summary:     s.summary,
		targets:     make([]string, len(s.targets)),
		pending:     make(map[string]struct{}, len(s.pending)),
		submitted:   make(map[string]struct{}, len(s.submitted)),
		feedback:    make([]Feedback, len(s.feedback)),
	}
	copy(c.targets, s.targets)
	copy(c.feedback, s.feedback)
	for k := range s.pending {
		c.pending[k] = struct{}{}
	}
	for k := range s.submitted {
		c.submitted[k] = struct{}{}
	}
	return c
}

func (s *Session) filterTargets(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for _, t := range s.targets {
		if _, ok := set[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

func (s *Session) touch() {
	s.lastAccess = time.Now()
}
