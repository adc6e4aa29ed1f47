// Package feedback wires the session lifecycle core to the chat
// platform and the reporting pipeline. It owns session creation,
// submission handling, and the scheduled expiry and reminder hooks.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/pulsebot/pulsecheck/chat"
	"github.com/pulsebot/pulsecheck/internal/logctx"
	"github.com/pulsebot/pulsecheck/reporting"
	"github.com/pulsebot/pulsecheck/scheduler"
	"github.com/pulsebot/pulsecheck/sessions"
	"github.com/pulsebot/pulsecheck/workers"
)

// ErrNoParticipants is returned by Start when the resolved target list
// is empty.
var ErrNoParticipants = errors.New("no participants to invite")

// Service coordinates the feedback round lifecycle. All dependencies
// are injected; the service holds no hidden globals.
type Service struct {
	registry  *sessions.Registry
	scheduler *scheduler.Scheduler
	pool      *workers.Pool
	chat      chat.Client
	reports   *reporting.Builder
	log       *slog.Logger

	defaultDuration time.Duration
	reminderLead    time.Duration
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithDefaultDuration sets the session length used when a command names
// none. Defaults to five minutes.
func WithDefaultDuration(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.defaultDuration = d
		}
	}
}

// WithReminderLead sets how long before expiry pending participants are
// reminded. Defaults to one minute; reminders are skipped entirely for
// sessions shorter than the lead.
func WithReminderLead(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.reminderLead = d
		}
	}
}

// WithServiceLogger sets the slog logger. If not provided, logs are
// discarded.
func WithServiceLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) { s.log = log }
}

// NewService creates a Service.
func NewService(reg *sessions.Registry, sched *scheduler.Scheduler, pool *workers.Pool, chatClient chat.Client, reports *reporting.Builder, opts ...ServiceOption) *Service {
	s := &Service{
		registry:        reg,
		scheduler:       sched,
		pool:            pool,
		chat:            chatClient,
		reports:         reports,
		log:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		defaultDuration: 5 * time.Minute,
		reminderLead:    time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry exposes the session registry for diagnostics handlers.
func (s *Service) Registry() *sessions.Registry { return s.registry }

// Dispatch hands fn to the shared worker pool.
func (s *Service) Dispatch(fn func()) error { return s.pool.Submit(fn) }

// StartParams describes one inbound session-creation request.
type StartParams struct {
	// SessionID is optional; a uuid is generated when empty.
	SessionID   string
	InitiatorID string
	ChannelID   string
	Command     Command
}

// Start resolves the target participants, registers the session,
// invites everyone, and arms the expiry and reminder timers. Invitation
// failures are logged but do not abort the session.
func (s *Service) Start(ctx context.Context, p StartParams) (*sessions.Session, error) {
	var targets []string
	var err error
	if p.Command.ChannelWide {
		targets, err = s.chat.ChannelMembers(ctx, p.ChannelID)
		if err != nil {
			return nil, fmt.Errorf("resolve channel members: %w", err)
		}
	} else {
		targets, err = s.chat.GroupMembers(ctx, p.Command.GroupID)
		if err != nil {
			return nil, fmt.Errorf("resolve group members: %w", err)
		}
	}
	if len(targets) == 0 {
		return nil, ErrNoParticipants
	}

	duration := s.defaultDuration
	if p.Command.Minutes > 0 {
		duration = time.Duration(p.Command.Minutes) * time.Minute
	}

	id := p.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	sess := sessions.New(id, p.InitiatorID, targets,
		sessions.WithChannel(p.ChannelID),
		sessions.WithReason(p.Command.Reason),
		sessions.WithTimeLimit(duration),
	)
	if err := s.registry.Create(sess); err != nil {
		return nil, err
	}
	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{
		SessionID:   id,
		InitiatorID: p.InitiatorID,
		State:       string(sess.State()),
	})

	s.invite(ctx, sess)

	// Expiry and reminder hooks carry only the session id. The fired
	// callback re-checks existence through the registry, so a stale
	// timer for an already-finished session is a harmless no-op.
	if _, err := s.scheduler.Schedule(duration, func() { s.expire(id) }); err != nil {
		s.log.ErrorContext(ctx, "session.expiry.schedule.fail",
			slog.String("session_id", id), slog.String("err", err.Error()))
	}
	if duration > s.reminderLead {
		if _, err := s.scheduler.Schedule(duration-s.reminderLead, func() { s.remind(id) }); err != nil {
			s.log.ErrorContext(ctx, "session.reminder.schedule.fail",
				slog.String("session_id", id), slog.String("err", err.Error()))
		}
	}

	s.log.InfoContext(ctx, "session.start",
		slog.String("session_id", id),
		slog.String("initiator", p.InitiatorID),
		slog.Int("targets", len(targets)),
		slog.Duration("duration", duration))
	return sess, nil
}

// Submission is one participant's form payload.
type Submission struct {
	Sentiment string
	Well      string
	Improve   string
}

// SubmitFeedback records one submission through the registry's atomic
// mutation. When the submission completes the session, the report
// pipeline runs and the initiator is notified before the session leaves
// the registry.
func (s *Service) SubmitFeedback(ctx context.Context, sessionID, userID string, sub Submission) (*sessions.Session, error) {
	sess, err := s.registry.Mutate(sessionID, func(sess *sessions.Session) error {
		return sess.Submit(userID, sessions.Feedback{
			Sentiment: sub.Sentiment,
			Well:      sub.Well,
			Improve:   sub.Improve,
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "feedback.received",
		slog.String("session_id", sessionID), slog.String("user_id", userID))

	// Completion is observed by polling after the mutation, not pushed
	// from inside it.
	if sess.IsComplete() {
		s.finish(ctx, sessionID, "All participants have submitted feedback")
	}
	return sess, nil
}

// OpenForm validates that userID may still submit to sessionID and
// opens the feedback form. Stale or duplicate clicks produce an
// ephemeral notice instead of an error.
func (s *Service) OpenForm(ctx context.Context, sessionID, userID, channelID, triggerID string) error {
	sess := s.registry.Get(sessionID)
	if sess == nil {
		return s.chat.PostEphemeral(ctx, channelID, userID,
			"This feedback session is no longer active.")
	}
	if !slices.Contains(sess.Pending(), userID) {
		return s.chat.PostEphemeral(ctx, channelID, userID,
			"You already submitted feedback for this session. Thanks!")
	}
	return s.chat.OpenForm(ctx, triggerID, sessionID)
}

// finish removes a completed session, posts the report, and notifies
// the initiator.
func (s *Service) finish(ctx context.Context, sessionID, note string) {
	sess := s.registry.Remove(sessionID)
	if sess == nil {
		// Lost the race to the expiry hook; it will report instead.
		return
	}
	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{
		SessionID:   sessionID,
		InitiatorID: sess.InitiatorID(),
		State:       string(sess.State()),
	})
	s.log.InfoContext(ctx, "session.done")
	s.postReport(ctx, sess)

	if err := s.chat.PostMessage(ctx, sess.InitiatorID(),
		fmt.Sprintf("%s for session *%s*. The report is on its way!", note, sessionID)); err != nil {
		s.log.WarnContext(ctx, "session.notify.fail",
			slog.String("session_id", sessionID), slog.String("err", err.Error()))
	}
}

// expire is the scheduled expiry hook. It removes the session and posts
// a partial report when any feedback was collected.
func (s *Service) expire(sessionID string) {
	ctx := context.Background()
	sess := s.registry.Remove(sessionID)
	if sess == nil {
		s.log.Debug("session.expire.stale", slog.String("session_id", sessionID))
		return
	}
	sess.ForceComplete("time limit reached")
	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{
		SessionID:   sessionID,
		InitiatorID: sess.InitiatorID(),
		State:       string(sess.State()),
	})
	s.log.InfoContext(ctx, "session.expired",
		slog.Int("feedback_items", len(sess.Feedback())))

	note := fmt.Sprintf("Your feedback session *%s* has reached its time limit and is now closed.", sessionID)
	if len(sess.Feedback()) > 0 {
		s.postReport(ctx, sess)
		note += " Partial feedback report posted."
	}
	if err := s.chat.PostMessage(ctx, sess.InitiatorID(), note); err != nil {
		s.log.WarnContext(ctx, "session.expiry.dm.fail",
			slog.String("session_id", sessionID), slog.String("err", err.Error()))
	}
}

// remind is the scheduled reminder hook: DM every still-pending
// participant shortly before expiry. Skipped when the session is gone
// or already complete.
func (s *Service) remind(sessionID string) {
	ctx := context.Background()
	sess := s.registry.Get(sessionID)
	if sess == nil || sess.IsComplete() {
		s.log.Debug("session.reminder.skip", slog.String("session_id", sessionID))
		return
	}
	pending := sess.Pending()
	failures := 0
	for _, userID := range pending {
		text := fmt.Sprintf("⏰ Friendly reminder: time is almost up to submit feedback for session `%s`. Please open the form and send your input!", sessionID)
		if err := s.chat.PostMessage(ctx, userID, text); err != nil {
			failures++
			s.log.WarnContext(ctx, "session.reminder.dm.fail",
				slog.String("session_id", sessionID),
				slog.String("user_id", userID),
				slog.String("err", err.Error()))
		}
	}
	s.log.InfoContext(ctx, "session.reminder.sent",
		slog.String("session_id", sessionID),
		slog.Int("pending", len(pending)),
		slog.Int("failures", failures))
}

func (s *Service) invite(ctx context.Context, sess *sessions.Session) {
	text := fmt.Sprintf("You have been invited to provide feedback for session `%s`.", sess.ID())
	if reason := sess.Reason(); reason != "" {
		text = fmt.Sprintf("You have been invited to provide feedback on *%s* (session `%s`).", reason, sess.ID())
	}
	failures := 0
	for _, userID := range sess.Targets() {
		if err := s.chat.PostMessage(ctx, userID, text); err != nil {
			failures++
			s.log.WarnContext(ctx, "session.invite.fail",
				slog.String("session_id", sess.ID()),
				slog.String("user_id", userID),
				slog.String("err", err.Error()))
		}
	}
	if failures > 0 {
		s.log.WarnContext(ctx, "session.invite.partial",
			slog.String("session_id", sess.ID()), slog.Int("failures", failures))
	}
}

func (s *Service) postReport(ctx context.Context, sess *sessions.Session) {
	report := s.reports.Build(ctx, sess)
	target := sess.ChannelID()
	if target == "" {
		target = sess.InitiatorID()
	}
	if err := s.chat.PostMessage(ctx, target, reporting.Render(report, s.reports.Limits)); err != nil {
		s.log.ErrorContext(ctx, "report.post.fail",
			slog.String("session_id", sess.ID()), slog.String("err", err.Error()))
	}
}
