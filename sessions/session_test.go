package sessions

import (
	"errors"
	"testing"
	"time"
)

func TestSubmitFlow(t *testing.T) {
	s := New("sess-1", "UINIT", []string{"U1", "U2"},
		WithChannel("C001"), WithTimeLimit(10*time.Minute))

	if got := s.Pending(); len(got) != 2 {
		t.Fatalf("expected 2 pending, got %v", got)
	}
	if s.IsComplete() {
		t.Fatal("fresh session must not be complete")
	}

	if err := s.Submit("U1", Feedback{Well: "good pace"}); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if got := s.Pending(); len(got) != 1 || got[0] != "U2" {
		t.Fatalf("expected pending [U2], got %v", got)
	}
	if got := s.Submitted(); len(got) != 1 || got[0] != "U1" {
		t.Fatalf("expected submitted [U1], got %v", got)
	}
	if s.IsComplete() {
		t.Fatal("session complete with one participant pending")
	}

	if err := s.Submit("U2", Feedback{Improve: "longer breaks"}); err != nil {
		t.Fatalf("second submit failed: %v", err)
	}
	if !s.IsComplete() {
		t.Fatal("session should complete when last pending participant submits")
	}
	if s.State() != StateComplete {
		t.Fatalf("expected state %q, got %q", StateComplete, s.State())
	}
	if got := s.Feedback(); len(got) != 2 {
		t.Fatalf("expected 2 feedback records, got %d", len(got))
	}
}

func TestSubmitDuplicate(t *testing.T) {
	s := New("sess-1", "UINIT", []string{"U1", "U2"})
	if err := s.Submit("U1", Feedback{Well: "x"}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	err := s.Submit("U1", Feedback{Well: "again"})
	if !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
	}
	// Failed submit must not mutate state.
	if len(s.Feedback()) != 1 || len(s.Pending()) != 1 || len(s.Submitted()) != 1 {
		t.Fatal("duplicate submit mutated session state")
	}
}

func TestSubmitNotAParticipant(t *testing.T) {
	s := New("sess-1", "UINIT", []string{"U1"})
	err := s.Submit("UX", Feedback{Well: "hi"})
	if !errors.Is(err, ErrNotAParticipant) {
		t.Fatalf("expected ErrNotAParticipant, got %v", err)
	}
	if len(s.Feedback()) != 0 {
		t.Fatal("rejected submit appended feedback")
	}
}

func TestInvariantPartition(t *testing.T) {
	targets := []string{"U1", "U2", "U3"}
	s := New("sess-1", "UINIT", targets)
	check := func() {
		t.Helper()
		seen := make(map[string]int)
		for _, u := range s.Pending() {
			seen[u]++
		}
		for _, u := range s.Submitted() {
			seen[u]++
		}
		if len(seen) != len(targets) {
			t.Fatalf("pending ∪ submitted != targets: %v", seen)
		}
		for u, n := range seen {
			if n != 1 {
				t.Fatalf("participant %s appears %d times across pending/submitted", u, n)
			}
		}
	}
	check()
	for _, u := range targets {
		if err := s.Submit(u, Feedback{Well: "ok"}); err != nil {
			t.Fatalf("submit %s: %v", u, err)
		}
		check()
	}
}

func TestZeroTargetsCompleteImmediately(t *testing.T) {
	s := New("sess-1", "UINIT", nil)
	if !s.IsComplete() {
		t.Fatal("zero-target session must be complete at creation")
	}
}

func TestDuplicateTargetsCollapsed(t *testing.T) {
	s := New("sess-1", "UINIT", []string{"U1", "U2", "U1"})
	if got := s.Targets(); len(got) != 2 {
		t.Fatalf("expected deduplicated targets, got %v", got)
	}
}

func TestForceCompleteFreezesPending(t *testing.T) {
	s := New("sess-1", "UINIT", []string{"U1", "U2"})
	if err := s.Submit("U1", Feedback{Well: "x"}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	s.ForceComplete("expired with partial data")
	if !s.IsComplete() {
		t.Fatal("force-complete did not complete the session")
	}
	if s.Summary() != "expired with partial data" {
		t.Fatalf("unexpected summary %q", s.Summary())
	}

	// Idempotent; the first summary wins.
	s.ForceComplete("second call")
	if s.Summary() != "expired with partial data" {
		t.Fatal("second ForceComplete overwrote summary")
	}

	// A still-pending participant racing the expiry is rejected and
	// nothing mutates.
	err := s.Submit("U2", Feedback{Well: "late"})
	if !errors.Is(err, ErrNotAParticipant) {
		t.Fatalf("expected ErrNotAParticipant after force-complete, got %v", err)
	}
	// A prior submitter keeps the duplicate classification.
	err = s.Submit("U1", Feedback{Well: "late dup"})
	if !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("expected ErrDuplicateSubmission after force-complete, got %v", err)
	}
	if len(s.Pending()) != 1 || len(s.Feedback()) != 1 {
		t.Fatal("post-completion submit mutated state")
	}
}

func TestTimeRemaining(t *testing.T) {
	s := New("sess-1", "UINIT", []string{"U1"}, WithTimeLimit(time.Hour))
	rem, ok := s.TimeRemaining()
	if !ok {
		t.Fatal("expected a bounded session")
	}
	if rem <= 0 || rem > time.Hour {
		t.Fatalf("remaining out of range: %v", rem)
	}

	unbounded := New("sess-2", "UINIT", []string{"U1"})
	if _, ok := unbounded.TimeRemaining(); ok {
		t.Fatal("expected unlimited session to report no deadline")
	}

	expired := New("sess-3", "UINIT", []string{"U1"}, WithTimeLimit(time.Nanosecond))
	time.Sleep(time.Millisecond)
	rem, ok = expired.TimeRemaining()
	if !ok || rem != 0 {
		t.Fatalf("expected clamped zero remaining, got %v ok=%v", rem, ok)
	}
}

func TestCloneIsolation(t *testing.T) {
	s := New("sess-1", "UINIT", []string{"U1", "U2"}, WithReason("retro"))
	if err := s.Submit("U1", Feedback{Well: "x"}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	c := s.Clone()
	if err := c.Submit("U2", Feedback{Well: "y"}); err != nil {
		t.Fatalf("clone submit failed: %v", err)
	}
	if s.IsComplete() {
		t.Fatal("mutating a clone leaked into the original")
	}
	if c.Reason() != "retro" || len(c.Feedback()) != 2 {
		t.Fatal("clone missing copied fields")
	}
}
