package scheduler

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// inlinePool runs submitted work synchronously, preserving dispatch
// order for assertions.
type inlinePool struct{}

func (inlinePool) Submit(fn func()) error {
	fn()
	return nil
}

type failingPool struct{ err error }

func (p failingPool) Submit(func()) error { return p.err }

func TestScheduleNegativeDelay(t *testing.T) {
	s := New(inlinePool{})
	defer s.Shutdown()

	fired := make(chan struct{}, 1)
	_, err := s.Schedule(-time.Second, func() { fired <- struct{}{} })
	if !errors.Is(err, ErrInvalidDelay) {
		t.Fatalf("expected ErrInvalidDelay, got %v", err)
	}
	select {
	case <-fired:
		t.Fatal("rejected task fired")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatchOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(name string) func() {
		return func() {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	s := New(inlinePool{})
	defer s.Shutdown()

	base := 40 * time.Millisecond
	// Registration order deliberately scrambled; t2 before t2b at the
	// same deadline.
	if _, err := s.Schedule(3*base, record("t3")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Schedule(2*base, record("t2")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Schedule(2*base, record("t2b")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Schedule(base, record("t1")); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(order)
		mu.Unlock()
		if n == 4 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("tasks did not all fire; got %v", order)
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"t1", "t2", "t2b", "t3"}
	for i, name := range want {
		if order[i] != name {
			t.Fatalf("dispatch order %v, want %v", order, want)
		}
	}
}

func TestTaskIDsMonotonic(t *testing.T) {
	s := New(inlinePool{})
	defer s.Shutdown()

	var prev uint64
	for i := 0; i < 5; i++ {
		id, err := s.Schedule(time.Minute, func() {})
		if err != nil {
			t.Fatal(err)
		}
		if i > 0 && id <= prev {
			t.Fatalf("ids not monotonically increasing: %d after %d", id, prev)
		}
		prev = id
	}
}

func TestZeroDelayFiresOnce(t *testing.T) {
	fired := make(chan struct{}, 2)
	s := New(inlinePool{})
	defer s.Shutdown()

	if _, err := s.Schedule(0, func() { fired <- struct{}{} }); err != nil {
		t.Fatal(err)
	}
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("zero-delay task never fired")
	}
	select {
	case <-fired:
		t.Fatal("task fired twice")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDispatchFailureKeepsLoopAlive(t *testing.T) {
	s := New(failingPool{err: errors.New("pool saturated")})
	if _, err := s.Schedule(0, func() {}); err != nil {
		t.Fatal(err)
	}
	// Give the loop a beat to hit the failing submit, then prove it is
	// still accepting and servicing work.
	time.Sleep(50 * time.Millisecond)
	if _, err := s.Schedule(0, func() {}); err != nil {
		t.Fatalf("loop died after dispatch failure: %v", err)
	}
	s.Shutdown()
}

func TestShutdown(t *testing.T) {
	s := New(inlinePool{})
	fired := make(chan struct{}, 1)
	if _, err := s.Schedule(time.Hour, func() { fired <- struct{}{} }); err != nil {
		t.Fatal(err)
	}

	s.Shutdown()
	s.Shutdown() // idempotent

	if _, err := s.Schedule(0, func() {}); !errors.Is(err, ErrSchedulerClosed) {
		t.Fatalf("expected ErrSchedulerClosed, got %v", err)
	}
	select {
	case <-fired:
		t.Fatal("queued task dispatched after shutdown")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestShutdownWithoutTasks(t *testing.T) {
	s := New(inlinePool{})
	s.Shutdown()
}
