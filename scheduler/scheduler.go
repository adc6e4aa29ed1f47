// Package scheduler fires registered callbacks at or after a deadline,
// handing the work to a shared pool so the timing loop itself never
// executes a callback.
//
// One background goroutine services all timers. It sleeps until the
// nearest deadline, wakes early when a nearer task arrives, and exits on
// Shutdown. Tasks are dispatched in non-decreasing fire-time order;
// equal deadlines dispatch in insertion order.
package scheduler

import (
	"container/heap"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrInvalidDelay is returned by Schedule for negative delays.
	ErrInvalidDelay = errors.New("delay must be non-negative")

	// ErrSchedulerClosed is returned by Schedule after Shutdown.
	ErrSchedulerClosed = errors.New("scheduler is shut down")
)

// Pool is the shared executor scheduled work is handed to. Submit may
// fail (e.g. the pool is closed mid-flight); the scheduler logs such
// failures and keeps servicing later timers.
type Pool interface {
	Submit(fn func()) error
}

type task struct {
	fireAt time.Time
	seq    uint64
	run    func()
}

// taskHeap orders by (fireAt, seq); seq is the FIFO tie-break for equal
// deadlines.
type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].fireAt.Equal(h[j].fireAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].fireAt.Before(h[j].fireAt)
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)   { *h = append(*h, x.(*task)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// Scheduler dispatches delayed callbacks via a shared Pool.
type Scheduler struct {
	pool Pool
	log  *slog.Logger

	mu      sync.Mutex
	queue   taskHeap
	nextSeq uint64
	closed  bool

	wake     chan struct{}
	done     chan struct{}
	loopDone chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the slog logger. If not provided, logs are discarded.
func WithLogger(log *slog.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// New creates a Scheduler and starts its background loop.
func New(pool Pool, opts ...Option) *Scheduler {
	s := &Scheduler{
		pool:     pool,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.loop()
	return s
}

// Schedule registers fn to run no earlier than delay from now and
// returns a monotonically increasing task id. Arguments are captured by
// the closure at registration time; the stored task is a zero-argument
// unit of work.
func (s *Scheduler) Schedule(delay time.Duration, fn func()) (uint64, error) {
	if delay < 0 {
		return 0, ErrInvalidDelay
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrSchedulerClosed
	}
	id := s.nextSeq
	s.nextSeq++
	heap.Push(&s.queue, &task{fireAt: time.Now().Add(delay), seq: id, run: fn})
	s.mu.Unlock()

	// Nudge the loop so it re-evaluates its wait target.
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return id, nil
}

// Shutdown stops the background loop and blocks until it has exited.
// Tasks still queued are never dispatched; work already handed to the
// pool is the pool's to finish. Safe to call repeatedly.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	s.mu.Unlock()
	<-s.loopDone
}

func (s *Scheduler) loop() {
	defer close(s.loopDone)

	for {
		now := time.Now()

		s.mu.Lock()
		var due []*task
		for len(s.queue) > 0 && !s.queue[0].fireAt.After(now) {
			due = append(due, heap.Pop(&s.queue).(*task))
		}
		var wait time.Duration
		hasNext := len(s.queue) > 0
		if hasNext {
			wait = time.Until(s.queue[0].fireAt)
		}
		s.mu.Unlock()

		// Hand off outside the lock. A failed submit must not stall the
		// loop or starve later timers.
		for _, t := range due {
			if err := s.pool.Submit(t.run); err != nil {
				s.log.Error("scheduler.dispatch.fail",
					slog.Uint64("task_id", t.seq),
					slog.String("err", err.Error()))
			}
		}

		if !hasNext {
			select {
			case <-s.done:
				return
			case <-s.wake:
			}
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-s.done:
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}
