// Package workers provides the shared bounded goroutine pool that runs
// dispatched callbacks and mutation handlers. The scheduler and the HTTP
// layer both submit to one process-wide pool instead of spawning a
// goroutine per event.
package workers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// ErrPoolClosed is returned by Submit after Shutdown.
var ErrPoolClosed = errors.New("worker pool closed")

// Pool runs submitted functions on a fixed set of goroutines. A panic in
// a job is recovered and logged so one misbehaving callback cannot take
// a worker down.
type Pool struct {
	jobs chan func()
	log  *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the slog logger. If not provided, logs are discarded.
func WithLogger(log *slog.Logger) Option {
	return func(p *Pool) { p.log = log }
}

// New starts a pool of size workers. Sizes below one are raised to one.
func New(size int, opts ...Option) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		jobs: make(chan func(), size),
		log:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

// Submit queues fn for execution. It blocks while the queue is full and
// fails with ErrPoolClosed once Shutdown has begun.
func (p *Pool) Submit(fn func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.jobs <- fn
	return nil
}

// Shutdown stops accepting work and blocks until queued and in-flight
// jobs finish. Safe to call repeatedly.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for fn := range p.jobs {
		p.runJob(fn)
	}
}

func (p *Pool) runJob(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("worker.job.panic", slog.String("err", fmt.Sprint(r)))
		}
	}()
	fn()
}
