package sessions

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Registry is the concurrent store of all live sessions keyed by id.
//
// The outer lock guards the id map; each entry carries its own mutex so
// mutations of independent sessions never contend. Within one id,
// Mutate callbacks run with at-most-one-writer semantics.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry

	maxSessions int // 0 means unlimited
	log         *slog.Logger
}

type entry struct {
	mu   sync.Mutex
	sess *Session
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithMaxSessions caps the number of concurrent sessions. Zero or
// negative means unlimited.
func WithMaxSessions(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.maxSessions = n
		}
	}
}

// WithRegistryLogger sets the slog logger. If not provided, logs are
// discarded.
func WithRegistryLogger(log *slog.Logger) RegistryOption {
	return func(r *Registry) { r.log = log }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		entries: make(map[string]*entry),
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create inserts a new session. The capacity check and the insert are a
// single atomic step so no transient over-limit state is observable.
func (r *Registry) Create(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check the global limit first so we fail fast under load.
	if r.maxSessions > 0 && len(r.entries) >= r.maxSessions {
		return fmt.Errorf("%w (%d active)", ErrCapacityExceeded, len(r.entries))
	}
	if _, exists := r.entries[s.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, s.ID())
	}
	r.entries[s.ID()] = &entry{sess: s}
	r.log.Debug("session.create", slog.String("session_id", s.ID()), slog.Int("targets", len(s.targets)))
	return nil
}

// Get returns a deep copy of the session for id, or nil if absent. The
// copy is taken under the entry lock, so readers never observe a
// half-applied Mutate and never race a concurrent writer. A successful
// lookup refreshes the session's last-access timestamp.
func (r *Registry) Get(id string) *Session {
	r.mu.RLock()
	e := r.entries[id]
	r.mu.RUnlock()
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess.touch()
	return e.sess.Clone()
}

// Mutate atomically applies fn to the session with exclusive access to
// its state, refreshes the last-access timestamp, and returns a deep
// copy of the post-mutation session, taken before the per-session lock
// is released. An error from fn propagates unchanged and skips the
// timestamp refresh; the per-session lock is released either way, panics
// included. Fails with ErrNotFound when the id is absent, including when
// a concurrent Remove wins the race.
func (r *Registry) Mutate(id string, fn func(*Session) error) (*Session, error) {
	r.mu.RLock()
	e := r.entries[id]
	r.mu.RUnlock()
	if e == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Re-check presence under the entry lock: Remove may have detached
	// this entry between the map read and the lock acquisition.
	r.mu.RLock()
	current := r.entries[id]
	r.mu.RUnlock()
	if current != e {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err := fn(e.sess); err != nil {
		return nil, err
	}
	e.sess.touch()
	return e.sess.Clone(), nil
}

// Remove atomically detaches and returns the session, or nil if absent.
// It waits for any in-flight Mutate on the same id to drain, so by the
// time Remove returns no callback is still writing to the session.
func (r *Registry) Remove(id string) *Session {
	r.mu.Lock()
	e := r.entries[id]
	if e != nil {
		delete(r.entries, id)
	}
	r.mu.Unlock()
	if e == nil {
		return nil
	}
	e.mu.Lock()
	e.mu.Unlock() //nolint:staticcheck // empty critical section drains in-flight writers
	r.log.Debug("session.remove", slog.String("session_id", id))
	return e.sess
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Snapshot returns deep copies of all live sessions for diagnostics.
// Mutating the result never affects registry state.
func (r *Registry) Snapshot() map[string]*Session {
	r.mu.RLock()
	entries := make(map[string]*entry, len(r.entries))
	for id, e := range r.entries {
		entries[id] = e
	}
	r.mu.RUnlock()

	out := make(map[string]*Session, len(entries))
	for id, e := range entries {
		e.mu.Lock()
		out[id] = e.sess.Clone()
		e.mu.Unlock()
	}
	return out
}
