// Package memo remembers recent skip decisions for a short time so a run
// does not repeat the same storage probes.
//
// A memo only caches the answer of the authoritative check. Callers set a
// verdict after that check said skip and forget it as soon as a check
// says rebuild or an output is committed. Losing the memo costs extra
// I/O and never changes an outcome.
package memo

import (
	"sync"
	"time"
)

// DefaultTTL is how long a verdict stays fresh
const DefaultTTL = 300 * time.Second

// Status is the recorded decision
type Status string

const (
	// StatusSkipped means the authoritative check said the output is up to date
	StatusSkipped Status = "skipped"
	// StatusUpToDate means a paginated source had no new pages
	StatusUpToDate Status = "skipped_up_to_date"
)

// Verdict is one remembered decision
type Verdict struct {
	Key    string
	Status Status
	At     time.Time
}

// Memo is a TTL bounded map of verdicts for one scope
type Memo struct {
	scope string
	ttl   time.Duration

	mu      sync.Mutex
	now     func() time.Time
	entries map[string]Verdict
}

// Option configures a Memo
type Option func(*Memo)

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(m *Memo) { m.now = now }
}

// New creates an empty memo for scope. A non-positive ttl uses DefaultTTL.
func New(scope string, ttl time.Duration, opts ...Option) *Memo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	m := &Memo{
		scope:   scope,
		ttl:     ttl,
		now:     time.Now,
		entries: map[string]Verdict{},
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Scope returns the memo's scope name
func (m *Memo) Scope() string {
	return m.scope
}

// Get returns a fresh verdict for key
func (m *Memo) Get(key string) (Verdict, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.entries[key]
	if !ok {
		return Verdict{}, false
	}

	if m.now().Sub(v.At) > m.ttl {
		delete(m.entries, key)
		return Verdict{}, false
	}

	return v, true
}

// Skipped returns a fresh skip verdict for key. Verdicts with any other
// status are ignored.
func (m *Memo) Skipped(key string) (Verdict, bool) {
	v, ok := m.Get(key)
	if !ok || (v.Status != StatusSkipped && v.Status != StatusUpToDate) {
		return Verdict{}, false
	}

	return v, true
}

// Set records a verdict for key
func (m *Memo) Set(key string, status Status) Verdict {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := Verdict{Key: key, Status: status, At: m.now()}
	m.entries[key] = v

	return v
}

// Forget drops any verdict for key
func (m *Memo) Forget(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// Registry hands out one memo per scope
type Registry struct {
	ttl  time.Duration
	opts []Option

	mu    sync.Mutex
	memos map[string]*Memo
}

// NewRegistry creates a registry whose memos share ttl
func NewRegistry(ttl time.Duration, opts ...Option) *Registry {
	return &Registry{ttl: ttl, opts: opts, memos: map[string]*Memo{}}
}

// For returns the memo for scope, creating it on first use
func (r *Registry) For(scope string) *Memo {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.memos[scope]
	if !ok {
		m = New(scope, r.ttl, r.opts...)
		r.memos[scope] = m
	}

	return m
}
