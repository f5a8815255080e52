// Package pending tracks short-lived write-intent markers keyed by note id.
// The marker answers one question: did this process itself write the note
// within the last couple of seconds? If yes, a change notification arriving
// for that note is this client's own echo and must not trigger a defensive
// reselect that could stomp the in-flight write.
package pending

import (
	"sync"
	"time"
)

// DefaultTTL is how long a mark suppresses refreshes for its note.
const DefaultTTL = 2000 * time.Millisecond

// Tracker is an in-memory, process-local suppression window per note id.
// Construct one per application session; there is no persistence.
type Tracker struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	marks map[string]time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithTTL overrides the suppression window.
func WithTTL(ttl time.Duration) Option {
	return func(t *Tracker) { t.ttl = ttl }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New returns an empty Tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		ttl:   DefaultTTL,
		now:   time.Now,
		marks: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Mark records "now" against id and schedules cleanup after the TTL. The
// cleanup is conditional: if a newer Mark for the same id superseded this
// one, the stale timer firing is a no-op.
func (t *Tracker) Mark(id string) {
	t.mu.Lock()
	stamp := t.now()
	t.marks[id] = stamp
	t.mu.Unlock()

	time.AfterFunc(t.ttl, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if current, ok := t.marks[id]; ok && current.Equal(stamp) {
			delete(t.marks, id)
		}
	})
}

// Has reports whether a mark exists for id and less than the TTL has
// elapsed. The timestamp comparison, not the cleanup timer, is the source of
// truth, so an injected clock works without waiting.
func (t *Tracker) Has(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	stamp, ok := t.marks[id]
	if !ok {
		return false
	}
	return t.now().Sub(stamp) < t.ttl
}
