// Package notify implements the periodic fetch-compare-notify pattern shared
// by the dashboard widgets: poll an external data source on an interval,
// evaluate a domain predicate, and fire a notification exactly once per
// rising edge of that predicate.
package notify

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/mkuzmins/homeboard/internal/logging"
)

// Message is the structured notification handed to the host surface.
// Name doubles as the dedup key in combination with the payload hash; Due is
// a date string ("2006-01-02") controlling when the message is actionable.
type Message struct {
	Type string `json:"type"`
	Name string `json:"name"`
	Due  string `json:"due"`
	Data any    `json:"data,omitempty"`
}

// Alert is one qualifying condition reported by a Source poll. Key is the
// logical identity (a route, an alert id); Payload is the content whose
// change should re-fire the notification even when Key is unchanged.
type Alert struct {
	Key     string
	Payload string
	Message Message
}

// Source produces the alerts whose predicate currently holds. The predicate
// is re-evaluated on every poll, never cached; an empty result means the
// predicate is false for every key.
type Source interface {
	Poll(ctx context.Context, now time.Time) ([]Alert, error)
}

// Notifier runs one Source on an interval and edge-triggers notifications.
type Notifier struct {
	source   Source
	sink     func(Message)
	interval time.Duration
	now      func() time.Time
	logger   logging.Logger

	mu        sync.Mutex
	active    map[string]uint64 // key -> payload hash while predicate holds
	dismissed map[string]string // key -> date string of the dismissal day
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) { n.now = now }
}

// New constructs a Notifier polling source every interval and delivering to
// sink.
func New(source Source, sink func(Message), interval time.Duration, logger logging.Logger, opts ...Option) *Notifier {
	n := &Notifier{
		source:    source,
		sink:      sink,
		interval:  interval,
		now:       time.Now,
		logger:    logger.With("module", "notify"),
		active:    make(map[string]uint64),
		dismissed: make(map[string]string),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Run polls until ctx is cancelled. The first poll happens immediately.
func (n *Notifier) Run(ctx context.Context) {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	n.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.poll(ctx)
		}
	}
}

// poll evaluates one fetch cycle. A fetch failure is retried on the next
// interval and never propagates.
func (n *Notifier) poll(ctx context.Context) {
	now := n.now()
	alerts, err := n.source.Poll(ctx, now)
	if err != nil {
		n.logger.Warn(ctx, "poll failed", "error", err)
		return
	}

	today := now.Format("2006-01-02")
	seen := make(map[string]struct{}, len(alerts))
	var fire []Message

	n.mu.Lock()
	for _, alert := range alerts {
		seen[alert.Key] = struct{}{}

		// A dismissal holds for the rest of its day.
		if day, ok := n.dismissed[alert.Key]; ok {
			if day == today {
				n.active[alert.Key] = ContentHash(alert.Payload)
				continue
			}
			delete(n.dismissed, alert.Key)
		}

		h := ContentHash(alert.Payload)
		prev, wasActive := n.active[alert.Key]
		n.active[alert.Key] = h

		// Rising edge, or materially changed content for a still-active key
		// (a revised alert is a new occurrence).
		if !wasActive || prev != h {
			fire = append(fire, alert.Message)
		}
	}

	// Keys whose predicate went false reset; the next true poll re-fires.
	for key := range n.active {
		if _, ok := seen[key]; !ok {
			delete(n.active, key)
		}
	}
	n.mu.Unlock()

	for _, msg := range fire {
		n.sink(msg)
	}
}

// Dismiss suppresses re-notification for key until the day changes.
func (n *Notifier) Dismiss(key string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dismissed[key] = n.now().Format("2006-01-02")
}

// ContentHash is a lightweight non-cryptographic hash over an alert payload.
// Collisions are low-stakes: worst case is a duplicate or missed
// re-notification.
func ContentHash(payload string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(payload))
	return h.Sum64()
}
