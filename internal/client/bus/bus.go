// Package bus delivers change notifications for a principal over named
// channels and fans locally-originated events out to every principal who can
// see the affected note.
//
// Subscriptions are reference-counted: any number of listeners for one
// principal share a single underlying channel connection. The first listener
// opens it, the last one tears it down.
package bus

import (
	"context"
	"sync"
	"time"

	"github.com/mkuzmins/homeboard/internal/logging"
	"github.com/mkuzmins/homeboard/internal/sync/event"
)

// DefaultConnectTimeout bounds the transient per-recipient connection made
// during broadcast fan-out. A recipient not reachable within it is skipped.
const DefaultConnectTimeout = 5 * time.Second

// Conn is an open channel connection.
type Conn interface {
	// Send publishes ev to the channel's subscribers.
	Send(ctx context.Context, ev event.Event) error
	Close() error
}

// OpenOptions carries the callbacks a channel connection feeds.
type OpenOptions struct {
	// OnEvent receives every event delivered on the channel.
	OnEvent func(ev event.Event)
	// OnReconnect fires after the transport re-establishes a dropped
	// connection. Delivery has a gap; the caller must reconcile.
	OnReconnect func()
}

// Transport opens named channel connections. Open must not return before the
// subscription is acknowledged by the far side.
type Transport interface {
	Open(ctx context.Context, channel string, opts OpenOptions) (Conn, error)
}

// GrantResolver resolves the principals currently holding access to a note.
type GrantResolver interface {
	ListNoteRecipients(ctx context.Context, noteID string) ([]string, error)
}

// Bus is the per-session change bus for one local principal.
type Bus struct {
	principal      string
	transport      Transport
	grants         GrantResolver
	connectTimeout time.Duration
	logger         logging.Logger

	mu       sync.Mutex
	channels map[string]*sharedChannel
}

type listener struct {
	onEvent     func(event.Event)
	onReconnect func()
}

// sharedChannel is one open connection plus its registered listeners.
type sharedChannel struct {
	conn      Conn
	nextID    int
	listeners map[int]listener
}

// Option configures a Bus.
type Option func(*Bus)

// WithConnectTimeout overrides the fan-out connect timeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(b *Bus) { b.connectTimeout = d }
}

// New constructs a Bus for the given local principal.
func New(principal string, transport Transport, grants GrantResolver, logger logging.Logger, opts ...Option) *Bus {
	b := &Bus{
		principal:      principal,
		transport:      transport,
		grants:         grants,
		connectTimeout: DefaultConnectTimeout,
		logger:         logger.With("module", "changebus"),
		channels:       make(map[string]*sharedChannel),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a listener for principalID's channel and returns its
// unsubscribe function. The first listener opens the underlying connection;
// subsequent listeners reuse it. The last unsubscribe closes it, so a later
// resubscribe opens a fresh connection with no duplicate delivery.
func (b *Bus) Subscribe(ctx context.Context, principalID string, onEvent func(event.Event), onReconnect func()) (func(), error) {
	b.mu.Lock()

	ch, ok := b.channels[principalID]
	if !ok {
		ch = &sharedChannel{listeners: make(map[int]listener)}
		b.channels[principalID] = ch

		conn, err := b.transport.Open(ctx, principalID, OpenOptions{
			OnEvent:     func(ev event.Event) { b.dispatch(principalID, ev) },
			OnReconnect: func() { b.reconnected(principalID) },
		})
		if err != nil {
			delete(b.channels, principalID)
			b.mu.Unlock()
			return nil, err
		}
		ch.conn = conn
	}

	id := ch.nextID
	ch.nextID++
	ch.listeners[id] = listener{onEvent: onEvent, onReconnect: onReconnect}
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			current, ok := b.channels[principalID]
			if !ok || current != ch {
				b.mu.Unlock()
				return
			}
			delete(ch.listeners, id)
			last := len(ch.listeners) == 0
			if last {
				delete(b.channels, principalID)
			}
			b.mu.Unlock()

			if last {
				if err := ch.conn.Close(); err != nil {
					b.logger.Warn(context.Background(), "channel close failed", "channel", principalID, "error", err)
				}
			}
		})
	}
	return unsubscribe, nil
}

// Broadcast sends ev to the local principal's own channel (their other
// sessions) and, unless isPrivate, to every other principal holding access
// to ev.NoteID. Fan-out is independent per recipient: one unreachable
// recipient never blocks the others. Row-watch and the refresh fallback are
// the correctness guarantee; this path is best-effort.
func (b *Bus) Broadcast(ctx context.Context, ev event.Event, isPrivate bool) error {
	err := b.sendToChannel(ctx, b.principal, ev)

	if !isPrivate && ev.NoteID != "" {
		b.fanOut(ctx, ev)
	}
	return err
}

// sendToChannel reuses an already-open subscription connection when present,
// otherwise dials a transient one.
func (b *Bus) sendToChannel(ctx context.Context, channel string, ev event.Event) error {
	b.mu.Lock()
	ch, ok := b.channels[channel]
	b.mu.Unlock()

	if ok {
		return ch.conn.Send(ctx, ev)
	}

	dialCtx, cancel := context.WithTimeout(ctx, b.connectTimeout)
	defer cancel()

	conn, err := b.transport.Open(dialCtx, channel, OpenOptions{})
	if err != nil {
		return err
	}
	defer conn.Close()
	return conn.Send(dialCtx, ev)
}

func (b *Bus) fanOut(ctx context.Context, ev event.Event) {
	recipients, err := b.grants.ListNoteRecipients(ctx, ev.NoteID)
	if err != nil {
		b.logger.Warn(ctx, "fan-out recipient lookup failed", "note", ev.NoteID, "error", err)
		return
	}

	var wg sync.WaitGroup
	for _, recipient := range recipients {
		if recipient == b.principal {
			continue
		}
		wg.Add(1)
		go func(recipient string) {
			defer wg.Done()
			if err := b.sendToChannel(ctx, recipient, ev); err != nil {
				// Skipped recipients catch up via row-watch or polling.
				b.logger.Warn(ctx, "fan-out send skipped", "recipient", recipient, "error", err)
			}
		}(recipient)
	}
	wg.Wait()
}

func (b *Bus) dispatch(principalID string, ev event.Event) {
	for _, l := range b.snapshot(principalID) {
		if l.onEvent != nil {
			l.onEvent(ev)
		}
	}
}

func (b *Bus) reconnected(principalID string) {
	for _, l := range b.snapshot(principalID) {
		if l.onReconnect != nil {
			l.onReconnect()
		}
	}
}

func (b *Bus) snapshot(principalID string) []listener {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.channels[principalID]
	if !ok {
		return nil
	}
	out := make([]listener, 0, len(ch.listeners))
	for _, l := range ch.listeners {
		out = append(out, l)
	}
	return out
}
