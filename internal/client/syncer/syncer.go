// Package syncer is the policy layer between the change bus and the local
// store: it decides, per incoming event, which collections to refetch and
// whether the currently open note should be silently refreshed.
//
// Event handling is sequential within one client. Across clients there is no
// ordering guarantee; the system is eventually consistent and the periodic
// full refresh plus the reconnect refresh bridge any gap in delivery.
package syncer

import (
	"context"
	"time"

	"github.com/mkuzmins/homeboard/internal/logging"
	"github.com/mkuzmins/homeboard/internal/sync/event"
)

// DefaultPollInterval is the full-refresh fallback cadence. It is a
// correctness backstop against missed notifications, not the primary
// mechanism.
const DefaultPollInterval = 5 * time.Minute

// Store is the refreshable state the orchestrator drives.
type Store interface {
	RefreshNotes(ctx context.Context) error
	RefreshTrashed(ctx context.Context) error
	RefreshTags(ctx context.Context) error
	RefreshOpenNote(ctx context.Context) error
	// OpenNoteID is read per event; the subscription itself never tears
	// down when the user switches notes.
	OpenNoteID() string
}

// Pending answers whether a note id has an in-flight local write.
type Pending interface {
	Has(id string) bool
}

// Subscriber is the change-bus surface the orchestrator consumes.
type Subscriber interface {
	Subscribe(ctx context.Context, principalID string, onEvent func(event.Event), onReconnect func()) (func(), error)
}

// Syncer consumes change notifications for one principal.
type Syncer struct {
	principal    string
	bus          Subscriber
	store        Store
	pending      Pending
	pollInterval time.Duration
	logger       logging.Logger
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithPollInterval overrides the full-refresh fallback interval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Syncer) { s.pollInterval = d }
}

// New constructs a Syncer.
func New(principal string, bus Subscriber, store Store, pending Pending, logger logging.Logger, opts ...Option) *Syncer {
	s := &Syncer{
		principal:    principal,
		bus:          bus,
		store:        store,
		pending:      pending,
		pollInterval: DefaultPollInterval,
		logger:       logger.With("module", "syncer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run subscribes and processes events until ctx is cancelled. Events are
// funneled through one goroutine so no two refreshes for the same trigger
// interleave.
func (s *Syncer) Run(ctx context.Context) error {
	events := make(chan event.Event, 64)
	reconnects := make(chan struct{}, 1)

	unsubscribe, err := s.bus.Subscribe(ctx, s.principal,
		func(ev event.Event) {
			select {
			case events <- ev:
			default:
				// Queue full: degrade to the poll fallback rather than block
				// the transport's read loop.
				s.logger.Warn(ctx, "event queue full, dropping event", "kind", ev.Kind, "table", ev.Table)
			}
		},
		func() {
			select {
			case reconnects <- struct{}{}:
			default:
			}
		},
	)
	if err != nil {
		return err
	}
	defer unsubscribe()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			s.handle(ctx, ev)
		case <-reconnects:
			// Row-watch and broadcast both assume a continuous connection;
			// any gap requires a full catch-up fetch.
			s.fullRefresh(ctx)
		case <-ticker.C:
			s.fullRefresh(ctx)
		}
	}
}

// handle applies the per-event refresh policy. Unknown tables, kinds and
// sources all fall back to a full refresh; nothing is silently dropped.
func (s *Syncer) handle(ctx context.Context, ev event.Event) {
	switch ev.Source {
	case event.SourceRowWatch:
		s.handleRowWatch(ctx, ev)
	case event.SourceBroadcast:
		s.handleBroadcast(ctx, ev)
	default:
		s.fullRefresh(ctx)
	}
}

func (s *Syncer) handleRowWatch(ctx context.Context, ev event.Event) {
	switch ev.Table {
	case event.TableNotes:
		s.refreshNotes(ctx)
		s.refreshOpenUnlessPending(ctx)
		if ev.Op == event.OpDelete {
			s.refreshTrashed(ctx)
		}
	case event.TableNoteAccess:
		s.refreshNotes(ctx)
		s.refreshOpenUnlessPending(ctx)
	case event.TableTags:
		s.refreshTags(ctx)
	default:
		s.fullRefresh(ctx)
	}
}

func (s *Syncer) handleBroadcast(ctx context.Context, ev event.Event) {
	switch ev.Kind {
	case event.KindNoteChanged:
		s.refreshNotes(ctx)
		if open := s.store.OpenNoteID(); open != "" && open == ev.NoteID && !s.pending.Has(open) {
			s.refreshOpen(ctx)
		}
	case event.KindNoteCreated, event.KindNotesRefresh:
		s.refreshNotes(ctx)
	case event.KindNoteTrashed, event.KindNoteRestored, event.KindNoteDeleted:
		s.refreshNotes(ctx)
		s.refreshTrashed(ctx)
	case event.KindTagsRefresh:
		s.refreshTags(ctx)
	default:
		s.fullRefresh(ctx)
	}
}

// refreshOpenUnlessPending reselects the open note unless this client just
// wrote it: the optimistic state is already correct and a reselect could
// race with the in-flight write.
func (s *Syncer) refreshOpenUnlessPending(ctx context.Context) {
	open := s.store.OpenNoteID()
	if open == "" || s.pending.Has(open) {
		return
	}
	s.refreshOpen(ctx)
}

func (s *Syncer) fullRefresh(ctx context.Context) {
	s.refreshNotes(ctx)
	s.refreshTrashed(ctx)
	s.refreshTags(ctx)
}

// Any refetch failure is equivalent to "no update yet"; it never terminates
// the subscription loop.

func (s *Syncer) refreshNotes(ctx context.Context) {
	if err := s.store.RefreshNotes(ctx); err != nil {
		s.logger.Warn(ctx, "note refresh failed", "error", err)
	}
}

func (s *Syncer) refreshTrashed(ctx context.Context) {
	if err := s.store.RefreshTrashed(ctx); err != nil {
		s.logger.Warn(ctx, "trash refresh failed", "error", err)
	}
}

func (s *Syncer) refreshTags(ctx context.Context) {
	if err := s.store.RefreshTags(ctx); err != nil {
		s.logger.Warn(ctx, "tag refresh failed", "error", err)
	}
}

func (s *Syncer) refreshOpen(ctx context.Context) {
	if err := s.store.RefreshOpenNote(ctx); err != nil {
		s.logger.Warn(ctx, "open note refresh failed", "error", err)
	}
}
