package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mkuzmins/homeboard/internal/dbx"
	"github.com/mkuzmins/homeboard/internal/logging"
)

// DefaultSweepInterval is how often due events are re-checked.
const DefaultSweepInterval = time.Minute

// DueEvent is a persistent notification event registered by a widget or an
// embedded app: "the car registration is due on this date". Events are
// keyed by (Type, Name) and live in client-local storage.
type DueEvent struct {
	ID             int64
	Type           string
	Name           string
	DueDate        string // "2006-01-02"
	Data           any
	DismissedUntil string // RFC 3339, "" when not dismissed
}

// EventStore persists due events and their dismissals.
type EventStore struct {
	db dbx.DBTX
}

// NewEventStore binds a store to the given DBTX.
func NewEventStore(db dbx.DBTX) *EventStore {
	return &EventStore{db: db}
}

// Add upserts an event by (type, name). When the due date changes the
// dismissal is cleared, so recurring items come back after being logged
// again.
func (s *EventStore) Add(ctx context.Context, eventType, name, dueDate string, data any) (int64, error) {
	// Normalize "2026-02-03T10:00:00" to the date part.
	if i := strings.IndexByte(dueDate, 'T'); i >= 0 {
		dueDate = dueDate[:i]
	}

	var payload *string
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return 0, fmt.Errorf("event data marshal error: %w", err)
		}
		str := string(b)
		payload = &str
	}

	var existingID int64
	var existingDue string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, due_date FROM events WHERE type = ? AND name = ?`, eventType, name).
		Scan(&existingID, &existingDue)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("db error: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO events (type, name, due_date, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (type, name) DO UPDATE SET
			due_date = excluded.due_date,
			data = excluded.data
		RETURNING id`,
		eventType, name, dueDate, payload).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	if existingID != 0 && existingDue != dueDate {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM event_dismissals WHERE event_id = ?`, id); err != nil {
			return 0, fmt.Errorf("db error: %w", err)
		}
	}
	return id, nil
}

// List returns all events, soonest due first.
func (s *EventStore) List(ctx context.Context) ([]DueEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.type, e.name, e.due_date, e.data, COALESCE(d.dismissed_until, '')
		FROM events e
		LEFT JOIN event_dismissals d ON e.id = d.event_id
		ORDER BY e.due_date ASC`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []DueEvent
	for rows.Next() {
		var e DueEvent
		var data sql.NullString
		if err := rows.Scan(&e.ID, &e.Type, &e.Name, &e.DueDate, &data, &e.DismissedUntil); err != nil {
			return nil, err
		}
		if data.Valid && data.String != "" {
			var v any
			if err := json.Unmarshal([]byte(data.String), &v); err == nil {
				e.Data = v
			}
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// Delete removes an event.
func (s *EventStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM event_dismissals WHERE event_id = ?`, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Dismiss suppresses the event until the given instant.
func (s *EventStore) Dismiss(ctx context.Context, id int64, until time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO event_dismissals (event_id, dismissed_until) VALUES (?, ?)
		ON CONFLICT (event_id) DO UPDATE SET dismissed_until = excluded.dismissed_until`,
		id, until.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Due returns a message per event due now: overdue, due today, or due
// tomorrow, skipping unexpired dismissals.
func (s *EventStore) Due(ctx context.Context, now time.Time) ([]Message, error) {
	events, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	tomorrow := now.AddDate(0, 0, 1).Format("2006-01-02")

	var due []Message
	for _, e := range events {
		if e.DismissedUntil != "" {
			until, err := time.Parse(time.RFC3339, e.DismissedUntil)
			if err == nil && now.Before(until) {
				continue
			}
			// An unparseable dismissal does not suppress the notification.
		}
		if e.DueDate > tomorrow {
			continue
		}
		due = append(due, Message{
			Type: e.Type,
			Name: e.Name,
			Due:  e.DueDate,
			Data: e.Data,
		})
	}
	return due, nil
}

// Sweeper periodically pushes due events to the notification sink.
type Sweeper struct {
	store    *EventStore
	sink     func(Message)
	interval time.Duration
	now      func() time.Time
	logger   logging.Logger
}

// NewSweeper constructs a Sweeper over store.
func NewSweeper(store *EventStore, sink func(Message), logger logging.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		sink:     sink,
		interval: DefaultSweepInterval,
		now:      time.Now,
		logger:   logger.With("module", "event_sweeper"),
	}
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	due, err := s.store.Due(ctx, s.now())
	if err != nil {
		s.logger.Warn(ctx, "due event check failed", "error", err)
		return
	}
	for _, msg := range due {
		s.sink(msg)
	}
}
