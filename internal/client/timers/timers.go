// Package timers manages countdown timers in client-local storage, in the
// shape the voice commands produce: "start a 10 minute timer called water".
package timers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkuzmins/homeboard/internal/client/models"
	"github.com/mkuzmins/homeboard/internal/client/notify"
	"github.com/mkuzmins/homeboard/internal/dbx"
)

// Repository persists timers.
type Repository struct {
	db dbx.DBTX
}

// NewRepository binds a repository to the given DBTX.
func NewRepository(db dbx.DBTX) *Repository {
	return &Repository{db: db}
}

// Create inserts a timer.
func (r *Repository) Create(ctx context.Context, t *models.Timer) error {
	query := `INSERT INTO timers (id, name, ends_at, duration_seconds, dismissed)
		VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.Name, t.EndsAt.Unix(), int64(t.Duration.Seconds()), boolToInt(t.Dismissed))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListActive returns timers not yet dismissed, soonest first.
func (r *Repository) ListActive(ctx context.Context) ([]models.Timer, error) {
	query := `SELECT id, name, ends_at, duration_seconds, dismissed FROM timers
		WHERE dismissed = 0 ORDER BY ends_at ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.Timer
	for rows.Next() {
		var t models.Timer
		var endsAt, durationSeconds, dismissed int64
		if err := rows.Scan(&t.ID, &t.Name, &endsAt, &durationSeconds, &dismissed); err != nil {
			return nil, err
		}
		t.EndsAt = time.Unix(endsAt, 0)
		t.Duration = time.Duration(durationSeconds) * time.Second
		t.Dismissed = dismissed != 0
		result = append(result, t)
	}
	return result, rows.Err()
}

// Dismiss marks a timer dismissed.
func (r *Repository) Dismiss(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE timers SET dismissed = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeleteDismissed removes timers dismissed before cutoff; old rows have no
// further use once the widget showed them.
func (r *Repository) DeleteDismissed(ctx context.Context, cutoff time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM timers WHERE dismissed = 1 AND ends_at < ?`, cutoff.Unix())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Service wraps the repository with the operations the voice commands and
// the timer widget use.
type Service struct {
	repo *Repository
	now  func() time.Time
}

// NewService constructs a timer service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Start creates a timer named name running for d.
func (s *Service) Start(ctx context.Context, name string, d time.Duration) (*models.Timer, error) {
	if name == "" {
		name = "Timer"
	}
	t := &models.Timer{
		ID:       uuid.NewString(),
		Name:     name,
		EndsAt:   s.now().Add(d),
		Duration: d,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Stop dismisses the named timer. With an empty name it dismisses the timer
// closest to (or past) its end, which is the one currently alerting when the
// user just says "stop".
func (s *Service) Stop(ctx context.Context, name string) error {
	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return err
	}
	if len(active) == 0 {
		return nil
	}

	if name == "" {
		return s.repo.Dismiss(ctx, active[0].ID)
	}

	name = strings.ToLower(name)
	for _, t := range active {
		if strings.ToLower(t.Name) == name {
			return s.repo.Dismiss(ctx, t.ID)
		}
	}
	return nil
}

// Due returns a notification message per expired, undismissed timer.
func (s *Service) Due(ctx context.Context) ([]notify.Message, error) {
	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var due []notify.Message
	for _, t := range active {
		if !t.Expired(now) {
			continue
		}
		due = append(due, notify.Message{
			Type: "timer",
			Name: t.Name,
			Due:  t.EndsAt.Format("2006-01-02"),
			Data: t,
		})
	}
	return due, nil
}
