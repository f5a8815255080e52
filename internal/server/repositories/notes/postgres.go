// Package notes provides PostgreSQL-backed note persistence.
package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mkuzmins/homeboard/internal/common"
	"github.com/mkuzmins/homeboard/internal/dbx"
	"github.com/mkuzmins/homeboard/internal/server/models"
)

// PostgresRepository implements note storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const noteColumns = `n.id, n.owner_id, u.display_name, n.content, n.private, n.pinned,
	n.trashed_at, n.trashed_by, n.version, n.created_at, n.updated_at`

func scanNote(row interface{ Scan(...any) error }) (*models.Note, error) {
	var n models.Note
	err := row.Scan(&n.ID, &n.OwnerID, &n.OwnerName, &n.Content, &n.Private, &n.Pinned,
		&n.TrashedAt, &n.TrashedBy, &n.Version, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// Create inserts a new note and returns it with server-assigned fields filled in.
func (r *PostgresRepository) Create(ctx context.Context, note *models.Note) (*models.Note, error) {
	query := `
		INSERT INTO notes (owner_id, content, private, pinned)
		VALUES ($1, $2, $3, $4)
		RETURNING id, version, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, note.OwnerID, note.Content, note.Private, note.Pinned).
		Scan(&note.ID, &note.Version, &note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return note, nil
}

// GetByID fetches a single note. Returns common.ErrNotFound if no such note exists.
func (r *PostgresRepository) GetByID(ctx context.Context, noteID string) (*models.Note, error) {
	query := `
		SELECT ` + noteColumns + `
		FROM notes n JOIN users u ON u.id = n.owner_id
		WHERE n.id = $1
	`
	note, err := scanNote(r.db.QueryRowContext(ctx, query, noteID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return note, nil
}

// UpdateContent replaces the note body, bumps the version and the updated
// timestamp, and returns the refreshed row.
func (r *PostgresRepository) UpdateContent(ctx context.Context, noteID string, content string) (*models.Note, error) {
	query := `
		UPDATE notes SET content = $2, version = version + 1, updated_at = now()
		WHERE id = $1
		RETURNING version, updated_at
	`
	var version int64
	var updatedAt time.Time
	err := r.db.QueryRowContext(ctx, query, noteID, content).Scan(&version, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return r.GetByID(ctx, noteID)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// SetPinned toggles the pinned flag.
func (r *PostgresRepository) SetPinned(ctx context.Context, noteID string, pinned bool) error {
	query := `UPDATE notes SET pinned = $2, version = version + 1, updated_at = now() WHERE id = $1`
	return r.exec(ctx, query, noteID, pinned)
}

// SetPrivate toggles the private flag.
func (r *PostgresRepository) SetPrivate(ctx context.Context, noteID string, private bool) error {
	query := `UPDATE notes SET private = $2, version = version + 1, updated_at = now() WHERE id = $1`
	return r.exec(ctx, query, noteID, private)
}

// Trash marks the note trashed, recording who trashed it and when.
func (r *PostgresRepository) Trash(ctx context.Context, noteID string, userID string, at time.Time) error {
	query := `UPDATE notes SET trashed_at = $3, trashed_by = $2 WHERE id = $1 AND trashed_at IS NULL`
	return r.exec(ctx, query, noteID, userID, at)
}

// Restore clears the trashed markers.
func (r *PostgresRepository) Restore(ctx context.Context, noteID string) error {
	query := `UPDATE notes SET trashed_at = NULL, trashed_by = NULL WHERE id = $1 AND trashed_at IS NOT NULL`
	return r.exec(ctx, query, noteID)
}

// Delete removes the note row. Access grants and tag links go with it via
// ON DELETE CASCADE.
func (r *PostgresRepository) Delete(ctx context.Context, noteID string) error {
	query := `DELETE FROM notes WHERE id = $1`
	return r.exec(ctx, query, noteID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Note, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select notes: %w", err)
	}
	defer rows.Close()

	var result []*models.Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, note)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListAccessible returns all non-trashed notes the user can see: their own,
// plus shares that are not marked private by the owner.
func (r *PostgresRepository) ListAccessible(ctx context.Context, userID string) ([]*models.Note, error) {
	query := `
		SELECT ` + noteColumns + `
		FROM notes n
		JOIN users u ON u.id = n.owner_id
		JOIN note_access a ON a.note_id = n.id
		WHERE a.user_id = $1 AND n.trashed_at IS NULL
			AND (n.owner_id = $1 OR NOT n.private)
		ORDER BY n.pinned DESC, n.updated_at DESC
	`
	return r.list(ctx, query, userID)
}

// ListShared returns non-trashed notes shared with the user by someone else.
func (r *PostgresRepository) ListShared(ctx context.Context, userID string) ([]*models.Note, error) {
	query := `
		SELECT ` + noteColumns + `
		FROM notes n
		JOIN users u ON u.id = n.owner_id
		JOIN note_access a ON a.note_id = n.id
		WHERE a.user_id = $1 AND NOT a.is_owner AND n.trashed_at IS NULL AND NOT n.private
		ORDER BY n.updated_at DESC
	`
	return r.list(ctx, query, userID)
}

// ListTrashed returns the user's own trashed notes, most recently trashed first.
func (r *PostgresRepository) ListTrashed(ctx context.Context, userID string) ([]*models.Note, error) {
	query := `
		SELECT ` + noteColumns + `
		FROM notes n JOIN users u ON u.id = n.owner_id
		WHERE n.owner_id = $1 AND n.trashed_at IS NOT NULL
		ORDER BY n.trashed_at DESC
	`
	return r.list(ctx, query, userID)
}

// ListExpiredTrash returns notes trashed at or before the cutoff, for the
// retention sweep.
func (r *PostgresRepository) ListExpiredTrash(ctx context.Context, cutoff time.Time) ([]*models.Note, error) {
	query := `
		SELECT ` + noteColumns + `
		FROM notes n JOIN users u ON u.id = n.owner_id
		WHERE n.trashed_at IS NOT NULL AND n.trashed_at <= $1
	`
	return r.list(ctx, query, cutoff)
}
