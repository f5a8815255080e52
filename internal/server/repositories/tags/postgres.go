// Package tags provides PostgreSQL-backed storage for per-user tags and
// note-tag links.
package tags

import (
	"context"
	"fmt"

	"github.com/mkuzmins/homeboard/internal/common"
	"github.com/mkuzmins/homeboard/internal/dbx"
	"github.com/mkuzmins/homeboard/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a tag into the user's namespace. Names are unique per user;
// a duplicate insert surfaces as a db error from the unique constraint.
func (r *PostgresRepository) Create(ctx context.Context, tag *models.Tag) (*models.Tag, error) {
	query := `
		INSERT INTO tags (user_id, name, color)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, tag.UserID, tag.Name, tag.Color).Scan(&tag.ID, &tag.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return tag, nil
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

// Update changes a tag's name and color. The user filter keeps one user from
// touching another user's tag.
func (r *PostgresRepository) Update(ctx context.Context, tagID string, userID string, name, color string) error {
	query := `UPDATE tags SET name = $3, color = $4 WHERE id = $1 AND user_id = $2`
	return r.exec(ctx, query, tagID, userID, name, color)
}

// Delete removes a tag. Links are removed via ON DELETE CASCADE.
func (r *PostgresRepository) Delete(ctx context.Context, tagID string, userID string) error {
	query := `DELETE FROM tags WHERE id = $1 AND user_id = $2`
	return r.exec(ctx, query, tagID, userID)
}

// ListByUser returns the user's tags sorted by name.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.Tag, error) {
	query := `SELECT id, user_id, name, color, created_at FROM tags WHERE user_id = $1 ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select tags: %w", err)
	}
	defer rows.Close()

	var result []*models.Tag
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.Color, &t.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListLinks returns all note-tag links involving the user's tags.
func (r *PostgresRepository) ListLinks(ctx context.Context, userID string) ([]*models.NoteTag, error) {
	query := `
		SELECT nt.note_id, nt.tag_id
		FROM note_tags nt JOIN tags t ON t.id = nt.tag_id
		WHERE t.user_id = $1
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select note tags: %w", err)
	}
	defer rows.Close()

	var result []*models.NoteTag
	for rows.Next() {
		var l models.NoteTag
		if err := rows.Scan(&l.NoteID, &l.TagID); err != nil {
			return nil, err
		}
		result = append(result, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// AddNoteLink attaches a tag to a note. The user filter ensures the tag
// belongs to the caller; linking an already-linked pair is a no-op.
func (r *PostgresRepository) AddNoteLink(ctx context.Context, noteID, tagID, userID string) error {
	query := `
		INSERT INTO note_tags (note_id, tag_id)
		SELECT $1, id FROM tags WHERE id = $2 AND user_id = $3
		ON CONFLICT DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, noteID, tagID, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// RemoveNoteLink detaches a tag from a note.
func (r *PostgresRepository) RemoveNoteLink(ctx context.Context, noteID, tagID, userID string) error {
	query := `
		DELETE FROM note_tags
		WHERE note_id = $1 AND tag_id = $2
			AND tag_id IN (SELECT id FROM tags WHERE user_id = $3)
	`
	return r.exec(ctx, query, noteID, tagID, userID)
}

// ReplaceNoteLinks rewrites the full tag set of a note. Meant to run inside a
// transaction together with DeleteOrphans.
func (r *PostgresRepository) ReplaceNoteLinks(ctx context.Context, noteID string, tagIDs []string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM note_tags WHERE note_id = $1`, noteID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	query := `INSERT INTO note_tags (note_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	for _, tagID := range tagIDs {
		if _, err := r.db.ExecContext(ctx, query, noteID, tagID); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

// DeleteOrphans removes the user's tags that no longer link to any note and
// returns their IDs.
func (r *PostgresRepository) DeleteOrphans(ctx context.Context, userID string) ([]string, error) {
	query := `
		DELETE FROM tags
		WHERE user_id = $1
			AND NOT EXISTS (SELECT 1 FROM note_tags nt WHERE nt.tag_id = tags.id)
		RETURNING id
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var removed []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		removed = append(removed, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return removed, nil
}
