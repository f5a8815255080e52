// Package noteaccess provides PostgreSQL-backed storage for note access
// grants.
package noteaccess

import (
	"context"
	"database/sql"
	"errors"
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

// Grant inserts an access grant. Granting to a user who already holds access
// returns common.ErrAlreadyShared.
func (r *PostgresRepository) Grant(ctx context.Context, grant *models.NoteAccess) error {
	query := `
		INSERT INTO note_access (note_id, user_id, is_owner, granted_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (note_id, user_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, grant.NoteID, grant.UserID, grant.IsOwner, grant.GrantedBy)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrAlreadyShared
	}
	return nil
}

// Revoke removes a non-owner grant. The owner grant cannot be revoked.
func (r *PostgresRepository) Revoke(ctx context.Context, noteID string, userID string) error {
	query := `DELETE FROM note_access WHERE note_id = $1 AND user_id = $2 AND NOT is_owner`
	res, err := r.db.ExecContext(ctx, query, noteID, userID)
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

// Get fetches a single grant. Returns common.ErrNotFound when the user holds
// no access to the note.
func (r *PostgresRepository) Get(ctx context.Context, noteID string, userID string) (*models.NoteAccess, error) {
	query := `
		SELECT note_id, user_id, is_owner, granted_by, created_at
		FROM note_access WHERE note_id = $1 AND user_id = $2
	`
	a := &models.NoteAccess{}
	err := r.db.QueryRowContext(ctx, query, noteID, userID).
		Scan(&a.NoteID, &a.UserID, &a.IsOwner, &a.GrantedBy, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

// ListByNote returns every grant on a note, owner first.
func (r *PostgresRepository) ListByNote(ctx context.Context, noteID string) ([]*models.NoteAccess, error) {
	query := `
		SELECT note_id, user_id, is_owner, granted_by, created_at
		FROM note_access WHERE note_id = $1
		ORDER BY is_owner DESC, created_at
	`
	rows, err := r.db.QueryContext(ctx, query, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to select grants: %w", err)
	}
	defer rows.Close()

	var result []*models.NoteAccess
	for rows.Next() {
		var a models.NoteAccess
		if err := rows.Scan(&a.NoteID, &a.UserID, &a.IsOwner, &a.GrantedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Recipients returns the users the note is shared with, excluding the owner.
func (r *PostgresRepository) Recipients(ctx context.Context, noteID string) ([]*models.User, error) {
	query := `
		SELECT u.id, u.login, u.display_name, u.created_at
		FROM note_access a JOIN users u ON u.id = a.user_id
		WHERE a.note_id = $1 AND NOT a.is_owner
		ORDER BY u.login
	`
	rows, err := r.db.QueryContext(ctx, query, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to select recipients: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Login, &u.DisplayName, &u.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
