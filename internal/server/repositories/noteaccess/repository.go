package noteaccess

import (
	"context"

	"github.com/mkuzmins/homeboard/internal/server/models"
)

type Repository interface {
	Grant(ctx context.Context, grant *models.NoteAccess) error
	Revoke(ctx context.Context, noteID string, userID string) error
	Get(ctx context.Context, noteID string, userID string) (*models.NoteAccess, error)
	ListByNote(ctx context.Context, noteID string) ([]*models.NoteAccess, error)
	Recipients(ctx context.Context, noteID string) ([]*models.User, error)
}
