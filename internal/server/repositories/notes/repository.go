package notes

import (
	"context"
	"time"

	"github.com/mkuzmins/homeboard/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, note *models.Note) (*models.Note, error)
	GetByID(ctx context.Context, noteID string) (*models.Note, error)
	UpdateContent(ctx context.Context, noteID string, content string) (*models.Note, error)
	SetPinned(ctx context.Context, noteID string, pinned bool) error
	SetPrivate(ctx context.Context, noteID string, private bool) error
	Trash(ctx context.Context, noteID string, userID string, at time.Time) error
	Restore(ctx context.Context, noteID string) error
	Delete(ctx context.Context, noteID string) error
	ListAccessible(ctx context.Context, userID string) ([]*models.Note, error)
	ListShared(ctx context.Context, userID string) ([]*models.Note, error)
	ListTrashed(ctx context.Context, userID string) ([]*models.Note, error)
	ListExpiredTrash(ctx context.Context, cutoff time.Time) ([]*models.Note, error)
}
