package tags

import (
	"context"

	"github.com/mkuzmins/homeboard/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, tag *models.Tag) (*models.Tag, error)
	Update(ctx context.Context, tagID string, userID string, name, color string) error
	Delete(ctx context.Context, tagID string, userID string) error
	ListByUser(ctx context.Context, userID string) ([]*models.Tag, error)
	ListLinks(ctx context.Context, userID string) ([]*models.NoteTag, error)
	AddNoteLink(ctx context.Context, noteID, tagID, userID string) error
	RemoveNoteLink(ctx context.Context, noteID, tagID, userID string) error
	ReplaceNoteLinks(ctx context.Context, noteID string, tagIDs []string) error
	DeleteOrphans(ctx context.Context, userID string) ([]string, error)
}
