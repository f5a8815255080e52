package store

import (
	"context"

	"github.com/mkuzmins/homeboard/internal/client/models"
)

// Storage is the typed CRUD interface to the remote note store. The store
// treats it as an opaque collaborator: row-level access control and
// ownership guards live behind it, and a rejected write is surfaced as an
// error here with no partial state change.
type Storage interface {
	CreateNote(ctx context.Context) (*models.Note, error)
	UpdateNote(ctx context.Context, id string, upd models.NoteUpdate) (*models.Note, error)
	TrashNote(ctx context.Context, id string) error
	RestoreNote(ctx context.Context, id string) error
	// DeleteNote permanently removes a trashed note. force bypasses the
	// retention window (the explicit permanent-delete action).
	DeleteNote(ctx context.Context, id string, force bool) error
	GetNote(ctx context.Context, id string) (*models.Note, error)
	ListNotes(ctx context.Context) ([]models.Note, error)
	ListShared(ctx context.Context) ([]models.Note, error)
	ListTrashed(ctx context.Context) ([]models.Note, error)

	CreateTag(ctx context.Context, name, color string) (*models.Tag, error)
	UpdateTag(ctx context.Context, tag models.Tag) error
	DeleteTag(ctx context.Context, id string) error
	ListTags(ctx context.Context) ([]models.Tag, error)
	ListNoteTags(ctx context.Context) ([]models.NoteTag, error)
	AddNoteTag(ctx context.Context, noteID, tagID string) error
	RemoveNoteTag(ctx context.Context, noteID, tagID string) error
	ReplaceNoteTags(ctx context.Context, noteID string, tagIDs []string) error

	AddShare(ctx context.Context, noteID, login string) error
	RemoveShare(ctx context.Context, noteID, login string) error
	ListNoteRecipients(ctx context.Context, noteID string) ([]string, error)
}
