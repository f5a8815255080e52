package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mkuzmins/homeboard/internal/common"
	"github.com/mkuzmins/homeboard/internal/dbx"
	"github.com/mkuzmins/homeboard/internal/logging"
	"github.com/mkuzmins/homeboard/internal/server/models"
	"github.com/mkuzmins/homeboard/internal/server/repositories/repomanager"
	"github.com/mkuzmins/homeboard/internal/sync/event"
)

// TagService implements tag operations. Tags are scoped to a single user, so
// change notifications only ever target the caller.
type TagService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	notes       *NoteService
	emitter     ChangeEmitter
	logger      logging.Logger
}

func NewTagService(db *sql.DB, rm repomanager.RepositoryManager, notes *NoteService, emitter ChangeEmitter, logger logging.Logger) *TagService {
	return &TagService{
		db:          db,
		repomanager: rm,
		notes:       notes,
		emitter:     emitter,
		logger:      logger,
	}
}

// Create adds a tag in the caller's namespace.
func (s *TagService) Create(ctx context.Context, userID string, name, color string) (*models.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty tag name", common.ErrInternal)
	}
	tag := &models.Tag{UserID: userID, Name: name, Color: color}
	if _, err := s.repomanager.Tags(s.db).Create(ctx, tag); err != nil {
		return nil, err
	}
	s.emitter.RowChanged(event.TableTags, event.OpInsert, []string{userID})
	return tag, nil
}

// Update changes a tag's name and color.
func (s *TagService) Update(ctx context.Context, userID, tagID string, name, color string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: empty tag name", common.ErrInternal)
	}
	if err := s.repomanager.Tags(s.db).Update(ctx, tagID, userID, name, color); err != nil {
		return err
	}
	s.emitter.RowChanged(event.TableTags, event.OpUpdate, []string{userID})
	return nil
}

// Delete removes a tag and all its note links.
func (s *TagService) Delete(ctx context.Context, userID, tagID string) error {
	if err := s.repomanager.Tags(s.db).Delete(ctx, tagID, userID); err != nil {
		return err
	}
	s.emitter.RowChanged(event.TableTags, event.OpDelete, []string{userID})
	return nil
}

// List returns the caller's tags.
func (s *TagService) List(ctx context.Context, userID string) ([]*models.Tag, error) {
	return s.repomanager.Tags(s.db).ListByUser(ctx, userID)
}

// ListLinks returns all note-tag links involving the caller's tags.
func (s *TagService) ListLinks(ctx context.Context, userID string) ([]*models.NoteTag, error) {
	return s.repomanager.Tags(s.db).ListLinks(ctx, userID)
}

// AddNoteTag attaches one of the caller's tags to a note.
func (s *TagService) AddNoteTag(ctx context.Context, userID, noteID, tagID string) error {
	if _, err := s.notes.authorize(ctx, userID, noteID); err != nil {
		return err
	}
	if err := s.repomanager.Tags(s.db).AddNoteLink(ctx, noteID, tagID, userID); err != nil {
		return err
	}
	s.emitter.RowChanged(event.TableTags, event.OpUpdate, []string{userID})
	return nil
}

// RemoveNoteTag detaches a tag from a note. Like SetNoteTags, a tag that no
// longer labels any note is dropped with the link.
func (s *TagService) RemoveNoteTag(ctx context.Context, userID, noteID, tagID string) error {
	if _, err := s.notes.authorize(ctx, userID, noteID); err != nil {
		return err
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Tags(tx)
		if err := repo.RemoveNoteLink(ctx, noteID, tagID, userID); err != nil {
			return err
		}
		_, err := repo.DeleteOrphans(ctx, userID)
		return err
	})
	if err != nil {
		return fmt.Errorf("error removing note tag: %w", err)
	}

	s.emitter.RowChanged(event.TableTags, event.OpUpdate, []string{userID})
	return nil
}

// SetNoteTags rewrites a note's tag set. Tags the caller removed that no
// longer label any note are dropped in the same transaction, so the tag list
// never accumulates unused entries.
func (s *TagService) SetNoteTags(ctx context.Context, userID, noteID string, tagIDs []string) error {
	if _, err := s.notes.authorize(ctx, userID, noteID); err != nil {
		return err
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Tags(tx)
		if err := repo.ReplaceNoteLinks(ctx, noteID, tagIDs); err != nil {
			return err
		}
		removed, err := repo.DeleteOrphans(ctx, userID)
		if err != nil {
			return err
		}
		if len(removed) > 0 {
			s.logger.Debug(ctx, "removed orphan tags", "count", len(removed))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error updating note tags: %w", err)
	}

	s.emitter.RowChanged(event.TableTags, event.OpUpdate, []string{userID})
	return nil
}
