package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mkuzmins/homeboard/internal/common"
	"github.com/mkuzmins/homeboard/internal/dbx"
	"github.com/mkuzmins/homeboard/internal/logging"
	"github.com/mkuzmins/homeboard/internal/server/models"
	"github.com/mkuzmins/homeboard/internal/server/repositories/repomanager"
	"github.com/mkuzmins/homeboard/internal/sync/event"
)

// NoteService implements note operations with access checks. Every mutation
// verifies the caller's grant before touching storage, and reports the change
// to the emitter only after the write commits.
type NoteService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	emitter     ChangeEmitter
	logger      logging.Logger
	now         func() time.Time
}

func NewNoteService(db *sql.DB, rm repomanager.RepositoryManager, emitter ChangeEmitter, logger logging.Logger) *NoteService {
	return &NoteService{
		db:          db,
		repomanager: rm,
		emitter:     emitter,
		logger:      logger,
		now:         time.Now,
	}
}

// normalizeContent trims trailing spaces, tabs and newlines so that
// whitespace-only edits do not churn versions.
func normalizeContent(s string) string {
	return strings.TrimRight(s, " \t\r\n")
}

// authorize loads the note and the caller's grant. Callers without a grant,
// and non-owners of private notes, get common.ErrForbidden. Missing notes get
// common.ErrNotFound.
func (s *NoteService) authorize(ctx context.Context, userID, noteID string) (*models.Note, error) {
	note, err := s.repomanager.Notes(s.db).GetByID(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if note.OwnerID == userID {
		return note, nil
	}
	if _, err := s.repomanager.NoteAccess(s.db).Get(ctx, noteID, userID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrForbidden
		}
		return nil, err
	}
	if note.Private {
		return nil, common.ErrForbidden
	}
	return note, nil
}

// authorizeOwner is authorize plus an ownership requirement.
func (s *NoteService) authorizeOwner(ctx context.Context, userID, noteID string) (*models.Note, error) {
	note, err := s.authorize(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}
	if note.OwnerID != userID {
		return nil, common.ErrNotOwner
	}
	return note, nil
}

// audience returns the principals interested in changes to the note: the
// owner plus everyone it is shared with.
func (s *NoteService) audience(ctx context.Context, note *models.Note) []string {
	ids := []string{note.OwnerID}
	recipients, err := s.repomanager.NoteAccess(s.db).Recipients(ctx, note.ID)
	if err != nil {
		s.logger.Warn(ctx, "failed to resolve note audience", "note_id", note.ID, "error", err)
		return ids
	}
	for _, u := range recipients {
		ids = append(ids, u.ID)
	}
	return ids
}

// Create inserts a new note together with its owner access grant and returns it.
func (s *NoteService) Create(ctx context.Context, userID string, content string, private bool) (*models.Note, error) {
	if utf8.RuneCountInString(content) > common.MaxNoteContentLength {
		return nil, common.ErrContentTooLong
	}
	note := &models.Note{OwnerID: userID, Content: normalizeContent(content), Private: private}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.repomanager.Notes(tx).Create(ctx, note)
		if err != nil {
			return err
		}
		return s.repomanager.NoteAccess(tx).Grant(ctx, &models.NoteAccess{
			NoteID:    created.ID,
			UserID:    userID,
			IsOwner:   true,
			GrantedBy: userID,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("error creating note: %w", err)
	}

	s.emitter.RowChanged(event.TableNotes, event.OpInsert, []string{userID})
	return note, nil
}

// Get returns a single note the caller may read.
func (s *NoteService) Get(ctx context.Context, userID, noteID string) (*models.Note, error) {
	return s.authorize(ctx, userID, noteID)
}

// UpdateContent replaces a note's body. Trashed notes are read-only.
func (s *NoteService) UpdateContent(ctx context.Context, userID, noteID string, content string) (*models.Note, error) {
	if utf8.RuneCountInString(content) > common.MaxNoteContentLength {
		return nil, common.ErrContentTooLong
	}
	note, err := s.authorize(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}
	if note.Trashed() {
		return nil, common.ErrForbidden
	}

	updated, err := s.repomanager.Notes(s.db).UpdateContent(ctx, noteID, normalizeContent(content))
	if err != nil {
		return nil, err
	}

	s.emitter.RowChanged(event.TableNotes, event.OpUpdate, s.audience(ctx, updated))
	return updated, nil
}

// SetPinned toggles the pin flag. Any grantee may pin.
func (s *NoteService) SetPinned(ctx context.Context, userID, noteID string, pinned bool) error {
	note, err := s.authorize(ctx, userID, noteID)
	if err != nil {
		return err
	}
	if err := s.repomanager.Notes(s.db).SetPinned(ctx, noteID, pinned); err != nil {
		return err
	}
	s.emitter.RowChanged(event.TableNotes, event.OpUpdate, s.audience(ctx, note))
	return nil
}

// SetPrivate toggles visibility for recipients. Owner only.
func (s *NoteService) SetPrivate(ctx context.Context, userID, noteID string, private bool) error {
	note, err := s.authorizeOwner(ctx, userID, noteID)
	if err != nil {
		return err
	}
	if err := s.repomanager.Notes(s.db).SetPrivate(ctx, noteID, private); err != nil {
		return err
	}
	s.emitter.RowChanged(event.TableNotes, event.OpUpdate, s.audience(ctx, note))
	return nil
}

// Trash moves a note to the trash. Owner only.
func (s *NoteService) Trash(ctx context.Context, userID, noteID string) error {
	note, err := s.authorizeOwner(ctx, userID, noteID)
	if err != nil {
		return err
	}
	audience := s.audience(ctx, note)
	if err := s.repomanager.Notes(s.db).Trash(ctx, noteID, userID, s.now()); err != nil {
		return err
	}
	s.emitter.RowChanged(event.TableNotes, event.OpUpdate, audience)
	return nil
}

// Restore brings a note back from the trash. Owner only.
func (s *NoteService) Restore(ctx context.Context, userID, noteID string) error {
	note, err := s.authorizeOwner(ctx, userID, noteID)
	if err != nil {
		return err
	}
	if err := s.repomanager.Notes(s.db).Restore(ctx, noteID); err != nil {
		return err
	}
	s.emitter.RowChanged(event.TableNotes, event.OpUpdate, s.audience(ctx, note))
	return nil
}

// Delete permanently removes a trashed note. Without force it refuses until
// the retention window has passed.
func (s *NoteService) Delete(ctx context.Context, userID, noteID string, force bool) error {
	note, err := s.authorizeOwner(ctx, userID, noteID)
	if err != nil {
		return err
	}
	if !note.Trashed() {
		return common.ErrRetentionActive
	}
	if !force && s.now().Before(note.TrashedAt.Add(common.TrashRetention)) {
		return common.ErrRetentionActive
	}
	audience := s.audience(ctx, note)
	if err := s.repomanager.Notes(s.db).Delete(ctx, noteID); err != nil {
		return err
	}
	s.emitter.RowChanged(event.TableNotes, event.OpDelete, audience)
	return nil
}

// List returns the caller's accessible notes, pinned first.
func (s *NoteService) List(ctx context.Context, userID string) ([]*models.Note, error) {
	return s.repomanager.Notes(s.db).ListAccessible(ctx, userID)
}

// ListShared returns notes shared with the caller by others.
func (s *NoteService) ListShared(ctx context.Context, userID string) ([]*models.Note, error) {
	return s.repomanager.Notes(s.db).ListShared(ctx, userID)
}

// ListTrashed returns the caller's trash.
func (s *NoteService) ListTrashed(ctx context.Context, userID string) ([]*models.Note, error) {
	return s.repomanager.Notes(s.db).ListTrashed(ctx, userID)
}

// Share grants note access to the user named by login. Owner only.
func (s *NoteService) Share(ctx context.Context, userID, noteID string, login string) (*models.User, error) {
	if _, err := s.authorizeOwner(ctx, userID, noteID); err != nil {
		return nil, err
	}
	recipient, err := s.repomanager.Users(s.db).GetByLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	err = s.repomanager.NoteAccess(s.db).Grant(ctx, &models.NoteAccess{
		NoteID:    noteID,
		UserID:    recipient.ID,
		GrantedBy: userID,
	})
	if err != nil {
		return nil, err
	}
	s.emitter.RowChanged(event.TableNoteAccess, event.OpInsert, []string{userID, recipient.ID})
	return recipient, nil
}

// Unshare revokes a recipient's access. Owner only.
func (s *NoteService) Unshare(ctx context.Context, userID, noteID string, login string) error {
	if _, err := s.authorizeOwner(ctx, userID, noteID); err != nil {
		return err
	}
	recipient, err := s.repomanager.Users(s.db).GetByLogin(ctx, login)
	if err != nil {
		return err
	}
	if err := s.repomanager.NoteAccess(s.db).Revoke(ctx, noteID, recipient.ID); err != nil {
		return err
	}
	s.emitter.RowChanged(event.TableNoteAccess, event.OpDelete, []string{userID, recipient.ID})
	return nil
}

// Recipients lists the users a note is shared with. Owner only.
func (s *NoteService) Recipients(ctx context.Context, userID, noteID string) ([]*models.User, error) {
	if _, err := s.authorizeOwner(ctx, userID, noteID); err != nil {
		return nil, err
	}
	return s.repomanager.NoteAccess(s.db).Recipients(ctx, noteID)
}

// PurgeExpiredTrash permanently deletes notes whose retention window has
// passed. Called from the retention sweep.
func (s *NoteService) PurgeExpiredTrash(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-common.TrashRetention)
	expired, err := s.repomanager.Notes(s.db).ListExpiredTrash(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	purged := 0
	for _, note := range expired {
		audience := s.audience(ctx, note)
		if err := s.repomanager.Notes(s.db).Delete(ctx, note.ID); err != nil {
			s.logger.Warn(ctx, "failed to purge trashed note", "note_id", note.ID, "error", err)
			continue
		}
		purged++
		s.emitter.RowChanged(event.TableNotes, event.OpDelete, audience)
	}
	return purged, nil
}
