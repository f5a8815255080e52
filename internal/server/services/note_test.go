package services

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mkuzmins/homeboard/internal/common"
	"github.com/mkuzmins/homeboard/internal/dbx"
	"github.com/mkuzmins/homeboard/internal/logging"
	"github.com/mkuzmins/homeboard/internal/server/models"
	"github.com/mkuzmins/homeboard/internal/server/repositories/noteaccess"
	"github.com/mkuzmins/homeboard/internal/server/repositories/notes"
	"github.com/mkuzmins/homeboard/internal/server/repositories/repomanager"
	"github.com/mkuzmins/homeboard/internal/server/repositories/tags"
	"github.com/mkuzmins/homeboard/internal/server/repositories/users"
	"github.com/mkuzmins/homeboard/internal/sync/event"
)

// -------- test fakes --------

type fakeNotesRepo struct {
	notes.Repository
	byID map[string]*models.Note

	updatedContent string
	trashedID      string
	restoredID     string
	deletedIDs     []string
	expired        []*models.Note
}

func (f *fakeNotesRepo) GetByID(ctx context.Context, noteID string) (*models.Note, error) {
	n, ok := f.byID[noteID]
	if !ok {
		return nil, common.ErrNotFound
	}
	dup := *n
	return &dup, nil
}

func (f *fakeNotesRepo) Create(ctx context.Context, note *models.Note) (*models.Note, error) {
	note.ID = "n-new"
	note.Version = 1
	if f.byID == nil {
		f.byID = map[string]*models.Note{}
	}
	f.byID[note.ID] = note
	return note, nil
}

func (f *fakeNotesRepo) UpdateContent(ctx context.Context, noteID string, content string) (*models.Note, error) {
	n, ok := f.byID[noteID]
	if !ok {
		return nil, common.ErrNotFound
	}
	f.updatedContent = content
	n.Content = content
	n.Version++
	dup := *n
	return &dup, nil
}

func (f *fakeNotesRepo) Trash(ctx context.Context, noteID string, userID string, at time.Time) error {
	f.trashedID = noteID
	return nil
}

func (f *fakeNotesRepo) Restore(ctx context.Context, noteID string) error {
	f.restoredID = noteID
	return nil
}

func (f *fakeNotesRepo) Delete(ctx context.Context, noteID string) error {
	f.deletedIDs = append(f.deletedIDs, noteID)
	return nil
}

func (f *fakeNotesRepo) ListExpiredTrash(ctx context.Context, cutoff time.Time) ([]*models.Note, error) {
	return f.expired, nil
}

type fakeAccessRepo struct {
	noteaccess.Repository
	grants     map[string]*models.NoteAccess // key: noteID+"/"+userID
	recipients map[string][]*models.User
	granted    []*models.NoteAccess
	revoked    []string
}

func (f *fakeAccessRepo) Get(ctx context.Context, noteID, userID string) (*models.NoteAccess, error) {
	if g, ok := f.grants[noteID+"/"+userID]; ok {
		return g, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeAccessRepo) Grant(ctx context.Context, grant *models.NoteAccess) error {
	f.granted = append(f.granted, grant)
	return nil
}

func (f *fakeAccessRepo) Revoke(ctx context.Context, noteID, userID string) error {
	f.revoked = append(f.revoked, noteID+"/"+userID)
	return nil
}

func (f *fakeAccessRepo) Recipients(ctx context.Context, noteID string) ([]*models.User, error) {
	return f.recipients[noteID], nil
}

type fakeUsersRepo struct {
	users.Repository
	byLogin map[string]*models.User
}

func (f *fakeUsersRepo) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	if u, ok := f.byLogin[login]; ok {
		return u, nil
	}
	return nil, common.ErrNotFound
}

type fakeTagsRepo struct {
	tags.Repository
	replacedNote string
	replacedIDs  []string
	orphans      []string
	added        []string
	removed      []string
}

func (f *fakeTagsRepo) AddNoteLink(ctx context.Context, noteID, tagID, userID string) error {
	f.added = append(f.added, noteID+"/"+tagID)
	return nil
}

func (f *fakeTagsRepo) RemoveNoteLink(ctx context.Context, noteID, tagID, userID string) error {
	f.removed = append(f.removed, noteID+"/"+tagID)
	return nil
}

func (f *fakeTagsRepo) ReplaceNoteLinks(ctx context.Context, noteID string, tagIDs []string) error {
	f.replacedNote = noteID
	f.replacedIDs = tagIDs
	return nil
}

func (f *fakeTagsRepo) DeleteOrphans(ctx context.Context, userID string) ([]string, error) {
	return f.orphans, nil
}

type fakeRepoManager struct {
	repomanager.RepositoryManager
	n *fakeNotesRepo
	a *fakeAccessRepo
	u *fakeUsersRepo
	t *fakeTagsRepo
}

func (m *fakeRepoManager) Notes(db dbx.DBTX) notes.Repository           { return m.n }
func (m *fakeRepoManager) NoteAccess(db dbx.DBTX) noteaccess.Repository { return m.a }
func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository           { return m.u }
func (m *fakeRepoManager) Tags(db dbx.DBTX) tags.Repository             { return m.t }

type recordedChange struct {
	table string
	op    event.Op
	users []string
}

type recordingEmitter struct {
	changes []recordedChange
}

func (e *recordingEmitter) RowChanged(table string, op event.Op, userIDs []string) {
	e.changes = append(e.changes, recordedChange{table: table, op: op, users: userIDs})
}

// -------- helpers --------

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func ownedNote(id, owner string) *models.Note {
	return &models.Note{ID: id, OwnerID: owner, Content: "hello", Version: 1}
}

func newNoteService(db *sql.DB, m *fakeRepoManager, e *recordingEmitter) *NoteService {
	return NewNoteService(db, m, e, testLogger())
}

// -------- tests --------

func TestUpdateContent_OwnerNormalizesAndEmits(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	n := &fakeNotesRepo{byID: map[string]*models.Note{"n1": ownedNote("n1", "u1")}}
	a := &fakeAccessRepo{recipients: map[string][]*models.User{
		"n1": {{ID: "u2", Login: "bob"}},
	}}
	em := &recordingEmitter{}
	s := newNoteService(db, &fakeRepoManager{n: n, a: a}, em)

	updated, err := s.UpdateContent(context.Background(), "u1", "n1", "groceries  \n\n")
	if err != nil {
		t.Fatalf("UpdateContent error: %v", err)
	}
	if n.updatedContent != "groceries" {
		t.Fatalf("trailing whitespace not normalized: %q", n.updatedContent)
	}
	if updated.Version != 2 {
		t.Fatalf("version not bumped: %d", updated.Version)
	}
	if len(em.changes) != 1 {
		t.Fatalf("want 1 change, got %d", len(em.changes))
	}
	c := em.changes[0]
	if c.table != event.TableNotes || c.op != event.OpUpdate {
		t.Fatalf("unexpected change: %+v", c)
	}
	if len(c.users) != 2 || c.users[0] != "u1" || c.users[1] != "u2" {
		t.Fatalf("audience should be owner plus recipients: %+v", c.users)
	}
}

func TestUpdateContent_TooLongRejectedBeforeStorage(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	n := &fakeNotesRepo{byID: map[string]*models.Note{"n1": ownedNote("n1", "u1")}}
	em := &recordingEmitter{}
	s := newNoteService(db, &fakeRepoManager{n: n, a: &fakeAccessRepo{}}, em)

	long := strings.Repeat("x", common.MaxNoteContentLength+1)
	_, err := s.UpdateContent(context.Background(), "u1", "n1", long)
	if !errors.Is(err, common.ErrContentTooLong) {
		t.Fatalf("want ErrContentTooLong, got %v", err)
	}
	if n.updatedContent != "" {
		t.Fatalf("storage must not be touched on rejected write")
	}
	if len(em.changes) != 0 {
		t.Fatalf("no change must be emitted on rejected write")
	}
}

func TestUpdateContent_NonGranteeForbidden(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	n := &fakeNotesRepo{byID: map[string]*models.Note{"n1": ownedNote("n1", "u1")}}
	s := newNoteService(db, &fakeRepoManager{n: n, a: &fakeAccessRepo{}}, &recordingEmitter{})

	_, err := s.UpdateContent(context.Background(), "intruder", "n1", "x")
	if !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("want ErrForbidden, got %v", err)
	}
}

func TestUpdateContent_PrivateHiddenFromRecipient(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	note := ownedNote("n1", "u1")
	note.Private = true
	n := &fakeNotesRepo{byID: map[string]*models.Note{"n1": note}}
	a := &fakeAccessRepo{grants: map[string]*models.NoteAccess{
		"n1/u2": {NoteID: "n1", UserID: "u2"},
	}}
	s := newNoteService(db, &fakeRepoManager{n: n, a: a}, &recordingEmitter{})

	_, err := s.UpdateContent(context.Background(), "u2", "n1", "x")
	if !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("want ErrForbidden for private note, got %v", err)
	}
}

func TestUpdateContent_TrashedIsReadOnly(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	note := ownedNote("n1", "u1")
	at := time.Now().Add(-time.Hour)
	note.TrashedAt = &at
	n := &fakeNotesRepo{byID: map[string]*models.Note{"n1": note}}
	s := newNoteService(db, &fakeRepoManager{n: n, a: &fakeAccessRepo{}}, &recordingEmitter{})

	_, err := s.UpdateContent(context.Background(), "u1", "n1", "x")
	if !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("want ErrForbidden for trashed note, got %v", err)
	}
}

func TestTrash_NonOwnerRejected(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	n := &fakeNotesRepo{byID: map[string]*models.Note{"n1": ownedNote("n1", "u1")}}
	a := &fakeAccessRepo{grants: map[string]*models.NoteAccess{
		"n1/u2": {NoteID: "n1", UserID: "u2"},
	}}
	s := newNoteService(db, &fakeRepoManager{n: n, a: a}, &recordingEmitter{})

	err := s.Trash(context.Background(), "u2", "n1")
	if !errors.Is(err, common.ErrNotOwner) {
		t.Fatalf("want ErrNotOwner, got %v", err)
	}
	if n.trashedID != "" {
		t.Fatalf("storage must not be touched on rejected trash")
	}
}

func TestDelete_RetentionWindow(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	note := ownedNote("n1", "u1")
	at := time.Now().Add(-time.Hour)
	note.TrashedAt = &at
	n := &fakeNotesRepo{byID: map[string]*models.Note{"n1": note}}
	em := &recordingEmitter{}
	s := newNoteService(db, &fakeRepoManager{n: n, a: &fakeAccessRepo{}}, em)

	err := s.Delete(context.Background(), "u1", "n1", false)
	if !errors.Is(err, common.ErrRetentionActive) {
		t.Fatalf("want ErrRetentionActive inside the window, got %v", err)
	}

	// force bypasses the window
	if err := s.Delete(context.Background(), "u1", "n1", true); err != nil {
		t.Fatalf("forced delete error: %v", err)
	}
	if len(n.deletedIDs) != 1 || n.deletedIDs[0] != "n1" {
		t.Fatalf("note not deleted: %+v", n.deletedIDs)
	}
	last := em.changes[len(em.changes)-1]
	if last.op != event.OpDelete {
		t.Fatalf("want DELETE change, got %+v", last)
	}
}

func TestDelete_ExpiredRetentionAllowed(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	note := ownedNote("n1", "u1")
	at := time.Now().Add(-common.TrashRetention - time.Hour)
	note.TrashedAt = &at
	n := &fakeNotesRepo{byID: map[string]*models.Note{"n1": note}}
	s := newNoteService(db, &fakeRepoManager{n: n, a: &fakeAccessRepo{}}, &recordingEmitter{})

	if err := s.Delete(context.Background(), "u1", "n1", false); err != nil {
		t.Fatalf("delete after retention error: %v", err)
	}
}

func TestDelete_NotTrashedRejected(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	n := &fakeNotesRepo{byID: map[string]*models.Note{"n1": ownedNote("n1", "u1")}}
	s := newNoteService(db, &fakeRepoManager{n: n, a: &fakeAccessRepo{}}, &recordingEmitter{})

	err := s.Delete(context.Background(), "u1", "n1", false)
	if !errors.Is(err, common.ErrRetentionActive) {
		t.Fatalf("want ErrRetentionActive for non-trashed note, got %v", err)
	}
}

func TestCreate_GrantsOwnerAccess(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	n := &fakeNotesRepo{}
	a := &fakeAccessRepo{}
	em := &recordingEmitter{}
	s := newNoteService(db, &fakeRepoManager{n: n, a: a}, em)

	note, err := s.Create(context.Background(), "u1", "hello  ", false)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if note.Content != "hello" {
		t.Fatalf("content not normalized: %q", note.Content)
	}
	if len(a.granted) != 1 || !a.granted[0].IsOwner || a.granted[0].UserID != "u1" {
		t.Fatalf("owner grant missing: %+v", a.granted)
	}
	if len(em.changes) != 1 || em.changes[0].op != event.OpInsert {
		t.Fatalf("want INSERT change, got %+v", em.changes)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestShare_ResolvesLoginAndEmits(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	n := &fakeNotesRepo{byID: map[string]*models.Note{"n1": ownedNote("n1", "u1")}}
	a := &fakeAccessRepo{}
	u := &fakeUsersRepo{byLogin: map[string]*models.User{
		"bob": {ID: "u2", Login: "bob"},
	}}
	em := &recordingEmitter{}
	s := newNoteService(db, &fakeRepoManager{n: n, a: a, u: u}, em)

	recipient, err := s.Share(context.Background(), "u1", "n1", "bob")
	if err != nil {
		t.Fatalf("Share error: %v", err)
	}
	if recipient.ID != "u2" {
		t.Fatalf("unexpected recipient: %+v", recipient)
	}
	if len(a.granted) != 1 || a.granted[0].UserID != "u2" || a.granted[0].IsOwner {
		t.Fatalf("unexpected grant: %+v", a.granted)
	}
	c := em.changes[0]
	if c.table != event.TableNoteAccess || c.op != event.OpInsert {
		t.Fatalf("unexpected change: %+v", c)
	}
	if len(c.users) != 2 {
		t.Fatalf("both principals must be notified: %+v", c.users)
	}
}

func TestShare_UnknownLogin(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	n := &fakeNotesRepo{byID: map[string]*models.Note{"n1": ownedNote("n1", "u1")}}
	u := &fakeUsersRepo{byLogin: map[string]*models.User{}}
	s := newNoteService(db, &fakeRepoManager{n: n, a: &fakeAccessRepo{}, u: u}, &recordingEmitter{})

	_, err := s.Share(context.Background(), "u1", "n1", "nobody")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestPurgeExpiredTrash(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	old := time.Now().Add(-common.TrashRetention - 24*time.Hour)
	expired := ownedNote("n1", "u1")
	expired.TrashedAt = &old
	n := &fakeNotesRepo{
		byID:    map[string]*models.Note{"n1": expired},
		expired: []*models.Note{expired},
	}
	em := &recordingEmitter{}
	s := newNoteService(db, &fakeRepoManager{n: n, a: &fakeAccessRepo{}}, em)

	purged, err := s.PurgeExpiredTrash(context.Background())
	if err != nil {
		t.Fatalf("PurgeExpiredTrash error: %v", err)
	}
	if purged != 1 {
		t.Fatalf("want 1 purged, got %d", purged)
	}
	if len(n.deletedIDs) != 1 || n.deletedIDs[0] != "n1" {
		t.Fatalf("expired note not deleted: %+v", n.deletedIDs)
	}
	if len(em.changes) != 1 || em.changes[0].op != event.OpDelete {
		t.Fatalf("want DELETE change, got %+v", em.changes)
	}
}
