package services

import (
	"context"
	"errors"
	"testing"

	"github.com/mkuzmins/homeboard/internal/common"
	"github.com/mkuzmins/homeboard/internal/server/models"
	"github.com/mkuzmins/homeboard/internal/sync/event"
)

func TestSetNoteTags_ReplacesLinksInTx(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	n := &fakeNotesRepo{byID: map[string]*models.Note{"n1": ownedNote("n1", "u1")}}
	tg := &fakeTagsRepo{orphans: []string{"t-old"}}
	m := &fakeRepoManager{n: n, a: &fakeAccessRepo{}, t: tg}
	em := &recordingEmitter{}

	noteService := newNoteService(db, m, em)
	s := NewTagService(db, m, noteService, em, testLogger())

	err := s.SetNoteTags(context.Background(), "u1", "n1", []string{"t1", "t2"})
	if err != nil {
		t.Fatalf("SetNoteTags error: %v", err)
	}
	if tg.replacedNote != "n1" || len(tg.replacedIDs) != 2 {
		t.Fatalf("links not replaced: note=%q ids=%v", tg.replacedNote, tg.replacedIDs)
	}
	c := em.changes[len(em.changes)-1]
	if c.table != event.TableTags || c.op != event.OpUpdate || len(c.users) != 1 || c.users[0] != "u1" {
		t.Fatalf("unexpected change: %+v", c)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetNoteTags_RequiresAccess(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	n := &fakeNotesRepo{byID: map[string]*models.Note{"n1": ownedNote("n1", "u1")}}
	tg := &fakeTagsRepo{}
	m := &fakeRepoManager{n: n, a: &fakeAccessRepo{}, t: tg}

	noteService := newNoteService(db, m, &recordingEmitter{})
	s := NewTagService(db, m, noteService, &recordingEmitter{}, testLogger())

	err := s.SetNoteTags(context.Background(), "intruder", "n1", []string{"t1"})
	if !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("want ErrForbidden, got %v", err)
	}
	if tg.replacedNote != "" {
		t.Fatalf("links must not change on rejected call")
	}
}

func TestAddNoteTag_LinksAndEmits(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	n := &fakeNotesRepo{byID: map[string]*models.Note{"n1": ownedNote("n1", "u1")}}
	tg := &fakeTagsRepo{}
	m := &fakeRepoManager{n: n, a: &fakeAccessRepo{}, t: tg}
	em := &recordingEmitter{}

	noteService := newNoteService(db, m, em)
	s := NewTagService(db, m, noteService, em, testLogger())

	if err := s.AddNoteTag(context.Background(), "u1", "n1", "t1"); err != nil {
		t.Fatalf("AddNoteTag error: %v", err)
	}
	if len(tg.added) != 1 || tg.added[0] != "n1/t1" {
		t.Fatalf("link not added: %v", tg.added)
	}
	c := em.changes[len(em.changes)-1]
	if c.table != event.TableTags || c.op != event.OpUpdate {
		t.Fatalf("unexpected change: %+v", c)
	}
}

func TestRemoveNoteTag_DropsOrphansInTx(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	n := &fakeNotesRepo{byID: map[string]*models.Note{"n1": ownedNote("n1", "u1")}}
	tg := &fakeTagsRepo{orphans: []string{"t1"}}
	m := &fakeRepoManager{n: n, a: &fakeAccessRepo{}, t: tg}

	noteService := newNoteService(db, m, &recordingEmitter{})
	s := NewTagService(db, m, noteService, &recordingEmitter{}, testLogger())

	if err := s.RemoveNoteTag(context.Background(), "u1", "n1", "t1"); err != nil {
		t.Fatalf("RemoveNoteTag error: %v", err)
	}
	if len(tg.removed) != 1 || tg.removed[0] != "n1/t1" {
		t.Fatalf("link not removed: %v", tg.removed)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateTag_EmptyNameRejected(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	m := &fakeRepoManager{t: &fakeTagsRepo{}}
	s := NewTagService(db, m, nil, &recordingEmitter{}, testLogger())

	_, err := s.Create(context.Background(), "u1", "   ", "")
	if err == nil {
		t.Fatalf("expected error for empty tag name")
	}
}
