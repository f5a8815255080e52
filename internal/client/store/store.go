// Package store holds the client's local cache of notes, tags and
// associations, applies optimistic updates ahead of the network write, and
// notifies observers when anything changes. The UI layer renders from this
// cache and never talks to storage directly.
//
// There is no merge logic: a failed write is reverted by refetching the
// authoritative state, and concurrent edits by two principals resolve as
// last-write-wins at the storage layer.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/mkuzmins/homeboard/internal/client/models"
	"github.com/mkuzmins/homeboard/internal/common"
	"github.com/mkuzmins/homeboard/internal/logging"
	"github.com/mkuzmins/homeboard/internal/sync/event"
)

// Marker records a local write intent so the sync layer can recognize its
// own echo.
type Marker interface {
	Mark(id string)
}

// Broadcaster fans a locally-originated event out to other sessions and
// principals. Best-effort; failures are logged, never surfaced.
type Broadcaster interface {
	Broadcast(ctx context.Context, ev event.Event, isPrivate bool) error
}

// Store is the per-session note store.
type Store struct {
	storage   Storage
	marker    Marker
	broadcast Broadcaster
	logger    logging.Logger

	mu         sync.Mutex
	notes      []models.Note
	shared     []models.Note
	trashed    []models.Note
	tags       []models.Tag
	noteTags   []models.NoteTag
	openNoteID string
	lastErr    string

	nextSub   int
	observers map[int]func()
}

// New constructs a Store. broadcast may be nil (events are then not fanned
// out, e.g. in tests).
func New(storage Storage, marker Marker, broadcast Broadcaster, logger logging.Logger) *Store {
	return &Store{
		storage:   storage,
		marker:    marker,
		broadcast: broadcast,
		logger:    logger.With("module", "store"),
		observers: make(map[int]func()),
	}
}

// Subscribe registers an observer called after every cache change and
// returns its unsubscribe function.
func (s *Store) Subscribe(fn func()) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Store) notifyObservers() {
	s.mu.Lock()
	observers := make([]func(), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn()
	}
}

// Err returns the last store-level error message, or "" when the previous
// operation succeeded.
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Store) setErr(msg string) {
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
}

// Snapshots. Slices are copies; callers may not mutate cache internals.

func (s *Store) Notes() []models.Note { return s.copyNotes(&s.notes) }

func (s *Store) Shared() []models.Note { return s.copyNotes(&s.shared) }

func (s *Store) Trashed() []models.Note { return s.copyNotes(&s.trashed) }

func (s *Store) copyNotes(src *[]models.Note) []models.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Note(nil), *src...)
}

func (s *Store) Tags() []models.Tag {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Tag(nil), s.tags...)
}

func (s *Store) NoteTags() []models.NoteTag {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.NoteTag(nil), s.noteTags...)
}

// SetOpenNote records which note the UI currently has open. The sync layer
// reads it through OpenNoteID, so switching notes never forces a
// resubscription.
func (s *Store) SetOpenNote(id string) {
	s.mu.Lock()
	s.openNoteID = id
	s.mu.Unlock()
	s.notifyObservers()
}

// OpenNoteID returns the currently open note id, or "".
func (s *Store) OpenNoteID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openNoteID
}

// OpenNote returns the cached copy of the open note, if any.
func (s *Store) OpenNote() *models.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notes {
		if s.notes[i].ID == s.openNoteID {
			n := s.notes[i]
			return &n
		}
	}
	for i := range s.shared {
		if s.shared[i].ID == s.openNoteID {
			n := s.shared[i]
			return &n
		}
	}
	return nil
}

// Load performs the initial full fetch.
func (s *Store) Load(ctx context.Context) error {
	return s.RefreshAll(ctx)
}

// RefreshAll refetches every collection.
func (s *Store) RefreshAll(ctx context.Context) error {
	if err := s.RefreshNotes(ctx); err != nil {
		return err
	}
	if err := s.RefreshTrashed(ctx); err != nil {
		return err
	}
	return s.RefreshTags(ctx)
}

// RefreshNotes refetches the owned and shared-with-me lists.
func (s *Store) RefreshNotes(ctx context.Context) error {
	notes, err := s.storage.ListNotes(ctx)
	if err != nil {
		return err
	}
	shared, err := s.storage.ListShared(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.notes = notes
	s.shared = shared
	s.mu.Unlock()
	s.notifyObservers()
	return nil
}

// RefreshTrashed refetches the trash list.
func (s *Store) RefreshTrashed(ctx context.Context) error {
	trashed, err := s.storage.ListTrashed(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.trashed = trashed
	s.mu.Unlock()
	s.notifyObservers()
	return nil
}

// RefreshTags refetches tags and note–tag associations.
func (s *Store) RefreshTags(ctx context.Context) error {
	tags, err := s.storage.ListTags(ctx)
	if err != nil {
		return err
	}
	noteTags, err := s.storage.ListNoteTags(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.tags = tags
	s.noteTags = noteTags
	s.mu.Unlock()
	s.notifyObservers()
	return nil
}

// RefreshOpenNote reselects the open note from storage and replaces the
// cached copy. A missing open note (trashed or deleted remotely) clears the
// selection.
func (s *Store) RefreshOpenNote(ctx context.Context) error {
	id := s.OpenNoteID()
	if id == "" {
		return nil
	}

	note, err := s.storage.GetNote(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		// Trashed or deleted remotely: drop the selection.
		s.mu.Lock()
		if s.openNoteID == id {
			s.openNoteID = ""
		}
		s.mu.Unlock()
		s.notifyObservers()
		return nil
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	replaceNote(s.notes, *note)
	replaceNote(s.shared, *note)
	s.mu.Unlock()
	s.notifyObservers()
	return nil
}

func replaceNote(list []models.Note, n models.Note) {
	for i := range list {
		if list[i].ID == n.ID {
			list[i] = n
			return
		}
	}
}

// CreateNote creates an empty note owned by the local principal and makes
// it the open note.
func (s *Store) CreateNote(ctx context.Context) (*models.Note, error) {
	note, err := s.storage.CreateNote(ctx)
	if err != nil {
		s.setErr(err.Error())
		return nil, err
	}

	s.mu.Lock()
	s.notes = append([]models.Note{*note}, s.notes...)
	s.openNoteID = note.ID
	s.lastErr = ""
	s.mu.Unlock()
	s.notifyObservers()

	s.fanOut(event.Broadcast(event.KindNoteCreated, note.ID), note.Private)
	return note, nil
}

// SaveContent commits settled editor content: marks the write intent, applies
// the optimistic cache update synchronously, then performs the storage write.
// On failure the optimistic state is reverted by refetching; the buffer keeps
// no history to roll back from.
func (s *Store) SaveContent(ctx context.Context, id, content string) error {
	if s.marker != nil {
		s.marker.Mark(id)
	}

	s.mu.Lock()
	private := s.applyContentLocked(id, content)
	s.mu.Unlock()
	s.notifyObservers()

	note, err := s.storage.UpdateNote(ctx, id, models.NoteUpdate{Content: &content})
	if err != nil {
		s.setErr(err.Error())
		s.reconcile(ctx)
		return err
	}

	s.mu.Lock()
	replaceNote(s.notes, *note)
	replaceNote(s.shared, *note)
	s.lastErr = ""
	private = note.Private
	s.mu.Unlock()
	s.notifyObservers()

	s.fanOut(event.Broadcast(event.KindNoteChanged, id), private)
	return nil
}

func (s *Store) applyContentLocked(id, content string) (private bool) {
	private = true
	for _, list := range [][]models.Note{s.notes, s.shared} {
		for i := range list {
			if list[i].ID == id {
				list[i].Content = content
				private = list[i].Private
			}
		}
	}
	return private
}

// SetPinned toggles the pinned flag.
func (s *Store) SetPinned(ctx context.Context, id string, pinned bool) error {
	note, err := s.storage.UpdateNote(ctx, id, models.NoteUpdate{Pinned: &pinned})
	if err != nil {
		s.setErr(err.Error())
		return err
	}

	s.mu.Lock()
	replaceNote(s.notes, *note)
	s.lastErr = ""
	s.mu.Unlock()
	s.notifyObservers()

	s.fanOut(event.Broadcast(event.KindNoteChanged, id), note.Private)
	return nil
}

// TrashNote soft-deletes a note. Owner-only; the rejection comes back from
// storage before any state changes there, and the optimistic move is then
// reverted by refetch.
func (s *Store) TrashNote(ctx context.Context, id string) error {
	s.mu.Lock()
	s.moveToTrashLocked(id)
	wasOpen := s.openNoteID == id
	if wasOpen {
		s.openNoteID = ""
	}
	s.mu.Unlock()
	s.notifyObservers()

	if err := s.storage.TrashNote(ctx, id); err != nil {
		s.setErr(err.Error())
		s.reconcile(ctx)
		return err
	}

	s.setErr("")
	s.fanOut(event.Broadcast(event.KindNoteTrashed, id), false)
	return nil
}

func (s *Store) moveToTrashLocked(id string) {
	for i := range s.notes {
		if s.notes[i].ID == id {
			note := s.notes[i]
			s.notes = append(s.notes[:i], s.notes[i+1:]...)
			s.trashed = append([]models.Note{note}, s.trashed...)
			return
		}
	}
}

// RestoreNote brings a trashed note back.
func (s *Store) RestoreNote(ctx context.Context, id string) error {
	if err := s.storage.RestoreNote(ctx, id); err != nil {
		s.setErr(err.Error())
		return err
	}

	s.setErr("")
	if err := s.RefreshNotes(ctx); err != nil {
		s.logger.Warn(ctx, "refresh after restore failed", "error", err)
	}
	if err := s.RefreshTrashed(ctx); err != nil {
		s.logger.Warn(ctx, "refresh after restore failed", "error", err)
	}
	s.fanOut(event.Broadcast(event.KindNoteRestored, id), false)
	return nil
}

// DeleteNote permanently removes a trashed note.
func (s *Store) DeleteNote(ctx context.Context, id string, force bool) error {
	if err := s.storage.DeleteNote(ctx, id, force); err != nil {
		s.setErr(err.Error())
		return err
	}

	s.mu.Lock()
	for i := range s.trashed {
		if s.trashed[i].ID == id {
			s.trashed = append(s.trashed[:i], s.trashed[i+1:]...)
			break
		}
	}
	s.lastErr = ""
	s.mu.Unlock()
	s.notifyObservers()

	s.fanOut(event.Broadcast(event.KindNoteDeleted, id), false)
	return nil
}

// CreateTag adds a tag to the owner's tag list.
func (s *Store) CreateTag(ctx context.Context, name, color string) (*models.Tag, error) {
	tag, err := s.storage.CreateTag(ctx, name, color)
	if err != nil {
		s.setErr(err.Error())
		return nil, err
	}

	s.mu.Lock()
	s.tags = append(s.tags, *tag)
	s.lastErr = ""
	s.mu.Unlock()
	s.notifyObservers()

	s.fanOut(event.Broadcast(event.KindTagsRefresh, ""), true)
	return tag, nil
}

// DeleteTag removes a tag and all its associations.
func (s *Store) DeleteTag(ctx context.Context, id string) error {
	if err := s.storage.DeleteTag(ctx, id); err != nil {
		s.setErr(err.Error())
		return err
	}

	s.setErr("")
	if err := s.RefreshTags(ctx); err != nil {
		s.logger.Warn(ctx, "refresh after tag delete failed", "error", err)
	}
	s.fanOut(event.Broadcast(event.KindTagsRefresh, ""), true)
	return nil
}

// AddNoteTag attaches a single tag to a note.
func (s *Store) AddNoteTag(ctx context.Context, noteID, tagID string) error {
	if err := s.storage.AddNoteTag(ctx, noteID, tagID); err != nil {
		s.setErr(err.Error())
		return err
	}

	s.setErr("")
	if err := s.RefreshTags(ctx); err != nil {
		s.logger.Warn(ctx, "refresh after tag change failed", "error", err)
	}
	s.fanOut(event.Broadcast(event.KindTagsRefresh, ""), true)
	return nil
}

// RemoveNoteTag detaches a single tag from a note.
func (s *Store) RemoveNoteTag(ctx context.Context, noteID, tagID string) error {
	if err := s.storage.RemoveNoteTag(ctx, noteID, tagID); err != nil {
		s.setErr(err.Error())
		return err
	}

	s.setErr("")
	if err := s.RefreshTags(ctx); err != nil {
		s.logger.Warn(ctx, "refresh after tag change failed", "error", err)
	}
	s.fanOut(event.Broadcast(event.KindTagsRefresh, ""), true)
	return nil
}

// SetNoteTags replaces the note's tag associations.
func (s *Store) SetNoteTags(ctx context.Context, noteID string, tagIDs []string) error {
	if err := s.storage.ReplaceNoteTags(ctx, noteID, tagIDs); err != nil {
		s.setErr(err.Error())
		return err
	}

	s.setErr("")
	if err := s.RefreshTags(ctx); err != nil {
		s.logger.Warn(ctx, "refresh after tag change failed", "error", err)
	}
	s.fanOut(event.Broadcast(event.KindTagsRefresh, ""), true)
	return nil
}

// AddShare grants another principal access to a note by login.
func (s *Store) AddShare(ctx context.Context, noteID, login string) error {
	if err := s.storage.AddShare(ctx, noteID, login); err != nil {
		s.setErr(err.Error())
		return err
	}
	s.setErr("")
	s.fanOut(event.Broadcast(event.KindNotesRefresh, noteID), false)
	return nil
}

// RemoveShare revokes a principal's access by login.
func (s *Store) RemoveShare(ctx context.Context, noteID, login string) error {
	if err := s.storage.RemoveShare(ctx, noteID, login); err != nil {
		s.setErr(err.Error())
		return err
	}
	s.setErr("")
	s.fanOut(event.Broadcast(event.KindNotesRefresh, noteID), false)
	return nil
}

// fanOut broadcasts fire-and-forget: the local write's success path never
// waits on notification delivery.
func (s *Store) fanOut(ev event.Event, isPrivate bool) {
	if s.broadcast == nil {
		return
	}
	go func() {
		if err := s.broadcast.Broadcast(context.Background(), ev, isPrivate); err != nil {
			s.logger.Warn(context.Background(), "broadcast failed", "kind", ev.Kind, "error", err)
		}
	}()
}

// reconcile refetches authoritative state after a failed write.
func (s *Store) reconcile(ctx context.Context) {
	if err := s.RefreshNotes(ctx); err != nil {
		s.logger.Warn(ctx, "reconcile failed", "error", err)
	}
	if err := s.RefreshTrashed(ctx); err != nil {
		s.logger.Warn(ctx, "reconcile failed", "error", err)
	}
	if err := s.RefreshOpenNote(ctx); err != nil {
		s.logger.Warn(ctx, "reconcile failed", "error", err)
	}
}
