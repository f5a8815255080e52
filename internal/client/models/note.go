// Package models defines the client-side view of server records plus the
// entities that live only in client-local storage.
package models

import "time"

// Note is a note as the client sees it. OwnerName is populated on
// shared-with-me listings only.
type Note struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	OwnerName string     `json:"owner_name,omitempty"`
	Content   string     `json:"content"`
	Private   bool       `json:"private"`
	Pinned    bool       `json:"pinned"`
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	TrashedAt *time.Time `json:"trashed_at,omitempty"`
}

// NoteUpdate carries a partial note mutation; nil fields are left unchanged.
type NoteUpdate struct {
	Content *string `json:"content,omitempty"`
	Pinned  *bool   `json:"pinned,omitempty"`
	Private *bool   `json:"private,omitempty"`
}

// Tag is an owner-scoped label.
type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// NoteTag associates a note with a tag.
type NoteTag struct {
	NoteID string `json:"note_id"`
	TagID  string `json:"tag_id"`
}
