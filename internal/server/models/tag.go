package models

import "time"

// Tag is a per-user label. Names are unique within a user's namespace.
type Tag struct {
	ID        string
	UserID    string
	Name      string
	Color     string
	CreatedAt time.Time
}

// NoteTag links a note to a tag.
type NoteTag struct {
	NoteID string
	TagID  string
}
