// Package models holds the persistent server-side records.
package models

import "time"

// Note is a markdown note. A note has exactly one owner; sharing grants
// read/write access to other principals without changing ownership.
type Note struct {
	ID        string
	OwnerID   string
	OwnerName string // populated on shared-with-me listings
	Content   string
	Private   bool
	Pinned    bool
	TrashedAt *time.Time
	TrashedBy *string
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Trashed reports whether the note is in the trash.
func (n *Note) Trashed() bool {
	return n.TrashedAt != nil
}

// NoteAccess is an access grant on a note. Exactly one grant per note has
// IsOwner set, and it names the note's owner.
type NoteAccess struct {
	NoteID    string
	UserID    string
	IsOwner   bool
	GrantedBy string
	CreatedAt time.Time
}
