// Package event defines the change notifications exchanged between the
// server hub and client sync cores. A single union type covers both
// row-watch notifications (database-triggered, delivered to the owning
// principal) and broadcast notifications (application-sent, best-effort).
package event

// Source discriminates the two notification transports.
type Source string

const (
	// SourceRowWatch marks a database-triggered change notification for a
	// row owned by the receiving principal.
	SourceRowWatch Source = "rowwatch"
	// SourceBroadcast marks an application-sent message on a named channel.
	SourceBroadcast Source = "broadcast"
)

// Op is the row operation behind a row-watch notification.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// Watched table names.
const (
	TableNotes      = "notes"
	TableNoteAccess = "note_access"
	TableTags       = "tags"
)

// Kind names a broadcast event. Unknown kinds must be treated as a request
// for a full refresh, never dropped.
type Kind string

const (
	KindNoteChanged  Kind = "note-changed"
	KindNoteCreated  Kind = "note-created"
	KindNoteTrashed  Kind = "note-trashed"
	KindNoteRestored Kind = "note-restored"
	KindNoteDeleted  Kind = "note-deleted"
	KindNotesRefresh Kind = "notes-refresh"
	KindTagsRefresh  Kind = "tags-refresh"
)

// Event is the tagged union delivered to ChangeBus listeners.
//
// Source selects which fields are meaningful: row-watch events carry Table
// and Op; broadcast events carry Kind and, except for the bulk refresh
// kinds, the affected NoteID. Events are transient wire values, never stored.
type Event struct {
	Source Source `json:"source"`

	Table string `json:"table,omitempty"`
	Op    Op     `json:"op,omitempty"`

	Kind   Kind   `json:"kind,omitempty"`
	NoteID string `json:"note_id,omitempty"`
}

// RowWatch builds a row-watch event.
func RowWatch(table string, op Op) Event {
	return Event{Source: SourceRowWatch, Table: table, Op: op}
}

// Broadcast builds a broadcast event. noteID may be empty for bulk kinds.
func Broadcast(kind Kind, noteID string) Event {
	return Event{Source: SourceBroadcast, Kind: kind, NoteID: noteID}
}

// FrameType discriminates messages on a channel websocket.
type FrameType string

const (
	// FrameSubscribed is the server's readiness ack after a channel join.
	FrameSubscribed FrameType = "subscribed"
	// FrameEvent carries an Event from the server to a subscriber.
	FrameEvent FrameType = "event"
	// FrameBroadcast carries a client-sent Event to be relayed to the
	// channel's subscribers.
	FrameBroadcast FrameType = "broadcast"
)

// Frame is the wire envelope exchanged on a channel websocket.
type Frame struct {
	Type  FrameType `json:"type"`
	Event *Event    `json:"event,omitempty"`
}
