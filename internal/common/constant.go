// Package common contains shared constants and sentinel errors used across
// homeboard components.
package common

import "time"

// AccessTokenHeaderName is the HTTP header used to carry the access token on
// outbound requests (and as the websocket handshake query parameter).
const AccessTokenHeaderName = "access_token"

// MaxNoteContentLength is the maximum note body size, in runes, accepted by
// both the edit buffer and the note service.
const MaxNoteContentLength = 100000

// TrashRetention is how long a trashed note is kept before it becomes
// eligible for permanent deletion without the explicit force flag.
const TrashRetention = 30 * 24 * time.Hour
