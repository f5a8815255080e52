package models

import "time"

// User is an authenticated principal.
type User struct {
	ID          string
	Login       string
	DisplayName string
	CreatedAt   time.Time
}
