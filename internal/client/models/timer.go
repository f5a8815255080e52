package models

import "time"

// Timer is a countdown timer. Timers live in client-local storage only:
// they survive a reload of this device but are never synced across devices.
type Timer struct {
	ID        string
	Name      string
	EndsAt    time.Time
	Duration  time.Duration
	Dismissed bool
}

// Expired reports whether the timer has run out at the given instant.
func (t *Timer) Expired(now time.Time) bool {
	return !now.Before(t.EndsAt)
}
