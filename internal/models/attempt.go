package models

import "time"

// AttemptRecord counts consecutive failed verification attempts per email.
// An absent record is equivalent to zero attempts. The record is cleared on
// the first successful verification for that email.
type AttemptRecord struct {
	Email         string
	Attempts      int
	LastAttemptAt time.Time
}
