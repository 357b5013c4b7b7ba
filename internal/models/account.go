package models

import (
	"time"
)

// PermanentBlockSentinel marks a block with no expiry. It is stored as a
// literal far-future timestamp rather than a separate flag so that existing
// rows and the policy's "blocked until" comparison work the same way for
// dated and permanent blocks.
var PermanentBlockSentinel = time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)

// IsPermanentBlock reports whether a blocked-until timestamp denotes a
// permanent block (any timestamp in year 2099 or later).
func IsPermanentBlock(until time.Time) bool {
	return until.Year() >= 2099
}

// Account is a user identity plus its security state.
//
// Login is the unique immutable identifier. Email is deliberately not
// unique; several accounts may share an inbox up to a configured cap, which
// is why brute-force tracking and blocking are keyed by email, not login.
type Account struct {
	ID             string
	Login          string
	Email          string
	PasswordHash   string
	SecretWordHash *string // absent for legacy accounts
	Activated      bool
	Blocked        bool
	BlockedUntil   *time.Time // set whenever Blocked is true
	LastLoginAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BlockExpired reports whether the persisted block flag is stale: the
// account is logically unblocked but the flags have not been flipped yet.
func (a *Account) BlockExpired(now time.Time) bool {
	return a.Blocked && a.BlockedUntil != nil && !now.Before(*a.BlockedUntil)
}

// AccountState is the tagged status computed at read time by the blocking
// policy, never stored.
type AccountState int

const (
	StateUnactivated AccountState = iota
	StateActive
	StateBlocked
)

// AccountStatus is the result of a policy evaluation.
type AccountStatus struct {
	State AccountState
	Until *time.Time // set only for StateBlocked
}

// IsBlocked reports whether the status denies authentication entirely.
func (s AccountStatus) IsBlocked() bool {
	return s.State == StateBlocked
}
