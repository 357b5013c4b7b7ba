package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account security errors
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrNotActivated       = errors.New("account email is not confirmed")
	ErrNoSecretWord       = errors.New("account has no secret word configured")
	ErrSamePassword       = errors.New("new password must differ from the current one")
	ErrEmailCapReached    = errors.New("maximum number of accounts reached for this email")
)

// BlockedError reports that an account is blocked and until when.
// A permanent block carries the far-future sentinel timestamp.
type BlockedError struct {
	Until time.Time
}

func (e *BlockedError) Error() string {
	if IsPermanentBlock(e.Until) {
		return "account is blocked permanently"
	}
	return fmt.Sprintf("account is blocked until %s", e.Until.Format("02.01.2006"))
}

// Permanent reports whether the block has no meaningful expiry.
func (e *BlockedError) Permanent() bool {
	return IsPermanentBlock(e.Until)
}

// RateLimitError reports that verification attempts are exhausted.
// Remaining is disclosed so a legitimate owner can stop before lockout.
type RateLimitError struct {
	Remaining int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many failed attempts, %d remaining", e.Remaining)
}

// WrongSecretWordError reports a failed secret word comparison along with
// how many attempts remain before the email is blocked.
type WrongSecretWordError struct {
	Remaining int
}

func (e *WrongSecretWordError) Error() string {
	return fmt.Sprintf("wrong secret word, %d attempts remaining", e.Remaining)
}

// Token failure reasons
const (
	TokenReasonMalformed = "malformed"
	TokenReasonUnknown   = "unknown"
	TokenReasonExpired   = "expired"
	TokenReasonUsed      = "used"
)

// TokenInvalidError reports why a recovery or confirmation token was rejected.
type TokenInvalidError struct {
	Reason string
}

func (e *TokenInvalidError) Error() string {
	return fmt.Sprintf("token invalid: %s", e.Reason)
}

// ValidationError reports a malformed input field, surfaced as a 400
// with the field name attached.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
