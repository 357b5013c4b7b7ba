package models

import "time"

// Token purposes
const (
	TokenPurposeReset   = "reset"
	TokenPurposeConfirm = "confirm"
)

// AccountToken is a single-use credential mailed to the user: either a
// password-reset token or a registration confirmation token. Only a SHA-256
// hash of the opaque token is stored.
type AccountToken struct {
	ID        string
	Purpose   string
	Email     string
	Login     string // the login the token resolves to when redeemed
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// IsExpired checks if the token has expired
func (t *AccountToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// IsUsed checks if the token has already been consumed
func (t *AccountToken) IsUsed() bool {
	return t.UsedAt != nil
}
