package services

import (
	"context"
	"time"

	"github.com/diagnoseapp/accountsec/internal/models"
)

// AccountStore defines the persistence operations services need on accounts.
type AccountStore interface {
	GetByLogin(ctx context.Context, login string) (*models.Account, error)
	ListByEmail(ctx context.Context, email string) ([]*models.Account, error)
	CountByEmail(ctx context.Context, email string) (int, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	Activate(ctx context.Context, login string) error
	ClearBlock(ctx context.Context, login string) error
	BlockActivatedByEmail(ctx context.Context, email string, until time.Time) (int64, error)
	TouchLastLogin(ctx context.Context, login string, at time.Time) error
	UpdatePasswordAndDropSessions(ctx context.Context, login, passwordHash string) error
}

// AttemptStore defines the persistence operations for failure counters.
type AttemptStore interface {
	Increment(ctx context.Context, email string) (int, error)
	Clear(ctx context.Context, email string) error
	Count(ctx context.Context, email string) (int, error)
}

// SessionStore defines the persistence operations for sessions.
type SessionStore interface {
	CreateAndTrim(ctx context.Context, session *models.Session, limit int) error
	DeleteByTokenID(ctx context.Context, tokenID string) error
	DeleteByLogin(ctx context.Context, login string) (int64, error)
}

// TokenStore defines the persistence operations for single-use tokens.
type TokenStore interface {
	Create(ctx context.Context, token *models.AccountToken) (*models.AccountToken, error)
	GetByHash(ctx context.Context, purpose, tokenHash string) (*models.AccountToken, error)
	MarkUsed(ctx context.Context, id string) error
}

// NotificationPort sends security emails. All sends are best-effort: the
// caller logs a failure and proceeds; a lost email never rolls back a block
// or a password change.
type NotificationPort interface {
	SendActivationLink(ctx context.Context, email, token string, expiresAt time.Time) error
	SendPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error
	SendPasswordChanged(ctx context.Context, email string) error
	SendAccountBlocked(ctx context.Context, email string, until time.Time) error
}
