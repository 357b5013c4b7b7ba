package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/diagnoseapp/accountsec/internal/auth"
	"github.com/diagnoseapp/accountsec/internal/models"
)

// SessionManager issues signed session tokens and tracks them as rows so
// they can be revoked before expiry. A token is only valid while its row
// exists; dropping rows is how logout and password change invalidate.
type SessionManager struct {
	tokens   *auth.SessionTokenManager
	sessions SessionStore
	limit    int
	logger   *slog.Logger
}

// NewSessionManager creates a new SessionManager
func NewSessionManager(tokens *auth.SessionTokenManager, sessions SessionStore, limit int, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		tokens:   tokens,
		sessions: sessions,
		limit:    limit,
		logger:   logger,
	}
}

// IssuedSession is a freshly created session token, its expiry, and the
// identity it was issued for.
type IssuedSession struct {
	Token     string
	ExpiresAt time.Time
	Login     string
	Email     string
}

// CreateSession issues a signed token for the account and persists the
// backing row, evicting the oldest sessions beyond the per-login cap in the
// same transaction.
func (m *SessionManager) CreateSession(ctx context.Context, account *models.Account) (*IssuedSession, error) {
	tokenString, jti, expiresAt, err := m.tokens.Issue(account.Login, account.Email)
	if err != nil {
		m.logger.Error("failed to sign session token", slog.Any("error", err))
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	session := &models.Session{
		Login:   account.Login,
		TokenID: jti,
	}
	if err := m.sessions.CreateAndTrim(ctx, session, m.limit); err != nil {
		m.logger.Error("failed to persist session",
			slog.String("login", account.Login),
			slog.Any("error", err))
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	return &IssuedSession{
		Token:     tokenString,
		ExpiresAt: expiresAt,
		Login:     account.Login,
		Email:     account.Email,
	}, nil
}

// InvalidateOne revokes a single session by token JTI. Revoking a session
// that is already gone is not an error; logout is idempotent.
func (m *SessionManager) InvalidateOne(ctx context.Context, tokenID string) error {
	err := m.sessions.DeleteByTokenID(ctx, tokenID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		m.logger.Error("failed to delete session", slog.Any("error", err))
		return err
	}
	return nil
}

// InvalidateAll revokes every session for a login and returns how many
// were dropped.
func (m *SessionManager) InvalidateAll(ctx context.Context, login string) (int64, error) {
	dropped, err := m.sessions.DeleteByLogin(ctx, login)
	if err != nil {
		m.logger.Error("failed to drop sessions",
			slog.String("login", login),
			slog.Any("error", err))
		return 0, err
	}

	if dropped > 0 {
		m.logger.Info("sessions invalidated",
			slog.String("login", login),
			slog.Int64("count", dropped))
	}
	return dropped, nil
}
