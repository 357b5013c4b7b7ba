package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/diagnoseapp/accountsec/internal/models"
	pkgauth "github.com/diagnoseapp/accountsec/pkg/auth"
	pkglogger "github.com/diagnoseapp/accountsec/pkg/logger"
)

// MockAccountStore implements AccountStore for testing
type MockAccountStore struct {
	GetByLoginFunc                    func(ctx context.Context, login string) (*models.Account, error)
	ListByEmailFunc                   func(ctx context.Context, email string) ([]*models.Account, error)
	CountByEmailFunc                  func(ctx context.Context, email string) (int, error)
	CreateFunc                        func(ctx context.Context, account *models.Account) (*models.Account, error)
	ActivateFunc                      func(ctx context.Context, login string) error
	ClearBlockFunc                    func(ctx context.Context, login string) error
	BlockActivatedByEmailFunc         func(ctx context.Context, email string, until time.Time) (int64, error)
	TouchLastLoginFunc                func(ctx context.Context, login string, at time.Time) error
	UpdatePasswordAndDropSessionsFunc func(ctx context.Context, login, passwordHash string) error
}

func (m *MockAccountStore) GetByLogin(ctx context.Context, login string) (*models.Account, error) {
	if m.GetByLoginFunc != nil {
		return m.GetByLoginFunc(ctx, login)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountStore) ListByEmail(ctx context.Context, email string) ([]*models.Account, error) {
	if m.ListByEmailFunc != nil {
		return m.ListByEmailFunc(ctx, email)
	}
	return []*models.Account{}, nil
}

func (m *MockAccountStore) CountByEmail(ctx context.Context, email string) (int, error) {
	if m.CountByEmailFunc != nil {
		return m.CountByEmailFunc(ctx, email)
	}
	return 0, nil
}

func (m *MockAccountStore) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	account.ID = "account123"
	account.CreatedAt = time.Now()
	account.UpdatedAt = time.Now()
	return account, nil
}

func (m *MockAccountStore) Activate(ctx context.Context, login string) error {
	if m.ActivateFunc != nil {
		return m.ActivateFunc(ctx, login)
	}
	return nil
}

func (m *MockAccountStore) ClearBlock(ctx context.Context, login string) error {
	if m.ClearBlockFunc != nil {
		return m.ClearBlockFunc(ctx, login)
	}
	return nil
}

func (m *MockAccountStore) BlockActivatedByEmail(ctx context.Context, email string, until time.Time) (int64, error) {
	if m.BlockActivatedByEmailFunc != nil {
		return m.BlockActivatedByEmailFunc(ctx, email, until)
	}
	return 1, nil
}

func (m *MockAccountStore) TouchLastLogin(ctx context.Context, login string, at time.Time) error {
	if m.TouchLastLoginFunc != nil {
		return m.TouchLastLoginFunc(ctx, login, at)
	}
	return nil
}

func (m *MockAccountStore) UpdatePasswordAndDropSessions(ctx context.Context, login, passwordHash string) error {
	if m.UpdatePasswordAndDropSessionsFunc != nil {
		return m.UpdatePasswordAndDropSessionsFunc(ctx, login, passwordHash)
	}
	return nil
}

// MockAttemptStore implements AttemptStore for testing
type MockAttemptStore struct {
	IncrementFunc func(ctx context.Context, email string) (int, error)
	ClearFunc     func(ctx context.Context, email string) error
	CountFunc     func(ctx context.Context, email string) (int, error)
}

func (m *MockAttemptStore) Increment(ctx context.Context, email string) (int, error) {
	if m.IncrementFunc != nil {
		return m.IncrementFunc(ctx, email)
	}
	return 1, nil
}

func (m *MockAttemptStore) Clear(ctx context.Context, email string) error {
	if m.ClearFunc != nil {
		return m.ClearFunc(ctx, email)
	}
	return nil
}

func (m *MockAttemptStore) Count(ctx context.Context, email string) (int, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx, email)
	}
	return 0, nil
}

// MockSessionStore implements SessionStore for testing
type MockSessionStore struct {
	CreateAndTrimFunc   func(ctx context.Context, session *models.Session, limit int) error
	DeleteByTokenIDFunc func(ctx context.Context, tokenID string) error
	DeleteByLoginFunc   func(ctx context.Context, login string) (int64, error)
}

func (m *MockSessionStore) CreateAndTrim(ctx context.Context, session *models.Session, limit int) error {
	if m.CreateAndTrimFunc != nil {
		return m.CreateAndTrimFunc(ctx, session, limit)
	}
	return nil
}

func (m *MockSessionStore) DeleteByTokenID(ctx context.Context, tokenID string) error {
	if m.DeleteByTokenIDFunc != nil {
		return m.DeleteByTokenIDFunc(ctx, tokenID)
	}
	return nil
}

func (m *MockSessionStore) DeleteByLogin(ctx context.Context, login string) (int64, error) {
	if m.DeleteByLoginFunc != nil {
		return m.DeleteByLoginFunc(ctx, login)
	}
	return 0, nil
}

// MockTokenStore implements TokenStore for testing
type MockTokenStore struct {
	CreateFunc    func(ctx context.Context, token *models.AccountToken) (*models.AccountToken, error)
	GetByHashFunc func(ctx context.Context, purpose, tokenHash string) (*models.AccountToken, error)
	MarkUsedFunc  func(ctx context.Context, id string) error
}

func (m *MockTokenStore) Create(ctx context.Context, token *models.AccountToken) (*models.AccountToken, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, token)
	}
	token.ID = "token123"
	token.CreatedAt = time.Now()
	return token, nil
}

func (m *MockTokenStore) GetByHash(ctx context.Context, purpose, tokenHash string) (*models.AccountToken, error) {
	if m.GetByHashFunc != nil {
		return m.GetByHashFunc(ctx, purpose, tokenHash)
	}
	return nil, models.ErrNotFound
}

func (m *MockTokenStore) MarkUsed(ctx context.Context, id string) error {
	if m.MarkUsedFunc != nil {
		return m.MarkUsedFunc(ctx, id)
	}
	return nil
}

// MockNotificationPort implements NotificationPort for testing
type MockNotificationPort struct {
	SendActivationLinkFunc  func(ctx context.Context, email, token string, expiresAt time.Time) error
	SendPasswordResetFunc   func(ctx context.Context, email, token string, expiresAt time.Time) error
	SendPasswordChangedFunc func(ctx context.Context, email string) error
	SendAccountBlockedFunc  func(ctx context.Context, email string, until time.Time) error
}

func (m *MockNotificationPort) SendActivationLink(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.SendActivationLinkFunc != nil {
		return m.SendActivationLinkFunc(ctx, email, token, expiresAt)
	}
	return nil
}

func (m *MockNotificationPort) SendPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.SendPasswordResetFunc != nil {
		return m.SendPasswordResetFunc(ctx, email, token, expiresAt)
	}
	return nil
}

func (m *MockNotificationPort) SendPasswordChanged(ctx context.Context, email string) error {
	if m.SendPasswordChangedFunc != nil {
		return m.SendPasswordChangedFunc(ctx, email)
	}
	return nil
}

func (m *MockNotificationPort) SendAccountBlocked(ctx context.Context, email string, until time.Time) error {
	if m.SendAccountBlockedFunc != nil {
		return m.SendAccountBlockedFunc(ctx, email, until)
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAudit() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(testLogger())
}

// NewTestAccount builds an activated, unblocked account with the given
// password and secret word already hashed.
func NewTestAccount(login, email, password, secretWord string) *models.Account {
	passwordHash, err := pkgauth.HashPassword(password)
	if err != nil {
		panic(err)
	}

	account := &models.Account{
		ID:           "account123",
		Login:        login,
		Email:        email,
		PasswordHash: passwordHash,
		Activated:    true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if secretWord != "" {
		secretHash, err := pkgauth.HashPassword(pkgauth.NormalizeSecretWord(secretWord))
		if err != nil {
			panic(err)
		}
		account.SecretWordHash = &secretHash
	}

	return account
}
