package services

import (
	"context"
	"testing"
	"time"

	"github.com/diagnoseapp/accountsec/internal/auth"
	"github.com/diagnoseapp/accountsec/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthService(accounts *MockAccountStore, sessions *MockSessionStore, tokens *MockTokenStore, notifier *MockNotificationPort) *AuthService {
	logger := testLogger()
	audit := testAudit()
	if sessions == nil {
		sessions = &MockSessionStore{}
	}
	if tokens == nil {
		tokens = &MockTokenStore{}
	}
	if notifier == nil {
		notifier = &MockNotificationPort{}
	}

	blocking := NewBlockingPolicy(accounts, notifier, logger, audit)
	tokenManager := auth.NewSessionTokenManager("test-session-secret-32-chars-long", 2*time.Hour)
	sessionManager := NewSessionManager(tokenManager, sessions, 5, logger)
	tokenService := NewTokenService(tokens, time.Hour, 24*time.Hour, logger)
	delay := auth.NewFixedDelay(10 * time.Millisecond)

	return NewAuthService(accounts, blocking, sessionManager, tokenService, notifier, delay, 3, logger, audit)
}

func TestAuthService_Login_Success(t *testing.T) {
	account := NewTestAccount("alice", "alice@example.com", "OtterRiver7", "")

	var touched bool
	accounts := &MockAccountStore{
		GetByLoginFunc: func(ctx context.Context, login string) (*models.Account, error) {
			return account, nil
		},
		TouchLastLoginFunc: func(ctx context.Context, login string, at time.Time) error {
			touched = true
			return nil
		},
	}

	var persisted *models.Session
	sessions := &MockSessionStore{
		CreateAndTrimFunc: func(ctx context.Context, session *models.Session, limit int) error {
			persisted = session
			assert.Equal(t, 5, limit)
			return nil
		},
	}

	service := newTestAuthService(accounts, sessions, nil, nil)

	issued, err := service.Login(context.Background(), "alice", "OtterRiver7", "203.0.113.1")

	require.NoError(t, err)
	require.NotNil(t, issued)
	assert.NotEmpty(t, issued.Token)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), issued.ExpiresAt, 5*time.Second)
	require.NotNil(t, persisted)
	assert.Equal(t, "alice", persisted.Login)
	assert.NotEmpty(t, persisted.TokenID)
	assert.True(t, touched)
}

func TestAuthService_Login_UnknownLogin(t *testing.T) {
	accounts := &MockAccountStore{
		GetByLoginFunc: func(ctx context.Context, login string) (*models.Account, error) {
			return nil, models.ErrNotFound
		},
	}

	service := newTestAuthService(accounts, nil, nil, nil)

	start := time.Now()
	issued, err := service.Login(context.Background(), "ghost", "whatever1", "")

	assert.Nil(t, issued)
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	account := NewTestAccount("alice", "alice@example.com", "OtterRiver7", "")
	accounts := &MockAccountStore{
		GetByLoginFunc: func(ctx context.Context, login string) (*models.Account, error) {
			return account, nil
		},
	}

	service := newTestAuthService(accounts, nil, nil, nil)

	start := time.Now()
	issued, err := service.Login(context.Background(), "alice", "WrongPassword1", "")

	assert.Nil(t, issued)
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestAuthService_Login_NotActivated(t *testing.T) {
	account := NewTestAccount("bob", "bob@example.com", "OtterRiver7", "")
	account.Activated = false

	accounts := &MockAccountStore{
		GetByLoginFunc: func(ctx context.Context, login string) (*models.Account, error) {
			return account, nil
		},
	}

	service := newTestAuthService(accounts, nil, nil, nil)

	issued, err := service.Login(context.Background(), "bob", "OtterRiver7", "")

	assert.Nil(t, issued)
	assert.ErrorIs(t, err, models.ErrNotActivated)
}

func TestAuthService_Login_Blocked(t *testing.T) {
	account := NewTestAccount("carol", "carol@example.com", "OtterRiver7", "")
	until := time.Now().Add(24 * time.Hour)
	account.Blocked = true
	account.BlockedUntil = &until

	accounts := &MockAccountStore{
		GetByLoginFunc: func(ctx context.Context, login string) (*models.Account, error) {
			return account, nil
		},
	}

	service := newTestAuthService(accounts, nil, nil, nil)

	issued, err := service.Login(context.Background(), "carol", "OtterRiver7", "")

	assert.Nil(t, issued)
	var blocked *models.BlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, until.Unix(), blocked.Until.Unix())
	assert.False(t, blocked.Permanent())
}

func TestAuthService_Login_ExpiredBlockAutoUnblocks(t *testing.T) {
	account := NewTestAccount("dave", "dave@example.com", "OtterRiver7", "")
	until := time.Now().Add(-time.Hour)
	account.Blocked = true
	account.BlockedUntil = &until

	var cleared bool
	accounts := &MockAccountStore{
		GetByLoginFunc: func(ctx context.Context, login string) (*models.Account, error) {
			return account, nil
		},
		ClearBlockFunc: func(ctx context.Context, login string) error {
			cleared = true
			return nil
		},
	}

	service := newTestAuthService(accounts, nil, nil, nil)

	issued, err := service.Login(context.Background(), "dave", "OtterRiver7", "")

	require.NoError(t, err)
	assert.NotNil(t, issued)
	assert.True(t, cleared)
	assert.False(t, account.Blocked)
}

func TestAuthService_Register_Success(t *testing.T) {
	activationSent := make(chan string, 1)
	accounts := &MockAccountStore{
		CountByEmailFunc: func(ctx context.Context, email string) (int, error) {
			return 1, nil
		},
	}
	notifier := &MockNotificationPort{
		SendActivationLinkFunc: func(ctx context.Context, email, token string, expiresAt time.Time) error {
			activationSent <- token
			return nil
		},
	}

	service := newTestAuthService(accounts, nil, nil, notifier)

	result, err := service.Register(context.Background(), "erin", "erin@example.com", "OtterRiver7", "otter")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "erin", result.Account.Login)
	assert.False(t, result.Account.Activated)
	assert.NotNil(t, result.Account.SecretWordHash)
	assert.Equal(t, 2, result.AccountsForEmail)
	assert.Equal(t, 3, result.AccountsCap)

	select {
	case token := <-activationSent:
		assert.NotEmpty(t, token)
	case <-time.After(2 * time.Second):
		t.Fatal("activation email was not sent")
	}
}

func TestAuthService_Register_EmailCapReached(t *testing.T) {
	accounts := &MockAccountStore{
		CountByEmailFunc: func(ctx context.Context, email string) (int, error) {
			return 3, nil
		},
	}

	service := newTestAuthService(accounts, nil, nil, nil)

	result, err := service.Register(context.Background(), "frank", "shared@example.com", "OtterRiver7", "")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrEmailCapReached)
}

func TestAuthService_Register_DuplicateLogin(t *testing.T) {
	existing := NewTestAccount("grace", "grace@example.com", "OtterRiver7", "")
	accounts := &MockAccountStore{
		GetByLoginFunc: func(ctx context.Context, login string) (*models.Account, error) {
			return existing, nil
		},
	}

	service := newTestAuthService(accounts, nil, nil, nil)

	result, err := service.Register(context.Background(), "grace", "other@example.com", "OtterRiver7", "")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestAuthService_Register_WeakPassword(t *testing.T) {
	service := newTestAuthService(&MockAccountStore{}, nil, nil, nil)

	result, err := service.Register(context.Background(), "henry", "henry@example.com", "short", "")

	assert.Nil(t, result)
	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "password", validation.Field)
}

func TestAuthService_Confirm_ActivatesAndConsumes(t *testing.T) {
	tokens := &MockTokenStore{}
	service := newTestAuthService(&MockAccountStore{}, nil, tokens, nil)

	// Issue a real confirmation token through the service so the hash in
	// the store matches what Confirm computes.
	var stored *models.AccountToken
	tokens.CreateFunc = func(ctx context.Context, token *models.AccountToken) (*models.AccountToken, error) {
		token.ID = "token123"
		stored = token
		return token, nil
	}
	plain, _, err := service.tokens.IssueConfirm(context.Background(), "ivy@example.com", "ivy")
	require.NoError(t, err)

	var activated, consumed bool
	tokens.GetByHashFunc = func(ctx context.Context, purpose, tokenHash string) (*models.AccountToken, error) {
		assert.Equal(t, models.TokenPurposeConfirm, purpose)
		if tokenHash == stored.TokenHash {
			return stored, nil
		}
		return nil, models.ErrNotFound
	}
	tokens.MarkUsedFunc = func(ctx context.Context, id string) error {
		consumed = true
		assert.Equal(t, "token123", id)
		return nil
	}
	service.accounts.(*MockAccountStore).ActivateFunc = func(ctx context.Context, login string) error {
		activated = true
		assert.Equal(t, "ivy", login)
		return nil
	}

	login, err := service.Confirm(context.Background(), plain)

	require.NoError(t, err)
	assert.Equal(t, "ivy", login)
	assert.True(t, activated)
	assert.True(t, consumed)
}

func TestAuthService_Confirm_UnknownToken(t *testing.T) {
	service := newTestAuthService(&MockAccountStore{}, nil, &MockTokenStore{}, nil)

	_, err := service.Confirm(context.Background(), "nonexistent-token")

	var invalid *models.TokenInvalidError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, models.TokenReasonUnknown, invalid.Reason)
}

func TestAuthService_Logout_Idempotent(t *testing.T) {
	sessions := &MockSessionStore{
		DeleteByTokenIDFunc: func(ctx context.Context, tokenID string) error {
			return models.ErrNotFound
		},
	}

	service := newTestAuthService(&MockAccountStore{}, sessions, nil, nil)

	err := service.Logout(context.Background(), "alice", "gone-jti")

	assert.NoError(t, err)
}
