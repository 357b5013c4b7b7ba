package integration

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/diagnoseapp/accountsec/internal/auth"
	"github.com/diagnoseapp/accountsec/internal/repositories"
	"github.com/diagnoseapp/accountsec/internal/services"
	pkglogger "github.com/diagnoseapp/accountsec/pkg/logger"
)

// CapturingNotifier records outgoing notifications instead of talking to
// SES, so tests can pick the plain tokens out of "emails".
type CapturingNotifier struct {
	mu             sync.Mutex
	ActivationSent []SentToken
	ResetSent      []SentToken
	ChangedSent    []string
	BlockedSent    []string
}

// SentToken is one captured token-bearing email.
type SentToken struct {
	Email string
	Token string
}

func (n *CapturingNotifier) SendActivationLink(ctx context.Context, email, token string, expiresAt time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ActivationSent = append(n.ActivationSent, SentToken{Email: email, Token: token})
	return nil
}

func (n *CapturingNotifier) SendPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ResetSent = append(n.ResetSent, SentToken{Email: email, Token: token})
	return nil
}

func (n *CapturingNotifier) SendPasswordChanged(ctx context.Context, email string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ChangedSent = append(n.ChangedSent, email)
	return nil
}

func (n *CapturingNotifier) SendAccountBlocked(ctx context.Context, email string, until time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.BlockedSent = append(n.BlockedSent, email)
	return nil
}

// LastActivationToken returns the most recent activation token, waiting
// briefly because sends are asynchronous.
func (n *CapturingNotifier) LastActivationToken() string {
	return n.waitForToken(func() []SentToken { return n.ActivationSent })
}

// LastResetToken returns the most recent reset token, waiting briefly
// because sends are asynchronous.
func (n *CapturingNotifier) LastResetToken() string {
	return n.waitForToken(func() []SentToken { return n.ResetSent })
}

func (n *CapturingNotifier) waitForToken(get func() []SentToken) string {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n.mu.Lock()
		sent := get()
		if len(sent) > 0 {
			token := sent[len(sent)-1].Token
			n.mu.Unlock()
			return token
		}
		n.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	return ""
}

// TestStack wires real repositories and services against the test database.
type TestStack struct {
	Accounts *repositories.AccountRepository
	Attempts *repositories.AttemptRepository
	Sessions *repositories.SessionRepository
	Tokens   *repositories.TokenRepository

	TokenManager *auth.SessionTokenManager
	Auth         *services.AuthService
	Recovery     *services.RecoveryService
	Notifier     *CapturingNotifier
}

// NewTestStack builds the full service stack with production defaults
// except for a near-zero failure delay.
func NewTestStack(db *TestDB) *TestStack {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	audit := pkglogger.NewAuditLogger(logger)
	notifier := &CapturingNotifier{}

	accountRepo := repositories.NewAccountRepository(db.DB)
	attemptRepo := repositories.NewAttemptRepository(db.DB)
	sessionRepo := repositories.NewSessionRepository(db.DB)
	tokenRepo := repositories.NewTokenRepository(db.DB)

	tokenManager := auth.NewSessionTokenManager("integration-test-secret-32-chars", 2*time.Hour)
	failureDelay := auth.NewFixedDelay(time.Millisecond)

	blockingPolicy := services.NewBlockingPolicy(accountRepo, notifier, logger, audit)
	attemptTracker := services.NewAttemptTracker(attemptRepo, 3, logger)
	sessionManager := services.NewSessionManager(tokenManager, sessionRepo, 5, logger)
	tokenService := services.NewTokenService(tokenRepo, time.Hour, 24*time.Hour, logger)

	authService := services.NewAuthService(
		accountRepo, blockingPolicy, sessionManager, tokenService,
		notifier, failureDelay, 3, logger, audit)
	recoveryService := services.NewRecoveryService(
		accountRepo, attemptTracker, blockingPolicy, tokenService,
		notifier, logger, audit)

	return &TestStack{
		Accounts:     accountRepo,
		Attempts:     attemptRepo,
		Sessions:     sessionRepo,
		Tokens:       tokenRepo,
		TokenManager: tokenManager,
		Auth:         authService,
		Recovery:     recoveryService,
		Notifier:     notifier,
	}
}
