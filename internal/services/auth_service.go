package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/diagnoseapp/accountsec/internal/auth"
	"github.com/diagnoseapp/accountsec/internal/models"
	pkgauth "github.com/diagnoseapp/accountsec/pkg/auth"
	pkglogger "github.com/diagnoseapp/accountsec/pkg/logger"
)

const notificationSendTimeout = 15 * time.Second

// AuthService implements login, registration, confirmation and logout.
type AuthService struct {
	accounts    AccountStore
	blocking    *BlockingPolicy
	sessions    *SessionManager
	tokens      *TokenService
	notifier    NotificationPort
	delay       *auth.FixedDelay
	maxPerEmail int
	logger      *slog.Logger
	audit       *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	accounts AccountStore,
	blocking *BlockingPolicy,
	sessions *SessionManager,
	tokens *TokenService,
	notifier NotificationPort,
	delay *auth.FixedDelay,
	maxPerEmail int,
	logger *slog.Logger,
	audit *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		accounts:    accounts,
		blocking:    blocking,
		sessions:    sessions,
		tokens:      tokens,
		notifier:    notifier,
		delay:       delay,
		maxPerEmail: maxPerEmail,
		logger:      logger,
		audit:       audit,
	}
}

// Login authenticates a login and password and issues a session token.
//
// Every negative outcome converges on the same fixed response latency,
// measured from entry, so timing cannot separate "no such login" from
// "wrong password" or from a blocked account.
func (s *AuthService) Login(ctx context.Context, login, password, ipAddress string) (*IssuedSession, error) {
	start := time.Now()

	account, err := s.accounts.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.audit.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login",
				Login:         login,
				IPAddress:     ipAddress,
				Success:       false,
				FailureReason: "unknown_login",
			})
			s.delay.WaitFrom(start, false)
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to load account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	status, err := s.blocking.Evaluate(ctx, account)
	if err != nil {
		return nil, err
	}
	if status.IsBlocked() {
		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login",
			Login:         login,
			Email:         account.Email,
			IPAddress:     ipAddress,
			Success:       false,
			FailureReason: "blocked",
		})
		s.delay.WaitFrom(start, false)
		return nil, &models.BlockedError{Until: *status.Until}
	}
	if status.State == models.StateUnactivated {
		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login",
			Login:         login,
			Email:         account.Email,
			IPAddress:     ipAddress,
			Success:       false,
			FailureReason: "not_activated",
		})
		s.delay.WaitFrom(start, false)
		return nil, models.ErrNotActivated
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, password); err != nil {
		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login",
			Login:         login,
			Email:         account.Email,
			IPAddress:     ipAddress,
			Success:       false,
			FailureReason: "wrong_password",
		})
		s.delay.WaitFrom(start, false)
		return nil, models.ErrInvalidCredentials
	}

	issued, err := s.sessions.CreateSession(ctx, account)
	if err != nil {
		return nil, models.ErrInternalServer
	}

	if err := s.accounts.TouchLastLogin(ctx, login, time.Now()); err != nil {
		s.logger.Warn("failed to record last login", slog.Any("error", err))
	}

	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login",
		Login:     login,
		Email:     account.Email,
		IPAddress: ipAddress,
		Success:   true,
	})

	return issued, nil
}

// RegistrationResult reports the created account and how much of the
// per-email account budget is now used.
type RegistrationResult struct {
	Account          *models.Account
	AccountsForEmail int
	AccountsCap      int
}

// Register creates an unactivated account and mails an activation link.
// The account stays unable to log in until the link is followed.
func (s *AuthService) Register(ctx context.Context, login, email, password, secretWord string) (*RegistrationResult, error) {
	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, &models.ValidationError{Field: "password", Message: err.Error()}
	}

	var secretHash *string
	if secretWord != "" {
		if err := pkgauth.ValidateSecretWord(secretWord); err != nil {
			return nil, &models.ValidationError{Field: "secretWord", Message: err.Error()}
		}
		hash, err := pkgauth.HashPassword(pkgauth.NormalizeSecretWord(secretWord))
		if err != nil {
			s.logger.Error("failed to hash secret word", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		secretHash = &hash
	}

	count, err := s.accounts.CountByEmail(ctx, email)
	if err != nil {
		s.logger.Error("failed to count accounts for email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if count >= s.maxPerEmail {
		return nil, models.ErrEmailCapReached
	}

	if _, err := s.accounts.GetByLogin(ctx, login); err == nil {
		return nil, models.ErrConflict
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check login availability", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	passwordHash, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	account, err := s.accounts.Create(ctx, &models.Account{
		Login:          login,
		Email:          email,
		PasswordHash:   passwordHash,
		SecretWordHash: secretHash,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	plain, record, err := s.tokens.IssueConfirm(ctx, email, login)
	if err != nil {
		// The account exists but cannot be activated yet; the owner can
		// retry registration of the same login only via support. Surface
		// the failure instead of leaving a silent dead account.
		s.logger.Error("failed to issue confirmation token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), notificationSendTimeout)
		defer cancel()
		if err := s.notifier.SendActivationLink(sendCtx, email, plain, record.ExpiresAt); err != nil {
			s.logger.Error("failed to send activation email",
				slog.String("email", pkglogger.SanitizedEmail(email)),
				slog.Any("error", err))
		}
	}()

	s.audit.LogAccountAction("account_registered", login, map[string]string{
		"email": pkglogger.SanitizedEmail(email),
	})

	return &RegistrationResult{
		Account:          account,
		AccountsForEmail: count + 1,
		AccountsCap:      s.maxPerEmail,
	}, nil
}

// Confirm redeems an activation token. The token is consumed only after
// the activation write lands, so a failed write leaves it redeemable.
func (s *AuthService) Confirm(ctx context.Context, plainToken string) (string, error) {
	record, err := s.tokens.Validate(ctx, models.TokenPurposeConfirm, plainToken)
	if err != nil {
		return "", err
	}

	if err := s.accounts.Activate(ctx, record.Login); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", &models.TokenInvalidError{Reason: models.TokenReasonUnknown}
		}
		s.logger.Error("failed to activate account", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	if err := s.tokens.Consume(ctx, record.ID); err != nil {
		return "", models.ErrInternalServer
	}

	s.audit.LogAccountAction("account_activated", record.Login, nil)
	return record.Login, nil
}

// Logout revokes the presented session. Revoking an already-gone session
// still succeeds.
func (s *AuthService) Logout(ctx context.Context, login, tokenID string) error {
	if err := s.sessions.InvalidateOne(ctx, tokenID); err != nil {
		return models.ErrInternalServer
	}
	s.audit.LogAccountAction("logout", login, nil)
	return nil
}
