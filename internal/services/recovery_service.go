package services

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/diagnoseapp/accountsec/internal/models"
	pkgauth "github.com/diagnoseapp/accountsec/pkg/auth"
	pkglogger "github.com/diagnoseapp/accountsec/pkg/logger"
)

// RecoveryService implements password recovery and password change. Both
// flows share the per-email failure counter: three failed verifications,
// whether of the secret word or the current password, block every activated
// account under the email.
type RecoveryService struct {
	accounts AccountStore
	attempts *AttemptTracker
	blocking *BlockingPolicy
	tokens   *TokenService
	notifier NotificationPort
	logger   *slog.Logger
	audit    *pkglogger.AuditLogger
}

// NewRecoveryService creates a new RecoveryService
func NewRecoveryService(
	accounts AccountStore,
	attempts *AttemptTracker,
	blocking *BlockingPolicy,
	tokens *TokenService,
	notifier NotificationPort,
	logger *slog.Logger,
	audit *pkglogger.AuditLogger,
) *RecoveryService {
	return &RecoveryService{
		accounts: accounts,
		attempts: attempts,
		blocking: blocking,
		tokens:   tokens,
		notifier: notifier,
		logger:   logger,
		audit:    audit,
	}
}

// ForgotPassword verifies the secret word for an email and, on success,
// issues a reset token and mails it.
//
// An email with no activated account is reported as not found; this
// discloses registration state on purpose, so the form can tell the user
// to register instead of silently pretending to send mail. When several
// activated accounts share the email, a secret word matching any of them
// succeeds, and the reset token is bound to the matching login.
func (s *RecoveryService) ForgotPassword(ctx context.Context, email, secretWord, ipAddress string) error {
	accounts, err := s.accounts.ListByEmail(ctx, email)
	if err != nil {
		s.logger.Error("failed to list accounts for email", slog.Any("error", err))
		return models.ErrInternalServer
	}

	activated := make([]*models.Account, 0, len(accounts))
	for _, account := range accounts {
		if account.Activated {
			activated = append(activated, account)
		}
	}
	if len(activated) == 0 {
		s.audit.LogRecoveryAttempt(pkglogger.AuditEvent{
			EventType:     "forgot_password",
			Email:         email,
			IPAddress:     ipAddress,
			Success:       false,
			FailureReason: "unknown_email",
		})
		return models.ErrNotFound
	}

	for _, account := range activated {
		status, err := s.blocking.Evaluate(ctx, account)
		if err != nil {
			return err
		}
		if status.IsBlocked() {
			s.audit.LogRecoveryAttempt(pkglogger.AuditEvent{
				EventType:     "forgot_password",
				Email:         email,
				IPAddress:     ipAddress,
				Success:       false,
				FailureReason: "blocked",
			})
			return &models.BlockedError{Until: *status.Until}
		}
	}

	count, err := s.attempts.CurrentCount(ctx, email)
	if err != nil {
		s.logger.Error("failed to read attempt counter", slog.Any("error", err))
		return models.ErrInternalServer
	}
	if count >= s.attempts.Limit() {
		return &models.RateLimitError{Remaining: 0}
	}

	matched := s.matchSecretWord(activated, secretWord)
	if matched == nil {
		return s.handleVerificationFailure(ctx, email, ipAddress, "forgot_password", s.hasSecretWord(activated))
	}

	if err := s.attempts.RecordSuccess(ctx, email); err != nil {
		return models.ErrInternalServer
	}

	plain, record, err := s.tokens.IssueReset(ctx, email, matched.Login)
	if err != nil {
		return models.ErrInternalServer
	}

	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), notificationSendTimeout)
		defer cancel()
		if err := s.notifier.SendPasswordReset(sendCtx, email, plain, record.ExpiresAt); err != nil {
			s.logger.Error("failed to send reset email",
				slog.String("email", pkglogger.SanitizedEmail(email)),
				slog.Any("error", err))
		}
	}()

	s.audit.LogRecoveryAttempt(pkglogger.AuditEvent{
		EventType: "forgot_password",
		Login:     matched.Login,
		Email:     email,
		IPAddress: ipAddress,
		Success:   true,
	})
	return nil
}

// matchSecretWord compares the normalized candidate against every account
// that has a secret word configured. Any match wins.
func (s *RecoveryService) matchSecretWord(accounts []*models.Account, secretWord string) *models.Account {
	normalized := pkgauth.NormalizeSecretWord(secretWord)
	for _, account := range accounts {
		if account.SecretWordHash == nil {
			continue
		}
		if pkgauth.ComparePassword(*account.SecretWordHash, normalized) == nil {
			return account
		}
	}
	return nil
}

func (s *RecoveryService) hasSecretWord(accounts []*models.Account) bool {
	for _, account := range accounts {
		if account.SecretWordHash != nil {
			return true
		}
	}
	return false
}

// handleVerificationFailure records a failed verification, escalates to a
// block when the attempt budget is spent, and shapes the user-facing error.
func (s *RecoveryService) handleVerificationFailure(ctx context.Context, email, ipAddress, eventType string, hadSecretWord bool) error {
	count, err := s.attempts.RecordFailure(ctx, email)
	if err != nil {
		return models.ErrInternalServer
	}

	reason := "wrong_secret_word"
	if !hadSecretWord {
		reason = "no_secret_word"
	}
	s.audit.LogRecoveryAttempt(pkglogger.AuditEvent{
		EventType:     eventType,
		Email:         email,
		IPAddress:     ipAddress,
		Success:       false,
		FailureReason: reason,
		Metadata:      map[string]string{"attempts": strconv.Itoa(count)},
	})

	if count >= s.attempts.Limit() {
		if err := s.blocking.Escalate(ctx, email, reason); err != nil {
			return models.ErrInternalServer
		}
		return &models.BlockedError{Until: models.PermanentBlockSentinel}
	}

	if !hadSecretWord {
		return models.ErrNoSecretWord
	}
	return &models.WrongSecretWordError{Remaining: s.attempts.Remaining(count)}
}

// ValidateResetToken checks a reset token without consuming it, so the
// reset form can be rendered and revisited until the actual reset happens.
func (s *RecoveryService) ValidateResetToken(ctx context.Context, plainToken string) (*models.AccountToken, error) {
	return s.tokens.Validate(ctx, models.TokenPurposeReset, plainToken)
}

// ResetPassword redeems a reset token and sets a new password. The token
// is consumed only after the password write lands; every session of the
// account is dropped in the same transaction as the write.
func (s *RecoveryService) ResetPassword(ctx context.Context, plainToken, newPassword string) error {
	record, err := s.tokens.Validate(ctx, models.TokenPurposeReset, plainToken)
	if err != nil {
		return err
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return &models.ValidationError{Field: "password", Message: err.Error()}
	}

	account, err := s.accounts.GetByLogin(ctx, record.Login)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return &models.TokenInvalidError{Reason: models.TokenReasonUnknown}
		}
		s.logger.Error("failed to load account", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if pkgauth.ComparePassword(account.PasswordHash, newPassword) == nil {
		return models.ErrSamePassword
	}

	if err := s.writePassword(ctx, account, newPassword); err != nil {
		return err
	}

	if err := s.tokens.Consume(ctx, record.ID); err != nil {
		// The password already changed; a consume failure means a
		// concurrent redemption won the race after our write.
		return models.ErrInternalServer
	}

	if err := s.attempts.RecordSuccess(ctx, account.Email); err != nil {
		s.logger.Warn("failed to clear attempt counter", slog.Any("error", err))
	}

	s.audit.LogRecoveryAttempt(pkglogger.AuditEvent{
		EventType: "reset_password",
		Login:     account.Login,
		Email:     account.Email,
		Success:   true,
	})
	return nil
}

// ChangePassword sets a new password for an authenticated account after
// verifying both the current password and the secret word. Failed
// verifications of either count toward the same per-email budget as
// recovery, with the same escalation.
func (s *RecoveryService) ChangePassword(ctx context.Context, login, currentPassword, newPassword, secretWord, ipAddress string) error {
	account, err := s.accounts.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUnauthorized
		}
		s.logger.Error("failed to load account", slog.Any("error", err))
		return models.ErrInternalServer
	}

	status, err := s.blocking.Evaluate(ctx, account)
	if err != nil {
		return err
	}
	if status.IsBlocked() {
		return &models.BlockedError{Until: *status.Until}
	}

	count, err := s.attempts.CurrentCount(ctx, account.Email)
	if err != nil {
		s.logger.Error("failed to read attempt counter", slog.Any("error", err))
		return models.ErrInternalServer
	}
	if count >= s.attempts.Limit() {
		return &models.RateLimitError{Remaining: 0}
	}

	if pkgauth.ComparePassword(account.PasswordHash, currentPassword) != nil {
		count, err := s.attempts.RecordFailure(ctx, account.Email)
		if err != nil {
			return models.ErrInternalServer
		}
		s.audit.LogRecoveryAttempt(pkglogger.AuditEvent{
			EventType:     "change_password",
			Login:         login,
			Email:         account.Email,
			IPAddress:     ipAddress,
			Success:       false,
			FailureReason: "wrong_password",
		})
		if count >= s.attempts.Limit() {
			if err := s.blocking.Escalate(ctx, account.Email, "wrong_password"); err != nil {
				return models.ErrInternalServer
			}
			return &models.BlockedError{Until: models.PermanentBlockSentinel}
		}
		return models.ErrInvalidCredentials
	}

	if s.matchSecretWord([]*models.Account{account}, secretWord) == nil {
		return s.handleVerificationFailure(ctx, account.Email, ipAddress, "change_password", account.SecretWordHash != nil)
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return &models.ValidationError{Field: "newPassword", Message: err.Error()}
	}
	if pkgauth.ComparePassword(account.PasswordHash, newPassword) == nil {
		return models.ErrSamePassword
	}

	if err := s.writePassword(ctx, account, newPassword); err != nil {
		return err
	}

	if err := s.attempts.RecordSuccess(ctx, account.Email); err != nil {
		s.logger.Warn("failed to clear attempt counter", slog.Any("error", err))
	}

	s.audit.LogRecoveryAttempt(pkglogger.AuditEvent{
		EventType: "change_password",
		Login:     login,
		Email:     account.Email,
		IPAddress: ipAddress,
		Success:   true,
	})
	return nil
}

// writePassword hashes and stores a new password, dropping every session
// of the account in the same transaction, then mails a change notice.
func (s *RecoveryService) writePassword(ctx context.Context, account *models.Account, newPassword string) error {
	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.accounts.UpdatePasswordAndDropSessions(ctx, account.Login, hash); err != nil {
		s.logger.Error("failed to update password",
			slog.String("login", account.Login),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	email := account.Email
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), notificationSendTimeout)
		defer cancel()
		if err := s.notifier.SendPasswordChanged(sendCtx, email); err != nil {
			s.logger.Error("failed to send password change notice",
				slog.String("email", pkglogger.SanitizedEmail(email)),
				slog.Any("error", err))
		}
	}()

	return nil
}
