package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/diagnoseapp/accountsec/internal/models"
	pkglogger "github.com/diagnoseapp/accountsec/pkg/logger"
)

// BlockingPolicy owns the account block state: it decides whether an
// account may authenticate, lazily lifts expired blocks, and escalates an
// email to blocked when verification attempts are exhausted.
//
// Blocking is intentionally coarse: escalation hits every activated account
// under the email, because password and secret-word guessing target the
// inbox, not a single login.
type BlockingPolicy struct {
	accounts AccountStore
	notifier NotificationPort
	logger   *slog.Logger
	audit    *pkglogger.AuditLogger
	now      func() time.Time
}

// NewBlockingPolicy creates a new BlockingPolicy
func NewBlockingPolicy(accounts AccountStore, notifier NotificationPort, logger *slog.Logger, audit *pkglogger.AuditLogger) *BlockingPolicy {
	return &BlockingPolicy{
		accounts: accounts,
		notifier: notifier,
		logger:   logger,
		audit:    audit,
		now:      time.Now,
	}
}

// Evaluate computes the account's effective status at read time.
//
// A persisted block whose expiry has passed is treated as no block at all;
// the stale flags are cleared as a side effect so the next evaluation takes
// the fast path. Evaluation never writes when the flags are already
// consistent.
func (p *BlockingPolicy) Evaluate(ctx context.Context, account *models.Account) (models.AccountStatus, error) {
	if account.Blocked {
		now := p.now()
		if account.BlockedUntil != nil && now.Before(*account.BlockedUntil) {
			until := *account.BlockedUntil
			return models.AccountStatus{State: models.StateBlocked, Until: &until}, nil
		}

		// Block expired (or flags inconsistent): lazy auto-unblock.
		if err := p.accounts.ClearBlock(ctx, account.Login); err != nil {
			p.logger.Error("failed to clear expired block",
				slog.String("login", account.Login),
				slog.Any("error", err))
			return models.AccountStatus{}, models.ErrInternalServer
		}
		account.Blocked = false
		account.BlockedUntil = nil

		p.audit.LogBlockEvent("auto_unblock", account.Email, nil)
		p.logger.Info("account auto-unblocked", slog.String("login", account.Login))
	}

	if !account.Activated {
		return models.AccountStatus{State: models.StateUnactivated}, nil
	}

	return models.AccountStatus{State: models.StateActive}, nil
}

// Escalate permanently blocks every activated account under the email and
// notifies the owner. Notification failure is logged, never propagated:
// the block must hold even when the email cannot be delivered.
func (p *BlockingPolicy) Escalate(ctx context.Context, email, reason string) error {
	until := models.PermanentBlockSentinel

	blocked, err := p.accounts.BlockActivatedByEmail(ctx, email, until)
	if err != nil {
		p.logger.Error("failed to escalate block",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
		return fmt.Errorf("failed to escalate block: %w", err)
	}

	p.audit.LogBlockEvent("account_blocked", email, &until)
	p.logger.Warn("accounts blocked after repeated failures",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.Int64("accounts_blocked", blocked),
		slog.String("reason", reason))

	if err := p.notifier.SendAccountBlocked(ctx, email, until); err != nil {
		p.logger.Error("failed to send blocked notification",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
	}

	return nil
}

// BlockedMessage renders the user-facing description for a block, telling
// a permanent block apart from a dated one.
func BlockedMessage(until time.Time) string {
	if models.IsPermanentBlock(until) {
		return "Your account is blocked permanently. Contact support to restore access."
	}
	return fmt.Sprintf("Your account is blocked until %s.", until.Format("02.01.2006"))
}
