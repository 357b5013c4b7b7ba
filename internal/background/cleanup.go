package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/diagnoseapp/accountsec/internal/repositories"
)

// CleanupManager periodically removes rows that only have value while
// fresh: expired session rows, consumed or expired email tokens, and
// stale failure counters.
type CleanupManager struct {
	sessions     *repositories.SessionRepository
	tokens       *repositories.TokenRepository
	attempts     *repositories.AttemptRepository
	sessionTTL   time.Duration
	attemptStale time.Duration
	logger       *slog.Logger
	interval     time.Duration
	stopCh       chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	sessions *repositories.SessionRepository,
	tokens *repositories.TokenRepository,
	attempts *repositories.AttemptRepository,
	sessionTTL time.Duration,
	attemptStale time.Duration,
	interval time.Duration,
	logger *slog.Logger,
) *CleanupManager {
	return &CleanupManager{
		sessions:     sessions,
		tokens:       tokens,
		attempts:     attempts,
		sessionTTL:   sessionTTL,
		attemptStale: attemptStale,
		logger:       logger,
		interval:     interval,
		stopCh:       make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Session rows become dead once the signed token inside them has
	// expired; the cutoff is creation time plus the token TTL.
	sessionCutoff := time.Now().Add(-cm.sessionTTL)
	if deleted, err := cm.sessions.DeleteCreatedBefore(cleanupCtx, sessionCutoff); err != nil {
		cm.logger.Error("failed to clean up expired sessions", slog.Any("error", err))
	} else if deleted > 0 {
		cm.logger.Info("expired sessions cleaned up", slog.Int64("rows_deleted", deleted))
	}

	if deleted, err := cm.tokens.CleanupExpired(cleanupCtx); err != nil {
		cm.logger.Error("failed to clean up email tokens", slog.Any("error", err))
	} else if deleted > 0 {
		cm.logger.Info("spent email tokens cleaned up", slog.Int64("rows_deleted", deleted))
	}

	// Counters below the limit that went quiet long ago are noise; a
	// counter that already triggered a block has done its job.
	attemptCutoff := time.Now().Add(-cm.attemptStale)
	if deleted, err := cm.attempts.DeleteStale(cleanupCtx, attemptCutoff); err != nil {
		cm.logger.Error("failed to clean up stale attempt counters", slog.Any("error", err))
	} else if deleted > 0 {
		cm.logger.Info("stale attempt counters cleaned up", slog.Int64("rows_deleted", deleted))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
