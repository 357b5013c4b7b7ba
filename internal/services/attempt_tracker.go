package services

import (
	"context"
	"log/slog"
)

// AttemptTracker counts consecutive failed verifications per email. It only
// knows counts; deciding when a count means "escalate" belongs to the
// callers and the BlockingPolicy, which keeps both halves independently
// testable.
type AttemptTracker struct {
	store  AttemptStore
	limit  int
	logger *slog.Logger
}

// NewAttemptTracker creates a new AttemptTracker
func NewAttemptTracker(store AttemptStore, limit int, logger *slog.Logger) *AttemptTracker {
	return &AttemptTracker{store: store, limit: limit, logger: logger}
}

// Limit returns the configured failure threshold.
func (t *AttemptTracker) Limit() int {
	return t.limit
}

// RecordFailure increments the counter for an email and returns the new
// count. The increment is atomic in the store, so concurrent failures are
// never under-counted.
func (t *AttemptTracker) RecordFailure(ctx context.Context, email string) (int, error) {
	count, err := t.store.Increment(ctx, email)
	if err != nil {
		t.logger.Error("failed to record verification failure", slog.Any("error", err))
		return 0, err
	}

	t.logger.Warn("verification failure recorded",
		slog.Int("attempts", count),
		slog.Int("limit", t.limit))
	return count, nil
}

// RecordSuccess clears the counter for an email. A success at the last
// chance resets to zero rather than carrying the old count forward.
func (t *AttemptTracker) RecordSuccess(ctx context.Context, email string) error {
	if err := t.store.Clear(ctx, email); err != nil {
		t.logger.Error("failed to clear attempt counter", slog.Any("error", err))
		return err
	}
	return nil
}

// CurrentCount returns the counter value; a missing record counts as zero.
func (t *AttemptTracker) CurrentCount(ctx context.Context, email string) (int, error) {
	return t.store.Count(ctx, email)
}

// Remaining returns how many attempts are left before escalation.
func (t *AttemptTracker) Remaining(count int) int {
	remaining := t.limit - count
	if remaining < 0 {
		return 0
	}
	return remaining
}
