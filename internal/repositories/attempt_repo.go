package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/diagnoseapp/accountsec/internal/database"
	"github.com/jackc/pgx/v5"
)

// AttemptRepository handles the per-email failed-verification counters.
type AttemptRepository struct {
	db *database.DB
}

// NewAttemptRepository creates a new AttemptRepository
func NewAttemptRepository(db *database.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// Increment bumps the counter for an email atomically and returns the new
// value. The upsert avoids the read-increment-write race: two concurrent
// failures always produce two distinct counts.
func (r *AttemptRepository) Increment(ctx context.Context, email string) (int, error) {
	query := `
		INSERT INTO attempt_records (email, attempts, last_attempt_at)
		VALUES ($1, 1, $2)
		ON CONFLICT (email)
		DO UPDATE SET attempts = attempt_records.attempts + 1, last_attempt_at = $2
		RETURNING attempts
	`

	var attempts int
	err := r.db.Pool.QueryRow(ctx, query, email, time.Now()).Scan(&attempts)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return attempts, nil
}

// Clear deletes the counter for an email. Deleting a missing record is not
// an error; absence already means zero.
func (r *AttemptRepository) Clear(ctx context.Context, email string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM attempt_records WHERE email = $1`, email)
	return database.MapPostgresError(err)
}

// Count returns the current counter value, zero when no record exists.
func (r *AttemptRepository) Count(ctx context.Context, email string) (int, error) {
	var attempts int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT attempts FROM attempt_records WHERE email = $1`, email).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return attempts, nil
}

// DeleteStale removes counters whose last attempt is older than the cutoff.
func (r *AttemptRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.Pool.Exec(ctx,
		`DELETE FROM attempt_records WHERE last_attempt_at < $1`, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
