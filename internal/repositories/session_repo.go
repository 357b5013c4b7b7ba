package repositories

import (
	"context"
	"time"

	"github.com/diagnoseapp/accountsec/internal/database"
	"github.com/diagnoseapp/accountsec/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SessionRepository handles the persisted session rows that back issued
// tokens.
type SessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// CreateAndTrim inserts a session and evicts the oldest rows beyond limit,
// in one transaction. Eviction orders by creation time so the row just
// inserted is always retained.
func (r *SessionRepository) CreateAndTrim(ctx context.Context, session *models.Session, limit int) error {
	session.ID = uuid.New().String()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO sessions (id, login, token_id, created_at) VALUES ($1, $2, $3, $4)`,
			session.ID, session.Login, session.TokenID, session.CreatedAt)
		if err != nil {
			return database.MapPostgresError(err)
		}

		_, err = tx.Exec(ctx, `
			DELETE FROM sessions
			WHERE login = $1 AND id NOT IN (
				SELECT id FROM sessions
				WHERE login = $1
				ORDER BY created_at DESC, id DESC
				LIMIT $2
			)`,
			session.Login, limit)
		if err != nil {
			return database.MapPostgresError(err)
		}
		return nil
	})
}

// Exists reports whether a session row is still present for a token JTI.
func (r *SessionRepository) Exists(ctx context.Context, tokenID string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM sessions WHERE token_id = $1)`, tokenID).Scan(&exists)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

// DeleteByTokenID removes one session (explicit logout).
func (r *SessionRepository) DeleteByTokenID(ctx context.Context, tokenID string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE token_id = $1`, tokenID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteByLogin removes every session for a login (password change).
func (r *SessionRepository) DeleteByLogin(ctx context.Context, login string) (int64, error) {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE login = $1`, login)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

// CountByLogin returns the number of live sessions for a login.
func (r *SessionRepository) CountByLogin(ctx context.Context, login string) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM sessions WHERE login = $1`, login).Scan(&count)
	return count, err
}

// DeleteCreatedBefore removes sessions older than the cutoff; rows outlive
// their token's expiry only until the next cleanup pass.
func (r *SessionRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
