package repositories

import (
	"context"
	"time"

	"github.com/diagnoseapp/accountsec/internal/database"
	"github.com/diagnoseapp/accountsec/internal/models"
	"github.com/google/uuid"
)

// TokenRepository stores hashed single-use tokens: password-reset and
// registration-confirmation.
type TokenRepository struct {
	db *database.DB
}

// NewTokenRepository creates a new TokenRepository
func NewTokenRepository(db *database.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

const tokenColumns = `id, purpose, email, login, token_hash, expires_at, used_at, created_at`

// Create inserts a token record.
func (r *TokenRepository) Create(ctx context.Context, token *models.AccountToken) (*models.AccountToken, error) {
	token.ID = uuid.New().String()
	token.CreatedAt = time.Now()

	query := `
		INSERT INTO account_tokens (id, purpose, email, login, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		token.ID, token.Purpose, token.Email, token.Login,
		token.TokenHash, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return token, nil
}

// GetByHash looks a token up by its stored hash and purpose.
func (r *TokenRepository) GetByHash(ctx context.Context, purpose, tokenHash string) (*models.AccountToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM account_tokens WHERE purpose = $1 AND token_hash = $2`

	var token models.AccountToken
	var usedAt *time.Time

	err := r.db.Pool.QueryRow(ctx, query, purpose, tokenHash).Scan(
		&token.ID, &token.Purpose, &token.Email, &token.Login,
		&token.TokenHash, &token.ExpiresAt, &usedAt, &token.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	token.UsedAt = usedAt
	return &token, nil
}

// MarkUsed consumes a token. The WHERE guard makes consumption win-once
// under concurrent redemption: the second caller sees ErrNotFound.
func (r *TokenRepository) MarkUsed(ctx context.Context, id string) error {
	query := `UPDATE account_tokens SET used_at = $1 WHERE id = $2 AND used_at IS NULL`

	result, err := r.db.Pool.Exec(ctx, query, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// CleanupExpired deletes tokens that are consumed or past expiry.
func (r *TokenRepository) CleanupExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM account_tokens WHERE used_at IS NOT NULL OR expires_at <= CURRENT_TIMESTAMP`

	result, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
