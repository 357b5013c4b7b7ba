package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/diagnoseapp/accountsec/internal/database"
	"github.com/diagnoseapp/accountsec/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepository handles database operations for accounts
type AccountRepository struct {
	db *database.DB
}

// NewAccountRepository creates a new AccountRepository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, login, email, password_hash, secret_word_hash, activated, blocked, blocked_until, last_login_at, created_at, updated_at`

// rowScanner covers both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account
	var secretWordHash *string
	var blockedUntil, lastLoginAt *time.Time

	err := scanner.Scan(
		&account.ID, &account.Login, &account.Email, &account.PasswordHash,
		&secretWordHash, &account.Activated, &account.Blocked,
		&blockedUntil, &lastLoginAt,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	account.SecretWordHash = secretWordHash
	account.BlockedUntil = blockedUntil
	account.LastLoginAt = lastLoginAt

	return &account, nil
}

func scanAccountRows(rows pgx.Rows) ([]*models.Account, error) {
	defer rows.Close()

	accounts := make([]*models.Account, 0)

	for rows.Next() {
		account, err := scanAccountRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return accounts, nil
}

// GetByLogin returns the account with the given login.
func (r *AccountRepository) GetByLogin(ctx context.Context, login string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE login = $1`
	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, login))
}

// ListByEmail returns every account registered under an email. Email is not
// unique, so blocking and recovery operate on this set.
func (r *AccountRepository) ListByEmail(ctx context.Context, email string) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1 ORDER BY created_at`

	rows, err := r.db.Pool.Query(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}

	return scanAccountRows(rows)
}

// CountByEmail returns how many accounts share an email (registration cap check).
func (r *AccountRepository) CountByEmail(ctx context.Context, email string) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE email = $1`, email).Scan(&count)
	return count, err
}

// Create inserts a new unactivated account.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	account.ID = uuid.New().String()

	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	query := `
		INSERT INTO accounts (id, login, email, password_hash, secret_word_hash, activated, blocked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7, $8)
		RETURNING ` + accountColumns

	return scanAccountRow(r.db.Pool.QueryRow(ctx, query,
		account.ID, account.Login, account.Email, account.PasswordHash,
		account.SecretWordHash, account.Activated,
		account.CreatedAt, account.UpdatedAt,
	))
}

// Activate flips the activation flag for a login.
func (r *AccountRepository) Activate(ctx context.Context, login string) error {
	query := `UPDATE accounts SET activated = true, updated_at = $1 WHERE login = $2`

	result, err := r.db.Pool.Exec(ctx, query, time.Now(), login)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ClearBlock removes the block flags from one account (lazy auto-unblock).
func (r *AccountRepository) ClearBlock(ctx context.Context, login string) error {
	query := `UPDATE accounts SET blocked = false, blocked_until = NULL, updated_at = $1 WHERE login = $2`

	result, err := r.db.Pool.Exec(ctx, query, time.Now(), login)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// BlockActivatedByEmail blocks every activated account under an email until
// the given time and returns how many rows were affected.
func (r *AccountRepository) BlockActivatedByEmail(ctx context.Context, email string, until time.Time) (int64, error) {
	query := `
		UPDATE accounts SET blocked = true, blocked_until = $1, updated_at = $2
		WHERE email = $3 AND activated = true
	`

	result, err := r.db.Pool.Exec(ctx, query, until, time.Now(), email)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

// TouchLastLogin records a successful login timestamp.
func (r *AccountRepository) TouchLastLogin(ctx context.Context, login string, at time.Time) error {
	query := `UPDATE accounts SET last_login_at = $1, updated_at = $1 WHERE login = $2`

	_, err := r.db.Pool.Exec(ctx, query, at, login)
	return database.MapPostgresError(err)
}

// UpdatePasswordAndDropSessions writes the new password hash and deletes
// every session for the login inside one transaction, so a cancelled
// request cannot leave a changed password with live sessions.
func (r *AccountRepository) UpdatePasswordAndDropSessions(ctx context.Context, login, passwordHash string) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx,
			`UPDATE accounts SET password_hash = $1, updated_at = $2 WHERE login = $3`,
			passwordHash, time.Now(), login)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrNotFound
		}

		_, err = tx.Exec(ctx, `DELETE FROM sessions WHERE login = $1`, login)
		if err != nil {
			return database.MapPostgresError(err)
		}
		return nil
	})
}
