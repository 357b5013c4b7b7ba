package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/diagnoseapp/accountsec/internal/models"
)

// TokenService issues and validates the single-use tokens mailed to users:
// password-reset and registration-confirmation. Tokens are opaque random
// strings; only a SHA-256 hash ever reaches the database, so a dumped table
// cannot redeem anything.
//
// Validation is read-only. Consumption is a separate explicit step so the
// caller can validate, perform its write, and only then burn the token;
// a failed write leaves the token redeemable.
type TokenService struct {
	store      TokenStore
	resetTTL   time.Duration
	confirmTTL time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewTokenService creates a new TokenService
func NewTokenService(store TokenStore, resetTTL, confirmTTL time.Duration, logger *slog.Logger) *TokenService {
	return &TokenService{
		store:      store,
		resetTTL:   resetTTL,
		confirmTTL: confirmTTL,
		logger:     logger,
		now:        time.Now,
	}
}

func generateOpaqueToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func hashOpaqueToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// IssueReset creates a password-reset token for an email and the login it
// resolved to. The returned plain token goes into the email and is never
// stored.
func (s *TokenService) IssueReset(ctx context.Context, email, login string) (string, *models.AccountToken, error) {
	return s.issue(ctx, models.TokenPurposeReset, email, login, s.resetTTL)
}

// IssueConfirm creates a registration-confirmation token for a login.
func (s *TokenService) IssueConfirm(ctx context.Context, email, login string) (string, *models.AccountToken, error) {
	return s.issue(ctx, models.TokenPurposeConfirm, email, login, s.confirmTTL)
}

func (s *TokenService) issue(ctx context.Context, purpose, email, login string, ttl time.Duration) (string, *models.AccountToken, error) {
	plain, err := generateOpaqueToken()
	if err != nil {
		s.logger.Error("failed to generate token", slog.Any("error", err))
		return "", nil, models.ErrInternalServer
	}

	record := &models.AccountToken{
		Purpose:   purpose,
		Email:     email,
		Login:     login,
		TokenHash: hashOpaqueToken(plain),
		ExpiresAt: s.now().Add(ttl),
	}

	record, err = s.store.Create(ctx, record)
	if err != nil {
		s.logger.Error("failed to store token",
			slog.String("purpose", purpose),
			slog.Any("error", err))
		return "", nil, fmt.Errorf("failed to store token: %w", err)
	}

	return plain, record, nil
}

// Validate checks a plain token against the store without consuming it.
// Every rejection maps to a TokenInvalidError with a reason; lookup
// failures other than not-found are surfaced as-is.
func (s *TokenService) Validate(ctx context.Context, purpose, plain string) (*models.AccountToken, error) {
	if plain == "" || len(plain) > 128 {
		return nil, &models.TokenInvalidError{Reason: models.TokenReasonMalformed}
	}

	record, err := s.store.GetByHash(ctx, purpose, hashOpaqueToken(plain))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, &models.TokenInvalidError{Reason: models.TokenReasonUnknown}
		}
		return nil, err
	}

	if record.IsUsed() {
		return nil, &models.TokenInvalidError{Reason: models.TokenReasonUsed}
	}
	if s.now().After(record.ExpiresAt) {
		return nil, &models.TokenInvalidError{Reason: models.TokenReasonExpired}
	}

	return record, nil
}

// Consume burns a validated token. The store guard makes this win-once;
// losing the race comes back as ErrNotFound.
func (s *TokenService) Consume(ctx context.Context, id string) error {
	if err := s.store.MarkUsed(ctx, id); err != nil {
		s.logger.Error("failed to consume token",
			slog.String("token_id", id),
			slog.Any("error", err))
		return err
	}
	return nil
}
