package auth

import (
	"fmt"
	"time"

	"github.com/diagnoseapp/accountsec/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionTokenManager signs and verifies the time-boxed session tokens
// issued on login. Each token carries a fresh JTI that keys the persisted
// session row; signature validity alone is not enough to authenticate.
type SessionTokenManager struct {
	secret string
	ttl    time.Duration
}

// NewSessionTokenManager creates a new SessionTokenManager
func NewSessionTokenManager(secret string, ttl time.Duration) *SessionTokenManager {
	return &SessionTokenManager{secret: secret, ttl: ttl}
}

// TTL returns the configured session token lifetime.
func (tm *SessionTokenManager) TTL() time.Duration {
	return tm.ttl
}

// Issue creates a signed session token for a login and returns the token
// string together with its JTI and expiry.
func (tm *SessionTokenManager) Issue(login, email string) (string, string, time.Time, error) {
	jti := uuid.New().String()
	expiresAt := time.Now().Add(tm.ttl)

	claims := &models.SessionClaims{
		Login: login,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(tm.secret))
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, jti, expiresAt, nil
}

// Parse verifies a session token signature and expiry and returns its claims.
func (tm *SessionTokenManager) Parse(tokenString string) (*models.SessionClaims, error) {
	claims := &models.SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(tm.secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse session token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.Login == "" || claims.ID == "" {
		return nil, models.ErrUnauthorized
	}

	return claims, nil
}
