package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/diagnoseapp/accountsec/internal/models"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// SessionContextKey is the key for storing session claims in context
	SessionContextKey contextKey = "session"
	// RawTokenContextKey is the key for the raw bearer token (needed by logout)
	RawTokenContextKey contextKey = "raw_token"
)

// SessionChecker reports whether a session row still exists for a JTI.
// A signed, unexpired token whose row was deleted (logout, password change,
// cap eviction) must be rejected.
type SessionChecker interface {
	Exists(ctx context.Context, tokenID string) (bool, error)
}

// RequireSession validates the bearer token signature and the persisted
// session, then injects the claims into the request context.
func RequireSession(tm *SessionTokenManager, sessions SessionChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
				return
			}

			tokenString := parts[1]

			claims, err := tm.Parse(tokenString)
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			// The row is the source of truth: trimmed or invalidated
			// sessions fail here even with a valid signature.
			alive, err := sessions.Exists(r.Context(), claims.ID)
			if err != nil {
				http.Error(w, "unable to verify session", http.StatusServiceUnavailable)
				return
			}
			if !alive {
				http.Error(w, "session has been invalidated", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), SessionContextKey, claims)
			ctx = context.WithValue(ctx, RawTokenContextKey, tokenString)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSessionFromContext extracts session claims from request context
func GetSessionFromContext(r *http.Request) *models.SessionClaims {
	claims, ok := r.Context().Value(SessionContextKey).(*models.SessionClaims)
	if !ok {
		return nil
	}
	return claims
}

// GetTokenFromContext extracts the raw bearer token from request context
func GetTokenFromContext(r *http.Request) string {
	token, ok := r.Context().Value(RawTokenContextKey).(string)
	if !ok {
		return ""
	}
	return token
}
