package services

import (
	"context"
	"testing"
	"time"

	"github.com/diagnoseapp/accountsec/internal/auth"
	"github.com/diagnoseapp/accountsec/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionManager_CreateSession(t *testing.T) {
	tokenManager := auth.NewSessionTokenManager("test-session-secret-32-chars-long", 2*time.Hour)

	var persisted *models.Session
	var gotLimit int
	sessions := &MockSessionStore{
		CreateAndTrimFunc: func(ctx context.Context, session *models.Session, limit int) error {
			persisted = session
			gotLimit = limit
			return nil
		},
	}

	manager := NewSessionManager(tokenManager, sessions, 5, testLogger())
	account := &models.Account{Login: "alice", Email: "alice@example.com"}

	issued, err := manager.CreateSession(context.Background(), account)

	require.NoError(t, err)
	assert.NotEmpty(t, issued.Token)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), issued.ExpiresAt, 5*time.Second)
	assert.Equal(t, 5, gotLimit)

	// The persisted JTI must match the one inside the signed token.
	claims, err := tokenManager.Parse(issued.Token)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, claims.ID, persisted.TokenID)
	assert.Equal(t, "alice", persisted.Login)
}

func TestSessionManager_InvalidateOne_Idempotent(t *testing.T) {
	sessions := &MockSessionStore{
		DeleteByTokenIDFunc: func(ctx context.Context, tokenID string) error {
			return models.ErrNotFound
		},
	}
	tokenManager := auth.NewSessionTokenManager("test-session-secret-32-chars-long", time.Hour)
	manager := NewSessionManager(tokenManager, sessions, 5, testLogger())

	assert.NoError(t, manager.InvalidateOne(context.Background(), "gone-jti"))
}

func TestSessionManager_InvalidateAll(t *testing.T) {
	sessions := &MockSessionStore{
		DeleteByLoginFunc: func(ctx context.Context, login string) (int64, error) {
			assert.Equal(t, "alice", login)
			return 3, nil
		},
	}
	tokenManager := auth.NewSessionTokenManager("test-session-secret-32-chars-long", time.Hour)
	manager := NewSessionManager(tokenManager, sessions, 5, testLogger())

	dropped, err := manager.InvalidateAll(context.Background(), "alice")

	require.NoError(t, err)
	assert.Equal(t, int64(3), dropped)
}
