package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttemptTracker_RecordFailure(t *testing.T) {
	count := 0
	store := &MockAttemptStore{
		IncrementFunc: func(ctx context.Context, email string) (int, error) {
			count++
			return count, nil
		},
	}
	tracker := NewAttemptTracker(store, 3, testLogger())

	for want := 1; want <= 3; want++ {
		got, err := tracker.RecordFailure(context.Background(), "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestAttemptTracker_Remaining(t *testing.T) {
	tracker := NewAttemptTracker(&MockAttemptStore{}, 3, testLogger())

	assert.Equal(t, 3, tracker.Remaining(0))
	assert.Equal(t, 1, tracker.Remaining(2))
	assert.Equal(t, 0, tracker.Remaining(3))
	assert.Equal(t, 0, tracker.Remaining(7))
}

func TestAttemptTracker_RecordSuccessClears(t *testing.T) {
	var cleared bool
	store := &MockAttemptStore{
		ClearFunc: func(ctx context.Context, email string) error {
			cleared = true
			return nil
		},
	}
	tracker := NewAttemptTracker(store, 3, testLogger())

	require.NoError(t, tracker.RecordSuccess(context.Background(), "alice@example.com"))
	assert.True(t, cleared)
}
