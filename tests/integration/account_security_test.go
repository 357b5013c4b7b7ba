package integration

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagnoseapp/accountsec/internal/models"
)

var testDB *TestDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	db, err := SetupTestDatabase(ctx)
	if err != nil {
		// Docker not available; unit tests still cover the logic.
		os.Exit(0)
	}
	testDB = db

	code := m.Run()

	_ = testDB.Teardown(ctx)
	os.Exit(code)
}

func freshStack(t *testing.T) *TestStack {
	t.Helper()
	require.NoError(t, testDB.CleanupTables(context.Background()))
	return NewTestStack(testDB)
}

func TestRegisterConfirmLoginLogout(t *testing.T) {
	ctx := context.Background()
	stack := freshStack(t)

	// Register
	result, err := stack.Auth.Register(ctx, "alice", "alice@example.com", "OtterRiver7", "otter")
	require.NoError(t, err)
	assert.False(t, result.Account.Activated)

	// Login before confirmation is refused.
	_, err = stack.Auth.Login(ctx, "alice", "OtterRiver7", "")
	assert.ErrorIs(t, err, models.ErrNotActivated)

	// Confirm via the mailed token.
	token := stack.Notifier.LastActivationToken()
	require.NotEmpty(t, token)
	login, err := stack.Auth.Confirm(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", login)

	// The confirmation token is single-use.
	_, err = stack.Auth.Confirm(ctx, token)
	var invalid *models.TokenInvalidError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, models.TokenReasonUsed, invalid.Reason)

	// Login now succeeds and the session token verifies.
	issued, err := stack.Auth.Login(ctx, "alice", "OtterRiver7", "")
	require.NoError(t, err)
	claims, err := stack.TokenManager.Parse(issued.Token)
	require.NoError(t, err)

	alive, err := stack.Sessions.Exists(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, alive)

	// Logout drops the session row.
	require.NoError(t, stack.Auth.Logout(ctx, "alice", claims.ID))
	alive, err = stack.Sessions.Exists(ctx, claims.ID)
	require.NoError(t, err)
	assert.False(t, alive)
}

func TestSessionCapEvictsOldest(t *testing.T) {
	ctx := context.Background()
	stack := freshStack(t)

	registerAndConfirm(t, stack, "bob", "bob@example.com", "OtterRiver7", "otter")

	var firstJTI string
	for i := 0; i < 6; i++ {
		issued, err := stack.Auth.Login(ctx, "bob", "OtterRiver7", "")
		require.NoError(t, err)
		if i == 0 {
			claims, err := stack.TokenManager.Parse(issued.Token)
			require.NoError(t, err)
			firstJTI = claims.ID
		}
	}

	count, err := stack.Sessions.CountByLogin(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	// The oldest session fell off the end.
	alive, err := stack.Sessions.Exists(ctx, firstJTI)
	require.NoError(t, err)
	assert.False(t, alive)
}

func TestThreeWrongSecretWordsBlockEverything(t *testing.T) {
	ctx := context.Background()
	stack := freshStack(t)

	registerAndConfirm(t, stack, "carol", "carol@example.com", "OtterRiver7", "otter")

	// Two wrong guesses disclose how many attempts remain.
	for want := 2; want >= 1; want-- {
		err := stack.Recovery.ForgotPassword(ctx, "carol@example.com", "badger", "")
		var wrong *models.WrongSecretWordError
		require.ErrorAs(t, err, &wrong)
		assert.Equal(t, want, wrong.Remaining)
	}

	// The third blocks permanently.
	err := stack.Recovery.ForgotPassword(ctx, "carol@example.com", "badger", "")
	var blocked *models.BlockedError
	require.ErrorAs(t, err, &blocked)
	assert.True(t, blocked.Permanent())

	// Even the correct password no longer logs in.
	_, err = stack.Auth.Login(ctx, "carol", "OtterRiver7", "")
	require.ErrorAs(t, err, &blocked)
	assert.True(t, blocked.Permanent())

	// And recovery with the correct secret word is refused too.
	err = stack.Recovery.ForgotPassword(ctx, "carol@example.com", "otter", "")
	require.ErrorAs(t, err, &blocked)
}

func TestResetTokenIsSingleUse(t *testing.T) {
	ctx := context.Background()
	stack := freshStack(t)

	registerAndConfirm(t, stack, "dave", "dave@example.com", "OtterRiver7", "otter")

	require.NoError(t, stack.Recovery.ForgotPassword(ctx, "dave@example.com", "otter", ""))
	token := stack.Notifier.LastResetToken()
	require.NotEmpty(t, token)

	// Validation does not consume.
	record, err := stack.Recovery.ValidateResetToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "dave", record.Login)
	_, err = stack.Recovery.ValidateResetToken(ctx, token)
	require.NoError(t, err)

	// Reset succeeds once.
	require.NoError(t, stack.Recovery.ResetPassword(ctx, token, "NewHarbor9"))

	// Second redemption is rejected as used.
	err = stack.Recovery.ResetPassword(ctx, token, "ThirdCove3")
	var invalid *models.TokenInvalidError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, models.TokenReasonUsed, invalid.Reason)

	// Old password is gone, new one works.
	_, err = stack.Auth.Login(ctx, "dave", "OtterRiver7", "")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	_, err = stack.Auth.Login(ctx, "dave", "NewHarbor9", "")
	assert.NoError(t, err)
}

func TestPasswordChangeInvalidatesSessions(t *testing.T) {
	ctx := context.Background()
	stack := freshStack(t)

	registerAndConfirm(t, stack, "erin", "erin@example.com", "OtterRiver7", "otter")

	issued, err := stack.Auth.Login(ctx, "erin", "OtterRiver7", "")
	require.NoError(t, err)
	claims, err := stack.TokenManager.Parse(issued.Token)
	require.NoError(t, err)

	require.NoError(t, stack.Recovery.ChangePassword(ctx, "erin", "OtterRiver7", "NewHarbor9", "otter", ""))

	// The session row is gone even though the signed token is unexpired.
	alive, err := stack.Sessions.Exists(ctx, claims.ID)
	require.NoError(t, err)
	assert.False(t, alive)

	_, err = stack.Auth.Login(ctx, "erin", "NewHarbor9", "")
	assert.NoError(t, err)
}

func TestPasswordChangeRequiresSecretWord(t *testing.T) {
	ctx := context.Background()
	stack := freshStack(t)

	registerAndConfirm(t, stack, "hank", "hank@example.com", "OtterRiver7", "otter")

	// A correct current password alone is not enough.
	err := stack.Recovery.ChangePassword(ctx, "hank", "OtterRiver7", "NewHarbor9", "badger", "")
	var wrong *models.WrongSecretWordError
	require.ErrorAs(t, err, &wrong)
	assert.Equal(t, 2, wrong.Remaining)

	// The password is untouched.
	_, err = stack.Auth.Login(ctx, "hank", "OtterRiver7", "")
	assert.NoError(t, err)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	ctx := context.Background()
	stack := freshStack(t)

	err := stack.Recovery.ForgotPassword(ctx, "nobody@example.com", "otter", "")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestEscalationSparesOtherEmails(t *testing.T) {
	ctx := context.Background()
	stack := freshStack(t)

	registerAndConfirm(t, stack, "frank", "frank@example.com", "OtterRiver7", "otter")
	registerAndConfirm(t, stack, "grace", "grace@example.com", "OtterRiver7", "otter")

	for i := 0; i < 3; i++ {
		_ = stack.Recovery.ForgotPassword(ctx, "frank@example.com", "badger", "")
	}

	var blocked *models.BlockedError
	_, err := stack.Auth.Login(ctx, "frank", "OtterRiver7", "")
	require.ErrorAs(t, err, &blocked)

	// An unrelated email is untouched.
	_, err = stack.Auth.Login(ctx, "grace", "OtterRiver7", "")
	assert.NoError(t, err)
}

func registerAndConfirm(t *testing.T, stack *TestStack, login, email, password, secretWord string) {
	t.Helper()
	ctx := context.Background()

	_, err := stack.Auth.Register(ctx, login, email, password, secretWord)
	require.NoError(t, err)

	token := stack.Notifier.LastActivationToken()
	require.NotEmpty(t, token)
	_, err = stack.Auth.Confirm(ctx, token)
	require.NoError(t, err)
}
