package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("SESSION_SECRET", "a-sufficiently-long-test-secret")
	t.Setenv("DB_PASSWORD", "postgres")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Security.AttemptLimit)
	assert.Equal(t, 5, cfg.Security.SessionLimit)
	assert.Equal(t, 2*time.Hour, cfg.Security.SessionTTL)
	assert.Equal(t, 1*time.Hour, cfg.Security.ResetTokenTTL)
	assert.Equal(t, 24*time.Hour, cfg.Security.ConfirmTokenTTL)
	assert.Equal(t, 1*time.Second, cfg.Security.FailureDelay)
	assert.Equal(t, 3, cfg.Security.MaxAccountsPerEmail)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoad_MissingSessionSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("DB_PASSWORD", "postgres")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_MissingDBPassword(t *testing.T) {
	t.Setenv("SESSION_SECRET", "a-sufficiently-long-test-secret")
	t.Setenv("DB_PASSWORD", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_WeakSecretRejected(t *testing.T) {
	t.Setenv("SESSION_SECRET", "short")
	t.Setenv("DB_PASSWORD", "postgres")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ProductionRequiresLongSecret(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("SESSION_SECRET", "only-twenty-chars-xx")
	t.Setenv("DB_PASSWORD", "postgres")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ATTEMPT_LIMIT", "5")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("FAILURE_DELAY", "250ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Security.AttemptLimit)
	assert.Equal(t, 30*time.Minute, cfg.Security.SessionTTL)
	assert.Equal(t, 250*time.Millisecond, cfg.Security.FailureDelay)
}

func TestDSN(t *testing.T) {
	dbCfg := DatabaseConfig{
		Host: "localhost", Port: 5432, User: "postgres",
		Password: "pw", Name: "accountsec", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=pw dbname=accountsec sslmode=disable",
		dbCfg.DSN())
}
