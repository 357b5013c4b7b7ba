package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/diagnoseapp/accountsec/internal/models"
	"github.com/diagnoseapp/accountsec/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthHandler_Login_Success(t *testing.T) {
	service := &MockAuthService{
		LoginFunc: func(ctx context.Context, login, password, ipAddress string) (*services.IssuedSession, error) {
			assert.Equal(t, "alice", login)
			return &services.IssuedSession{
				Token:     "signed.jwt.token",
				ExpiresAt: time.Now().Add(2 * time.Hour),
				Login:     "alice",
				Email:     "alice@example.com",
			}, nil
		},
	}
	handler := NewAuthHandler(service, testIPConfig())

	req := newJSONRequest(t, http.MethodPost, "/auth/login", LoginRequest{
		Login:    "alice",
		Password: "OtterRiver7",
	})
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp SessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "signed.jwt.token", resp.Token)
	assert.Equal(t, "alice", resp.User.Login)
	assert.Equal(t, "alice@example.com", resp.User.Email)
}

func TestAuthHandler_Login_NotActivated(t *testing.T) {
	service := &MockAuthService{
		LoginFunc: func(ctx context.Context, login, password, ipAddress string) (*services.IssuedSession, error) {
			return nil, models.ErrNotActivated
		},
	}
	handler := NewAuthHandler(service, testIPConfig())

	req := newJSONRequest(t, http.MethodPost, "/auth/login", LoginRequest{
		Login:    "alice",
		Password: "OtterRiver7",
	})
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	resp := decodeErrorResponse(t, rec)
	assert.Contains(t, resp.Message, "confirm")
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	handler := NewAuthHandler(&MockAuthService{}, testIPConfig())

	req := newJSONRequest(t, http.MethodPost, "/auth/login", LoginRequest{
		Login:    "alice",
		Password: "wrong",
	})
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_Login_Blocked(t *testing.T) {
	until := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	service := &MockAuthService{
		LoginFunc: func(ctx context.Context, login, password, ipAddress string) (*services.IssuedSession, error) {
			return nil, &models.BlockedError{Until: until}
		},
	}
	handler := NewAuthHandler(service, testIPConfig())

	req := newJSONRequest(t, http.MethodPost, "/auth/login", LoginRequest{
		Login:    "alice",
		Password: "OtterRiver7",
	})
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	resp := decodeErrorResponse(t, rec)
	assert.Contains(t, resp.Message, "01.10.2026")
}

func TestAuthHandler_Login_PermanentBlock(t *testing.T) {
	service := &MockAuthService{
		LoginFunc: func(ctx context.Context, login, password, ipAddress string) (*services.IssuedSession, error) {
			return nil, &models.BlockedError{Until: models.PermanentBlockSentinel}
		},
	}
	handler := NewAuthHandler(service, testIPConfig())

	req := newJSONRequest(t, http.MethodPost, "/auth/login", LoginRequest{
		Login:    "alice",
		Password: "OtterRiver7",
	})
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	resp := decodeErrorResponse(t, rec)
	assert.Contains(t, resp.Message, "permanently")
}

func TestAuthHandler_Login_MalformedBody(t *testing.T) {
	handler := NewAuthHandler(&MockAuthService{}, testIPConfig())

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_Register_Success(t *testing.T) {
	service := &MockAuthService{
		RegisterFunc: func(ctx context.Context, login, email, password, secretWord string) (*services.RegistrationResult, error) {
			assert.Equal(t, "erin@example.com", email)
			return &services.RegistrationResult{
				Account:          &models.Account{Login: login, Email: email},
				AccountsForEmail: 1,
				AccountsCap:      3,
			}, nil
		},
	}
	handler := NewAuthHandler(service, testIPConfig())

	req := newJSONRequest(t, http.MethodPost, "/auth/register", RegisterRequest{
		Login:      "erin",
		Email:      "Erin@Example.com",
		Password:   "OtterRiver7",
		SecretWord: "otter",
	})
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp RegisterResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "erin", resp.Login)
	assert.Equal(t, 1, resp.AccountsForEmail)
	assert.Equal(t, 3, resp.AccountsCap)
}

func TestAuthHandler_Register_EmailCapReached(t *testing.T) {
	service := &MockAuthService{
		RegisterFunc: func(ctx context.Context, login, email, password, secretWord string) (*services.RegistrationResult, error) {
			return nil, models.ErrEmailCapReached
		},
	}
	handler := NewAuthHandler(service, testIPConfig())

	req := newJSONRequest(t, http.MethodPost, "/auth/register", RegisterRequest{
		Login:    "frank",
		Email:    "shared@example.com",
		Password: "OtterRiver7",
	})
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeErrorResponse(t, rec)
	assert.Equal(t, "email", resp.Field)
}

func TestAuthHandler_Register_DuplicateLogin(t *testing.T) {
	service := &MockAuthService{
		RegisterFunc: func(ctx context.Context, login, email, password, secretWord string) (*services.RegistrationResult, error) {
			return nil, models.ErrConflict
		},
	}
	handler := NewAuthHandler(service, testIPConfig())

	req := newJSONRequest(t, http.MethodPost, "/auth/register", RegisterRequest{
		Login:    "grace",
		Email:    "grace@example.com",
		Password: "OtterRiver7",
	})
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAuthHandler_Register_InvalidEmail(t *testing.T) {
	handler := NewAuthHandler(&MockAuthService{}, testIPConfig())

	req := newJSONRequest(t, http.MethodPost, "/auth/register", RegisterRequest{
		Login:    "henry",
		Email:    "not-an-email",
		Password: "OtterRiver7",
	})
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_Confirm_Success(t *testing.T) {
	service := &MockAuthService{
		ConfirmFunc: func(ctx context.Context, plainToken string) (string, error) {
			assert.Equal(t, "the-token", plainToken)
			return "ivy", nil
		},
	}
	handler := NewAuthHandler(service, testIPConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/confirm/the-token", nil)
	req = withURLParam(req, "token", "the-token")
	rec := httptest.NewRecorder()

	handler.Confirm(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthHandler_Confirm_ExpiredToken(t *testing.T) {
	service := &MockAuthService{
		ConfirmFunc: func(ctx context.Context, plainToken string) (string, error) {
			return "", &models.TokenInvalidError{Reason: models.TokenReasonExpired}
		},
	}
	handler := NewAuthHandler(service, testIPConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/confirm/old-token", nil)
	req = withURLParam(req, "token", "old-token")
	rec := httptest.NewRecorder()

	handler.Confirm(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeErrorResponse(t, rec)
	assert.Contains(t, resp.Message, "expired")
}

func TestAuthHandler_Logout_Success(t *testing.T) {
	var gotJTI string
	service := &MockAuthService{
		LogoutFunc: func(ctx context.Context, login, tokenID string) error {
			gotJTI = tokenID
			return nil
		},
	}
	handler := NewAuthHandler(service, testIPConfig())

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req = withSession(req, "alice", "jti-123")
	rec := httptest.NewRecorder()

	handler.Logout(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jti-123", gotJTI)
}

func TestAuthHandler_Logout_NoSession(t *testing.T) {
	handler := NewAuthHandler(&MockAuthService{}, testIPConfig())

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec := httptest.NewRecorder()

	handler.Logout(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
