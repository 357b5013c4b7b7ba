package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/diagnoseapp/accountsec/internal/auth"
	"github.com/diagnoseapp/accountsec/internal/models"
	"github.com/diagnoseapp/accountsec/internal/services"
	pkghttp "github.com/diagnoseapp/accountsec/pkg/http"
	"github.com/golang-jwt/jwt/v5"
)

// MockAuthService for testing
type MockAuthService struct {
	LoginFunc    func(ctx context.Context, login, password, ipAddress string) (*services.IssuedSession, error)
	RegisterFunc func(ctx context.Context, login, email, password, secretWord string) (*services.RegistrationResult, error)
	ConfirmFunc  func(ctx context.Context, plainToken string) (string, error)
	LogoutFunc   func(ctx context.Context, login, tokenID string) error
}

func (m *MockAuthService) Login(ctx context.Context, login, password, ipAddress string) (*services.IssuedSession, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, login, password, ipAddress)
	}
	return nil, models.ErrInvalidCredentials
}

func (m *MockAuthService) Register(ctx context.Context, login, email, password, secretWord string) (*services.RegistrationResult, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, login, email, password, secretWord)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) Confirm(ctx context.Context, plainToken string) (string, error) {
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(ctx, plainToken)
	}
	return "", &models.TokenInvalidError{Reason: models.TokenReasonUnknown}
}

func (m *MockAuthService) Logout(ctx context.Context, login, tokenID string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, login, tokenID)
	}
	return nil
}

// MockRecoveryService for testing
type MockRecoveryService struct {
	ForgotPasswordFunc     func(ctx context.Context, email, secretWord, ipAddress string) error
	ValidateResetTokenFunc func(ctx context.Context, plainToken string) (*models.AccountToken, error)
	ResetPasswordFunc      func(ctx context.Context, plainToken, newPassword string) error
	ChangePasswordFunc     func(ctx context.Context, login, currentPassword, newPassword, secretWord, ipAddress string) error
}

func (m *MockRecoveryService) ForgotPassword(ctx context.Context, email, secretWord, ipAddress string) error {
	if m.ForgotPasswordFunc != nil {
		return m.ForgotPasswordFunc(ctx, email, secretWord, ipAddress)
	}
	return nil
}

func (m *MockRecoveryService) ValidateResetToken(ctx context.Context, plainToken string) (*models.AccountToken, error) {
	if m.ValidateResetTokenFunc != nil {
		return m.ValidateResetTokenFunc(ctx, plainToken)
	}
	return nil, &models.TokenInvalidError{Reason: models.TokenReasonUnknown}
}

func (m *MockRecoveryService) ResetPassword(ctx context.Context, plainToken, newPassword string) error {
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, plainToken, newPassword)
	}
	return nil
}

func (m *MockRecoveryService) ChangePassword(ctx context.Context, login, currentPassword, newPassword, secretWord, ipAddress string) error {
	if m.ChangePasswordFunc != nil {
		return m.ChangePasswordFunc(ctx, login, currentPassword, newPassword, secretWord, ipAddress)
	}
	return nil
}

func testIPConfig() *pkghttp.IPConfig {
	return &pkghttp.IPConfig{}
}

// newJSONRequest builds a request with a JSON-encoded body.
func newJSONRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	buf := new(bytes.Buffer)
	if body != nil {
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// withURLParam attaches a chi route parameter to the request context.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// withSession injects session claims the way RequireSession would.
func withSession(r *http.Request, login, jti string) *http.Request {
	claims := &models.SessionClaims{
		Login: login,
		RegisteredClaims: jwt.RegisteredClaims{
			ID: jti,
		},
	}
	ctx := context.WithValue(r.Context(), auth.SessionContextKey, claims)
	return r.WithContext(ctx)
}

// decodeErrorResponse unmarshals the standard error body.
func decodeErrorResponse(t *testing.T, rec *httptest.ResponseRecorder) pkghttp.ErrorResponse {
	t.Helper()
	var resp pkghttp.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}
