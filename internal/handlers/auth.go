package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/diagnoseapp/accountsec/internal/auth"
	"github.com/diagnoseapp/accountsec/internal/models"
	"github.com/diagnoseapp/accountsec/internal/services"
	pkghttp "github.com/diagnoseapp/accountsec/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, login, password, ipAddress string) (*services.IssuedSession, error)
	Register(ctx context.Context, login, email, password, secretWord string) (*services.RegistrationResult, error)
	Confirm(ctx context.Context, plainToken string) (string, error)
	Logout(ctx context.Context, login, tokenID string) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Login    string `json:"login" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Login      string `json:"login" validate:"required,min=3,max=64,alphanum"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	SecretWord string `json:"secretWord" validate:"omitempty,min=3,max=64"`
}

// SessionUser identifies the account a session was issued for
type SessionUser struct {
	Login string `json:"login"`
	Email string `json:"email"`
}

// SessionResponse is the body returned on successful login
type SessionResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      SessionUser `json:"user"`
}

// RegisterResponse is the body returned on successful registration
type RegisterResponse struct {
	Login            string `json:"login"`
	Email            string `json:"email"`
	AccountsForEmail int    `json:"accounts_for_email"`
	AccountsCap      int    `json:"accounts_cap"`
	Message          string `json:"message"`
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	issued, err := h.service.Login(r.Context(), req.Login, req.Password, ipAddress)
	if err != nil {
		var blocked *models.BlockedError
		switch {
		case errors.As(err, &blocked):
			pkghttp.WriteForbidden(w, services.BlockedMessage(blocked.Until))
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteUnauthorized(w, "Invalid login or password")
		case errors.Is(err, models.ErrNotActivated):
			pkghttp.WriteForbidden(w, "Please confirm your email address before logging in")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, SessionResponse{
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
		User:      SessionUser{Login: issued.Login, Email: issued.Email},
	})
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	result, err := h.service.Register(r.Context(), req.Login, req.Email, req.Password, req.SecretWord)
	if err != nil {
		var validation *models.ValidationError
		switch {
		case errors.As(err, &validation):
			pkghttp.WriteFieldError(w, http.StatusBadRequest, "bad_request", validation.Message, validation.Field)
		case errors.Is(err, models.ErrEmailCapReached):
			pkghttp.WriteFieldError(w, http.StatusBadRequest, "bad_request",
				"Maximum number of accounts reached for this email", "email")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "Login is already taken")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, RegisterResponse{
		Login:            result.Account.Login,
		Email:            result.Account.Email,
		AccountsForEmail: result.AccountsForEmail,
		AccountsCap:      result.AccountsCap,
		Message:          "Check your email for a confirmation link",
	})
}

// Confirm handles GET /auth/confirm/{token}
func (h *AuthHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	plainToken := chi.URLParam(r, "token")

	login, err := h.service.Confirm(r.Context(), plainToken)
	if err != nil {
		var invalid *models.TokenInvalidError
		if errors.As(err, &invalid) {
			pkghttp.WriteBadRequest(w, confirmFailureMessage(invalid.Reason))
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"login":   login,
		"message": "Account confirmed, you can now log in",
	})
}

func confirmFailureMessage(reason string) string {
	switch reason {
	case models.TokenReasonExpired:
		return "This confirmation link has expired, please register again"
	case models.TokenReasonUsed:
		return "This confirmation link has already been used"
	default:
		return "Invalid confirmation link"
	}
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetSessionFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Not authenticated")
		return
	}

	if err := h.service.Logout(r.Context(), claims.Login, claims.ID); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}
