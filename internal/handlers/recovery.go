package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/diagnoseapp/accountsec/internal/auth"
	"github.com/diagnoseapp/accountsec/internal/models"
	"github.com/diagnoseapp/accountsec/internal/services"
	pkghttp "github.com/diagnoseapp/accountsec/pkg/http"
)

// RecoveryServiceInterface defines the interface for password recovery logic
type RecoveryServiceInterface interface {
	ForgotPassword(ctx context.Context, email, secretWord, ipAddress string) error
	ValidateResetToken(ctx context.Context, plainToken string) (*models.AccountToken, error)
	ResetPassword(ctx context.Context, plainToken, newPassword string) error
	ChangePassword(ctx context.Context, login, currentPassword, newPassword, secretWord, ipAddress string) error
}

// RecoveryHandler handles password recovery and password change requests
type RecoveryHandler struct {
	service  RecoveryServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewRecoveryHandler creates a new RecoveryHandler
func NewRecoveryHandler(service RecoveryServiceInterface, ipConfig *pkghttp.IPConfig) *RecoveryHandler {
	return &RecoveryHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// Request DTOs

// ForgotPasswordRequest represents the request body for starting recovery
type ForgotPasswordRequest struct {
	Email      string `json:"email" validate:"required,email"`
	SecretWord string `json:"secretWord" validate:"required"`
}

// ResetPasswordRequest represents the request body for completing recovery
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// ChangePasswordRequest represents the request body for changing a password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
	SecretWord      string `json:"secretWord" validate:"required"`
}

// ForgotPassword handles POST /forgot-password
//
// An unknown email deliberately returns 404 so the form can point the user
// at registration instead of pretending a mail was sent.
func (h *RecoveryHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	err := h.service.ForgotPassword(r.Context(), req.Email, req.SecretWord, ipAddress)
	if err != nil {
		h.writeRecoveryError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "A password reset link has been sent to your email",
	})
}

// ValidateResetToken handles GET /validate-reset-token/{token}
func (h *RecoveryHandler) ValidateResetToken(w http.ResponseWriter, r *http.Request) {
	plainToken := chi.URLParam(r, "token")

	record, err := h.service.ValidateResetToken(r.Context(), plainToken)
	if err != nil {
		var invalid *models.TokenInvalidError
		if errors.As(err, &invalid) {
			pkghttp.WriteBadRequest(w, resetTokenFailureMessage(invalid.Reason))
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"valid":     true,
		"email":     record.Email,
		"message":   "Token is valid, you can set a new password",
		"expiresAt": record.ExpiresAt,
	})
}

// ResetPassword handles POST /reset-password
func (h *RecoveryHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword)
	if err != nil {
		var invalid *models.TokenInvalidError
		var validation *models.ValidationError
		switch {
		case errors.As(err, &invalid):
			pkghttp.WriteBadRequest(w, resetTokenFailureMessage(invalid.Reason))
		case errors.As(err, &validation):
			pkghttp.WriteFieldError(w, http.StatusBadRequest, "bad_request", validation.Message, validation.Field)
		case errors.Is(err, models.ErrSamePassword):
			pkghttp.WriteBadRequest(w, "New password must differ from the current one")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"message":       "Password has been reset, you can now log in",
		"requireReauth": true,
		"emailSent":     true,
	})
}

// ChangePassword handles POST /settings/change-password
func (h *RecoveryHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetSessionFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Not authenticated")
		return
	}

	var req ChangePasswordRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	err := h.service.ChangePassword(r.Context(), claims.Login, req.CurrentPassword, req.NewPassword, req.SecretWord, ipAddress)
	if err != nil {
		var validation *models.ValidationError
		switch {
		case errors.As(err, &validation):
			pkghttp.WriteFieldError(w, http.StatusBadRequest, "bad_request", validation.Message, validation.Field)
		case errors.Is(err, models.ErrSamePassword):
			pkghttp.WriteBadRequest(w, "New password must differ from the current one")
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteUnauthorized(w, "Current password is incorrect")
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Not authenticated")
		default:
			h.writeRecoveryError(w, err)
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"message":       "Password changed, all sessions have been signed out",
		"requireReauth": true,
		"emailSent":     true,
	})
}

// writeRecoveryError maps the error types shared between the recovery
// entry points.
func (h *RecoveryHandler) writeRecoveryError(w http.ResponseWriter, err error) {
	var blocked *models.BlockedError
	var limited *models.RateLimitError
	var wrongSecret *models.WrongSecretWordError
	switch {
	case errors.As(err, &blocked):
		pkghttp.WriteForbidden(w, services.BlockedMessage(blocked.Until))
	case errors.As(err, &limited):
		pkghttp.WriteForbidden(w, "Too many failed attempts, please try again later")
	case errors.As(err, &wrongSecret):
		pkghttp.WriteForbidden(w,
			fmt.Sprintf("Wrong secret word, %d attempts remaining", wrongSecret.Remaining))
	case errors.Is(err, models.ErrNoSecretWord):
		pkghttp.WriteForbidden(w, "No secret word is configured for this account, please contact support")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "No account found for this email, please register first")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

func resetTokenFailureMessage(reason string) string {
	switch reason {
	case models.TokenReasonExpired:
		return "This reset link has expired, please request a new one"
	case models.TokenReasonUsed:
		return "This reset link has already been used"
	default:
		return "Invalid reset link"
	}
}
