package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/diagnoseapp/accountsec/internal/auth"
	"github.com/diagnoseapp/accountsec/internal/handlers"
	"github.com/diagnoseapp/accountsec/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	recoveryHandler *handlers.RecoveryHandler,
	tokenManager *auth.SessionTokenManager,
	sessions auth.SessionChecker,
) {
	rateLimitConfig := middleware.DefaultAuthRateLimit()

	// Public routes - no authentication required
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/login", authHandler.Login)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/register", authHandler.Register)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/forgot-password", recoveryHandler.ForgotPassword)
	router.Get("/auth/confirm/{token}", authHandler.Confirm)
	router.Get("/validate-reset-token/{token}", recoveryHandler.ValidateResetToken)
	router.Post("/reset-password", recoveryHandler.ResetPassword)

	// Protected routes - a live session required
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireSession(tokenManager, sessions))

		r.Post("/auth/logout", authHandler.Logout)
		r.Post("/settings/change-password", recoveryHandler.ChangePassword)
	})
}
