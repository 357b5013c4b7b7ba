package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/diagnoseapp/accountsec/internal/auth"
	"github.com/diagnoseapp/accountsec/internal/background"
	"github.com/diagnoseapp/accountsec/internal/config"
	"github.com/diagnoseapp/accountsec/internal/database"
	"github.com/diagnoseapp/accountsec/internal/handlers"
	middlewareCustom "github.com/diagnoseapp/accountsec/internal/middleware"
	"github.com/diagnoseapp/accountsec/internal/repositories"
	"github.com/diagnoseapp/accountsec/internal/routes"
	"github.com/diagnoseapp/accountsec/internal/services"
	pkghttp "github.com/diagnoseapp/accountsec/pkg/http"
	pkglogger "github.com/diagnoseapp/accountsec/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Repositories
	accountRepo := repositories.NewAccountRepository(db)
	attemptRepo := repositories.NewAttemptRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	tokenRepo := repositories.NewTokenRepository(db)

	// Background cleanup of expired sessions, spent tokens and stale counters
	cleanupManager := background.NewCleanupManager(
		sessionRepo,
		tokenRepo,
		attemptRepo,
		cfg.Security.SessionTTL,
		24*time.Hour,
		cfg.Security.CleanupInterval,
		logger,
	)

	auditLogger := pkglogger.NewAuditLogger(logger)

	emailService, err := services.NewAWSSESEmailService(
		cfg.Email.AWSRegion,
		cfg.Email.FromAddress,
		cfg.Email.BaseURL,
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	// Security building blocks
	tokenManager := auth.NewSessionTokenManager(cfg.Security.SessionSecret, cfg.Security.SessionTTL)
	failureDelay := auth.NewFixedDelay(cfg.Security.FailureDelay)

	blockingPolicy := services.NewBlockingPolicy(accountRepo, emailService, logger, auditLogger)
	attemptTracker := services.NewAttemptTracker(attemptRepo, cfg.Security.AttemptLimit, logger)
	sessionManager := services.NewSessionManager(tokenManager, sessionRepo, cfg.Security.SessionLimit, logger)
	tokenService := services.NewTokenService(tokenRepo, cfg.Security.ResetTokenTTL, cfg.Security.ConfirmTokenTTL, logger)

	authService := services.NewAuthService(
		accountRepo,
		blockingPolicy,
		sessionManager,
		tokenService,
		emailService,
		failureDelay,
		cfg.Security.MaxAccountsPerEmail,
		logger,
		auditLogger,
	)
	recoveryService := services.NewRecoveryService(
		accountRepo,
		attemptTracker,
		blockingPolicy,
		tokenService,
		emailService,
		logger,
		auditLogger,
	)

	// Handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: nil}
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	recoveryHandler := handlers.NewRecoveryHandler(recoveryService, ipConfig)

	// Router
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, recoveryHandler, tokenManager, sessionRepo)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
