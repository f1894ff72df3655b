package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cloudvienna/internal/audit"
	"cloudvienna/internal/auth"
	"cloudvienna/internal/config"
	"cloudvienna/internal/db"
	"cloudvienna/internal/maintenance"
	"cloudvienna/internal/observability"
)

type Options struct {
	LoadDotEnv bool
	DotEnvDir  string
}

type Runtime struct {
	Config  config.Config
	Handler http.Handler
	Logger  *observability.Logger
	Close   func() error
}

// Build loads and validates configuration, connects the database and wires
// the HTTP surface. A configuration error must abort startup.
func Build(ctx context.Context, options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		dir := options.DotEnvDir
		if dir == "" {
			dir = "."
		}
		config.LoadDotEnv(dir)
	}

	logger := observability.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if cfg.IsDevelopment() && len(cfg.JWTSecret) < config.MinSecretLength {
		logger.Warn("weak_jwt_secret", map[string]any{"app_env": cfg.AppEnv})
	}

	if err := observability.InitSentry(cfg.SentryDSN, cfg.AppEnv); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := db.Open(ctx, cfg.DatabaseURL, db.PoolConfig{
		MaxOpenConns:    cfg.DBPool.MaxOpenConns,
		MaxIdleConns:    cfg.DBPool.MaxIdleConns,
		ConnMaxLifetime: cfg.DBPool.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBPool.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, err
	}

	if cfg.RunMigrations {
		applied, err := db.RunMigrations(ctx, database)
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		if len(applied) > 0 {
			logger.Info("migrations_applied", map[string]any{"versions": applied})
		}
	}

	handler, err := wire(ctx, cfg, database, logger)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	return &Runtime{
		Config:  cfg,
		Handler: handler,
		Logger:  logger,
		Close: func() error {
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
}

func wire(ctx context.Context, cfg config.Config, database *sql.DB, logger *observability.Logger) (http.Handler, error) {
	auditRepo := audit.NewRepository(database)
	auditSink := audit.NewSink(auditRepo, logger)

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("init token issuer: %w", err)
	}
	hasher := auth.NewPasswordHasher(cfg.PasswordIterations)
	tracker := auth.NewLoginAttemptTracker(cfg.LoginMaxAttempts, cfg.LoginWindow, cfg.LoginBlock)

	authRepo := auth.NewRepository(database)
	authService := auth.NewService(authRepo, hasher, tokens, tracker, auditSink, logger)
	authService.WithTokenTTL(cfg.TokenTTLMinutes)
	userManager := auth.NewUserManager(authRepo, hasher, auditSink)
	authHandler := auth.NewHandler(authService, userManager, logger, cfg.TrustProxyHeaders)

	if err := userManager.BootstrapAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	auditHandler := audit.NewHandler(auditRepo, logger)
	purgeHandler := maintenance.NewAuditPurgeHandler(auditRepo, auditSink, logger, cfg.CronSecret, cfg.AuditRetention)

	admin := func(h http.HandlerFunc) http.Handler {
		return authHandler.Middleware(auth.RequireRole(auth.CanManageUsers, h))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler(database))
	mux.HandleFunc("POST /auth/login", authHandler.Login)
	mux.Handle("GET /auth/me", authHandler.Middleware(http.HandlerFunc(authHandler.Me)))
	mux.Handle("POST /admin/users", admin(authHandler.CreateUser))
	mux.Handle("PUT /admin/users/{username}/password", admin(authHandler.ResetPassword))
	mux.Handle("POST /admin/users/{username}/deactivate", admin(authHandler.DeactivateUser))
	mux.Handle("POST /admin/users/{username}/reactivate", admin(authHandler.ReactivateUser))
	mux.Handle("GET /admin/audit-logs", admin(auditHandler.List))
	mux.HandleFunc("GET /internal/maintenance/audit-purge", purgeHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/audit-purge", purgeHandler.Handle)

	handler := observability.RequestLoggingMiddleware(logger, cfg.TrustProxyHeaders, mux)
	handler = observability.RecoverMiddleware(logger, handler)
	handler = observability.CorrelationMiddleware(handler)

	return handler, nil
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
