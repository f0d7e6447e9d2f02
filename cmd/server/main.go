// Copyright 2026 The FieldOps Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fieldops/fieldops/internal/audit"
	"github.com/fieldops/fieldops/internal/authz"
	"github.com/fieldops/fieldops/internal/catalog"
	"github.com/fieldops/fieldops/internal/config"
	"github.com/fieldops/fieldops/internal/identity"
	"github.com/fieldops/fieldops/internal/login"
	"github.com/fieldops/fieldops/internal/observability/logger"
	"github.com/fieldops/fieldops/internal/observability/metrics"
	"github.com/fieldops/fieldops/internal/observability/tracing"
	"github.com/fieldops/fieldops/internal/session"
	"github.com/fieldops/fieldops/internal/store/postgres"
	"github.com/fieldops/fieldops/internal/throttle"
	transportHTTP "github.com/fieldops/fieldops/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting fieldops authorization core")

	// Phase: CLI Commands
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Initialize context
	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}

	// Initialize database
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database")

	// Initialize repositories
	userRepo := postgres.NewUserRepository(db)
	sessionRepo := postgres.NewSessionRepository(db)
	assignmentRepo := postgres.NewAssignmentRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	catalogRepo := postgres.NewCatalogRepository(db)

	// Load the permission catalog. The roles table is seeded by the
	// initial migration; an empty table falls back to the built-in
	// defaults so a fresh deployment still resolves permissions.
	roleCatalog, err := loadCatalog(ctx, catalogRepo)
	if err != nil {
		slog.Error("failed to load permission catalog", logger.Error(err))
		os.Exit(1)
	}

	// Initialize helpers
	recorder := audit.NewStoreRecorder(auditRepo)
	passwordHasher := identity.NewPasswordHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)

	// Initialize services
	identityService := identity.NewService(
		userRepo,
		passwordHasher,
		cfg.Security.LockoutMaxAttempts,
		cfg.Security.LockoutDuration,
	)
	sessionService := session.NewService(sessionRepo, cfg.Session.Lifetime, cfg.Session.IdleTimeout)

	resolver := authz.NewResolver(roleCatalog, assignmentRepo)
	guard := authz.NewGuard(roleCatalog, resolver, assignmentRepo, recorder)

	// Login security pipeline
	stop := make(chan struct{})
	defer close(stop)

	limiter := throttle.NewLimiter(cfg.Login.MaxAttempts, cfg.Login.Window)
	limiter.StartJanitor(cfg.Login.JanitorInterval, stop)
	detector := throttle.NewDetector(cfg.Login.SuspicionThreshold, cfg.Login.SuspicionWindow)
	detector.StartJanitor(cfg.Login.JanitorInterval, stop)

	challenges := login.NewChallengeIssuer([]byte(cfg.Login.ChallengeSecret), cfg.Login.ChallengeTTL)

	orchestrator, err := login.NewOrchestrator(
		limiter,
		detector,
		identityService,
		recorder,
		challenges,
		cfg.Login.VerifyTimeout,
		meter,
	)
	if err != nil {
		slog.Error("failed to initialize login orchestrator", logger.Error(err))
		os.Exit(1)
	}

	// Initialize Bootstrap Service
	bootstrapService := identity.NewBootstrapService(
		identityService,
		assignmentRepo,
		recorder,
	)

	// Run Bootstrap (ENV driven)
	if err := bootstrapService.Bootstrap(ctx); err != nil {
		slog.Error("bootstrap failed", logger.Error(err))
	}

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// Configure SameSite mode
	sameSite := http.SameSiteLaxMode
	switch cfg.Session.CookieSameSite {
	case "Strict":
		sameSite = http.SameSiteStrictMode
	case "None":
		sameSite = http.SameSiteNoneMode
	}

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(
		identityService,
		sessionService,
		orchestrator,
		guard,
		resolver,
		transportHTTP.SessionConfig{
			CookieName:     cfg.Session.CookieName,
			CookieDomain:   cfg.Session.CookieDomain,
			CookiePath:     cfg.Session.CookiePath,
			CookieSecure:   cfg.Session.CookieSecure,
			CookieHTTPOnly: cfg.Session.CookieHTTPOnly,
			CookieSameSite: sameSite,
			Lifetime:       cfg.Session.Lifetime,
		},
	)

	// Create router
	router := transportHTTP.NewRouter(handler, rateLimiter)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start session cleanup goroutine
	sessionService.StartCleanup(ctx, 1*time.Hour, stop)

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

func loadCatalog(ctx context.Context, repo *postgres.CatalogRepository) (*catalog.Catalog, error) {
	roles, err := repo.LoadRoles(ctx)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return catalog.Default()
	}
	return catalog.New(roles, catalog.RoleCustomer)
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Applying initial schema...")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}
