package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/app"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/config"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/database"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/domain/token"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/email"
	apphttp "github.com/EL-KENDEH-TEAM/EK-SMS/internal/http"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/http/handlers"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/http/metrics"
	httpmw "github.com/EL-KENDEH-TEAM/EK-SMS/internal/http/middleware"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/jobs"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/observability"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/ratelimit"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/repository/postgres"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/security"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := observability.NewLogger()

	db := database.NewPostgres(database.PostgresConfig{
		DSN:             cfg.PostgresDSN,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxIdle:     cfg.DBConnMaxIdle,
		ConnMaxLifetime: cfg.DBConnMaxLife,
	})
	defer db.Close()

	if err := database.Migrate(db, cfg.MigrationsDir); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}

	var limiter ratelimit.Limiter
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		limiter = ratelimit.NewRedisLimiter(redis.NewClient(opts), "eksms")
	} else {
		logger.Warn().Msg("REDIS_URL not set, using in-process rate limiter")
		limiter = ratelimit.NewMemoryLimiter()
	}

	appRepo := postgres.NewApplicationRepository(db)
	tokenRepo := postgres.NewTokenRepository(db)
	provisioningRepo := postgres.NewProvisioningRepository(db)

	vault := token.NewVault(tokenRepo, cfg.TokenTTL)
	sender := email.NewResendClient(cfg.ResendBaseURL, cfg.ResendAPIKey, cfg.EmailFrom, logger)
	emailService := email.NewService(sender, cfg.FrontendURL, logger)

	registrationService := app.NewRegistrationService(appRepo, vault, emailService, limiter, cfg.ResendLimit, cfg.ResendWindow, logger)
	adminService := app.NewAdminService(appRepo, provisioningRepo, emailService, logger)

	collector := metrics.NewCollector()

	registry := jobs.NewRegistry()
	registry.Observe(collector.ObserveJobRun)
	lifecycle := jobs.NewLifecycle(appRepo, vault, emailService, cfg.ReminderThreshold, cfg.ExpiryThreshold, logger)
	lifecycle.RegisterAll(registry)

	runner, err := jobs.NewRunner(cfg.JobSchedule, registry, cfg.RequestTimeout*6, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid job schedule")
	}
	runner.Start()
	defer runner.Stop()

	jwtProvider := security.NewJWTProvider(cfg.JWTSecret)

	router := apphttp.NewRouter(apphttp.RouterDependencies{
		RegistrationHandler: handlers.NewRegistrationHandler(registrationService),
		AdminHandler:        handlers.NewAdminHandler(adminService, registry, limiter),
		MetricsHandler:      collector.Handler(),
		AuthMiddleware:      httpmw.NewAuthMiddleware(jwtProvider),
		Metrics:             collector,
		Logger:              logger,
		RequestTimeout:      cfg.RequestTimeout,
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.HTTPPort).Msg("API started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown failed")
	}
}
