package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/examguard-backend/internal/config"
	"github.com/stemsi/examguard-backend/internal/database"
	"github.com/stemsi/examguard-backend/internal/handler"
	"github.com/stemsi/examguard-backend/internal/logger"
	"github.com/stemsi/examguard-backend/internal/metrics"
	"github.com/stemsi/examguard-backend/internal/middleware"
	"github.com/stemsi/examguard-backend/internal/repository"
	"github.com/stemsi/examguard-backend/internal/router"
	"github.com/stemsi/examguard-backend/internal/service"
	"github.com/stemsi/examguard-backend/internal/tracing"
	"github.com/stemsi/examguard-backend/internal/validator"
	"github.com/stemsi/examguard-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Int("violation_limit", cfg.ViolationLimit).
		Msg("Starting ExamGuard Backend")

	// ─── Initialize Validator, Metrics, Tracing ────────────────────────
	validator.Setup()
	metrics.Init()

	if cfg.JaegerEndpoint != "" {
		tp, err := tracing.InitTracer(cfg.ServiceName, cfg.JaegerEndpoint)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize tracing")
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				log.Error().Err(err).Msg("Tracer shutdown error")
			}
		}()
		log.Info().Str("endpoint", cfg.JaegerEndpoint).Msg("Tracing enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Migrations ────────────────────────────────────────────────────
	if cfg.AutoMigrate {
		changed, err := database.MigrateUp(cfg.MigrationsPath, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
		log.Info().Bool("changed", changed).Msg("Migrations applied")
	}

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Services ──────────────────────────────────────────
	store := repository.NewStore(pool)
	uow := service.NewUnitOfWork(store)
	papers := service.NewRedisPaperCache(rdb, cfg.PaperCacheTTL)

	authService := service.NewAuthService(cfg, uow, service.NewRedisTokenStore(rdb), log)
	monitorService := service.NewMonitorService(rdb, uow)
	catalogService := service.NewCatalogService(uow, papers, log)
	sessionService := service.NewExamSessionService(uow, papers, monitorService, cfg.ViolationLimit, log)
	resultService := service.NewResultService(uow)
	analyticsService := service.NewAnalyticsService(uow)

	// ─── Initialize Handlers ──────────────────────────────────────────
	monitorHandler := handler.NewMonitorHandler(monitorService, log)
	handlers := &router.Handlers{
		Auth:          handler.NewAuthHandler(authService, cfg.IsRelease()),
		Exam:          handler.NewExamHandler(catalogService, resultService),
		Question:      handler.NewQuestionHandler(catalogService),
		StudentPortal: handler.NewStudentPortalHandler(sessionService, resultService),
		Violation:     handler.NewViolationHandler(sessionService),
		Result:        handler.NewResultHandler(resultService),
		Analytics:     handler.NewAnalyticsHandler(analyticsService),
		Monitor:       monitorHandler,
		Health:        handler.NewHealthHandler(store, rdb),
	}

	limiters := router.Limiters{
		Auth:      middleware.NewRateLimiter(cfg.AuthRateLimitPerMin),
		Violation: middleware.NewRateLimiter(cfg.ViolationRateLimitPerMin),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workersDone := make(chan struct{})

	paperWarmer := worker.NewPaperWarmer(uow.Repos().Exams, sessionService, cfg.PaperWarmInterval, cfg.PaperWarmLead, log)
	go func() {
		defer close(workersDone)
		paperWarmer.Start(workerCtx)
	}()
	go limiters.Auth.Run(workerCtx)
	go limiters.Violation.Run(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, limiters, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	// No WriteTimeout: the monitor endpoint streams for as long as the admin watches.
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	srv.RegisterOnShutdown(monitorHandler.Shutdown)

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (10s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers.
	workerCancel()
	<-workersDone

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
