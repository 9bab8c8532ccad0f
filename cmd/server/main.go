package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/toeic-session/internal/config"
	"github.com/stemsi/toeic-session/internal/database"
	"github.com/stemsi/toeic-session/internal/handler"
	"github.com/stemsi/toeic-session/internal/logger"
	"github.com/stemsi/toeic-session/internal/middleware"
	"github.com/stemsi/toeic-session/internal/repository"
	"github.com/stemsi/toeic-session/internal/router"
	"github.com/stemsi/toeic-session/internal/service"
	"github.com/stemsi/toeic-session/internal/validator"
	"github.com/stemsi/toeic-session/internal/worker"
)

const reapInterval = time.Minute

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting TOEIC session server")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	// ─── Initialize Repositories ───────────────────────────────────────
	testRepo := repository.NewTestRepository(pool)
	resultRepo := repository.NewResultRepository(pool)
	draftRepo := repository.NewDraftRepository(pool)
	monitorRepo := repository.NewMonitorRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	cache := service.NewRedisCache(rdb)
	authService := service.NewAuthService(cfg, rdb)
	testService := service.NewTestService(testRepo, cache, cfg.ItemsCacheTTL, log)
	submissionService := service.NewSubmissionService(testService, resultRepo, draftRepo, cache, log)
	attemptService := service.NewAttemptService(testService, submissionService, cache, draftRepo, service.AttemptOptions{
		MaxLive:   cfg.MaxLiveAttempts,
		Retention: cfg.AttemptRetention,
	}, log)
	resultService := service.NewResultService(resultRepo)
	monitorService := service.NewMonitorService(monitorRepo, attemptService, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:    handler.NewAuthHandler(authService),
		Test:    handler.NewTestHandler(testService, log),
		Attempt: handler.NewAttemptHandler(attemptService, log),
		Result:  handler.NewResultHandler(resultService, log),
		WS:      handler.NewWSHandler(attemptService, log, cfg.AllowedOrigins),
		Monitor: handler.NewMonitorHandler(rdb, testService, monitorService, log),
		System:  handler.NewSystemHandler(pool, rdb, attemptService, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	draftWorker := worker.NewDraftWorker(draftRepo, rdb, log)
	workers.Add(2)
	go func() {
		defer workers.Done()
		draftWorker.Start(workerCtx)
	}()
	go func() {
		defer workers.Done()
		attemptService.RunReaper(workerCtx, reapInterval)
	}()

	var startLimiter *middleware.RateLimiter
	if cfg.AttemptStartRate > 0 {
		startLimiter = middleware.NewRateLimiter(cfg.AttemptStartRate, time.Minute)
		go startLimiter.RunCleanup(workerCtx.Done())
	}

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Every test is loaded before traffic so the first wave of starts
	// does not stampede PostgreSQL.
	if err := testService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, startLimiter, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

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

	// 1. Stop accepting new HTTP requests. Hijacked attempt streams are not
	// tracked by Shutdown and end when their attempts close below.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for the draft queue to drain, so
	// no queued draft is written after its attempt is submitted.
	workerCancel()
	workers.Wait()

	// 3. Submit every attempt still in memory.
	attemptCtx, attemptCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer attemptCancel()
	attemptService.Shutdown(attemptCtx)

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
