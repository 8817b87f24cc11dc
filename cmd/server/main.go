package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/invigo/invigo-backend/internal/batch"
	"github.com/invigo/invigo-backend/internal/broadcast"
	"github.com/invigo/invigo-backend/internal/config"
	"github.com/invigo/invigo-backend/internal/database"
	"github.com/invigo/invigo-backend/internal/engine"
	"github.com/invigo/invigo-backend/internal/handler"
	"github.com/invigo/invigo-backend/internal/logger"
	"github.com/invigo/invigo-backend/internal/repository"
	"github.com/invigo/invigo-backend/internal/router"
	"github.com/invigo/invigo-backend/internal/service"
	"github.com/invigo/invigo-backend/internal/sweep"
	"github.com/invigo/invigo-backend/internal/validator"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Invigo Backend")

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
	sessionRepo := repository.NewSessionRepository(pool)
	batchRepo := repository.NewBatchRepository(pool)
	violationRepo := repository.NewViolationRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	candidateRepo := repository.NewCandidateRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	examService := service.NewExamService(examRepo, rdb, log)

	// ─── Session Engine, Batch Controller, Broadcast Hub ──────────────
	hub := broadcast.NewHub(rdb, log)
	eng := engine.New(
		engine.Stores{
			Sessions:   sessionRepo,
			Batches:    batchRepo,
			Violations: violationRepo,
			Audit:      auditRepo,
			Exams:      examRepo,
		},
		examService,
		hub,
		engine.SystemClock{},
		engine.Policy{
			WarningThreshold: cfg.WarningThreshold,
			HardThreshold:    cfg.HardThreshold,
		},
		log,
	)
	controller := batch.NewController(batchRepo, sessionRepo, auditRepo, eng, hub, engine.SystemClock{}, cfg.MaxBatchCapacity, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:      handler.NewAuthHandler(authService, candidateRepo),
		Candidate: handler.NewCandidateHandler(eng, examService, log),
		Admin:     handler.NewAdminHandler(eng, controller, hub, examService, authService, log),
		Monitor:   handler.NewMonitorHandler(rdb, eng, hub, examService, log),
		WS:        handler.NewWSHandler(eng, hub, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Sweeps ──────────────────────────────────────
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	sweeper := sweep.New(eng, hub, sweep.Intervals{
		Deadline:   cfg.DeadlineSweepInterval,
		Inactivity: cfg.InactivitySweepInterval,
		Stats:      cfg.StatsInterval,
	}, cfg.IdleWindow, log)
	sweeper.Start(sweepCtx)

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load every open exam into Redis BEFORE accepting traffic, so the
	// first batch never races a lazy load.
	if err := examService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	var ready atomic.Bool
	r := router.SetupRouter(authService, handlers, cfg, &ready)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	ready.Store(true)
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the sweeps. Sessions left ACTIVE are finalized by the
	// deadline sweep on the next start; nothing is lost on shutdown.
	sweepCancel()
	time.Sleep(time.Second)

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
