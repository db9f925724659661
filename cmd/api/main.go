package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/sindh/backend/internal/auth"
	"github.com/sindh/backend/internal/config"
	"github.com/sindh/backend/internal/execution"
	"github.com/sindh/backend/internal/handlers"
	"github.com/sindh/backend/internal/ledger"
	"github.com/sindh/backend/internal/metrics"
	"github.com/sindh/backend/internal/middleware"
	"github.com/sindh/backend/internal/migrations"
	"github.com/sindh/backend/internal/notify"
	"github.com/sindh/backend/internal/repository"
	"github.com/sindh/backend/internal/router"
	"github.com/sindh/backend/internal/services"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	version, err := migrations.Up(cfg.DatabaseURL)
	if err != nil {
		slog.Error("Schema migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Schema migrations applied", "version", version)

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL")

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// Notify jobs retry until Redis is back; the API itself does not depend on it.
		slog.Warn("Redis unreachable, notifications will be retried", "addr", cfg.RedisAddr, "error", err)
	}
	publisher := notify.NewPublisher(rdb, cfg.InboxSize)

	// Repositories
	jobRepo := repository.NewJobRepo(pool)
	appRepo := repository.NewApplicationRepo(pool)
	participantRepo := repository.NewParticipantRepo(pool)
	ratingRepo := repository.NewRatingRepo(pool)
	ledgerRepo := ledger.NewRepository(pool)
	ledgerSvc := ledger.NewService(ledgerRepo)

	// Queue: insert func is set after the River client exists (breaks init cycle)
	var insertMu sync.Mutex
	var insertFn execution.InsertFunc
	queue := execution.NewQueue(func(ctx context.Context, args river.JobArgs) error {
		insertMu.Lock()
		fn := insertFn
		insertMu.Unlock()
		if fn == nil {
			return errors.New("river insert not wired")
		}
		return fn(ctx, args)
	})

	reputation := services.NewReputationService(jobRepo, jobRepo, participantRepo, ratingRepo, ledgerRepo, queue, logger)
	lifecycle := services.NewLifecycle(jobRepo, jobRepo, appRepo, participantRepo, services.NewPaymentService(ledgerSvc, ledgerRepo),
		reputation, queue, queue.EnqueueCascade, logger)
	lifecycle.MaxAttempts = cfg.MaxAttempts
	reputation.MaxAttempts = cfg.MaxAttempts
	wallets := services.NewWalletService(jobRepo, ledgerSvc)
	wallets.MaxAttempts = cfg.MaxAttempts

	// Background workers
	workers := river.NewWorkers()
	river.AddWorker(workers, execution.NewDeclineSiblingsWorker(lifecycle, logger))
	river.AddWorker(workers, execution.NewNotifyWorker(publisher))
	river.AddWorker(workers, execution.NewCascadeSweepWorker(lifecycle, logger))
	river.AddWorker(workers, execution.NewLedgerAuditWorker(ledgerRepo, logger))

	periodic, err := execution.PeriodicJobs(cfg.SweepSchedule, cfg.AuditSchedule)
	if err != nil {
		slog.Error("Invalid job schedule", "error", err)
		os.Exit(1)
	}

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.RiverWorkers},
		},
		Workers:      workers,
		PeriodicJobs: periodic,
		Logger:       logger,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	insertMu.Lock()
	insertFn = func(ctx context.Context, args river.JobArgs) error {
		_, err := riverClient.Insert(ctx, args, nil)
		return err
	}
	insertMu.Unlock()

	// HTTP
	validator, err := handlers.NewValidator()
	if err != nil {
		slog.Error("Schema validator init failed", "error", err)
		os.Exit(1)
	}
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	api := router.New(
		handlers.New(lifecycle, reputation, services.NewShortlister(lifecycle, participantRepo), wallets, publisher, validator, logger),
		middleware.ActorAuth(tokens),
		limiter.Middleware,
	)

	mux := http.NewServeMux()
	mux.Handle("/api/", api)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, `{"status":"unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(metrics.InstrumentHandler(mux))

	// Start River client (processes jobs)
	if err := riverClient.Start(ctx); err != nil {
		slog.Error("Failed to start River client", "error", err)
		os.Exit(1)
	}

	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				limiter.Sweep()
			}
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("Starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown", "error", err)
	}
	if err := riverClient.Stop(shutdownCtx); err != nil {
		slog.Error("River shutdown", "error", err)
	}
}
