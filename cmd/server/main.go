// Package main is the entrypoint for the job tracker API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/jobtracker/internal/api"
	"github.com/kiranshivaraju/jobtracker/internal/api/handler"
	mw "github.com/kiranshivaraju/jobtracker/internal/api/middleware"
	"github.com/kiranshivaraju/jobtracker/internal/api/response"
	"github.com/kiranshivaraju/jobtracker/internal/cache"
	"github.com/kiranshivaraju/jobtracker/internal/config"
	"github.com/kiranshivaraju/jobtracker/internal/presence"
	"github.com/kiranshivaraju/jobtracker/internal/report"
	"github.com/kiranshivaraju/jobtracker/internal/store"
	"github.com/kiranshivaraju/jobtracker/internal/workflow"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "strict_status_edits", cfg.Workflow.StrictStatusEdits)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied", "dir", cfg.Database.MigrationsDir)

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create store and services
	pgStore := store.NewPostgresStore(pool)
	engine := workflow.NewEngine(pgStore,
		workflow.WithLogger(slog.Default().With("component", "workflow")),
		workflow.WithStrictStatusEdits(cfg.Workflow.StrictStatusEdits),
	)
	reports := report.NewService(pgStore)
	tracker := presence.NewTracker(redisCache, pgStore, cfg.Presence.TTL)

	// 6. Build router with dependencies
	deps := api.Dependencies{
		Identity:  mw.NewIdentity(pgStore),
		RateLimit: mw.NewRateLimit(redisCache, cfg.RateLimit.RequestsPerMinute),

		HealthHandler: healthHandler(pgStore, redisCache),

		MyJobs:    handler.NewMyJobsHandler(reports),
		MyTimer:   handler.NewActiveTimerHandler(engine),
		MyReport:  handler.NewMyReportHandler(reports),
		GetJob:    handler.NewGetJobHandler(reports),
		StartWork: handler.NewStartWorkHandler(engine),
		StopWork:  handler.NewStopWorkHandler(engine),
		SubmitJob: handler.NewSubmitJobHandler(engine),

		ListNotifications:        handler.NewListNotificationsHandler(pgStore),
		MarkNotificationRead:     handler.NewMarkNotificationReadHandler(pgStore),
		MarkAllNotificationsRead: handler.NewMarkAllNotificationsReadHandler(pgStore),

		Heartbeat:     handler.NewHeartbeatHandler(tracker),
		LeavePresence: handler.NewLeaveHandler(tracker),

		CreateJob:      handler.NewCreateJobHandler(engine),
		ListJobs:       handler.NewListJobsHandler(reports),
		UpdateJob:      handler.NewUpdateJobHandler(engine),
		ApproveJob:     handler.NewApproveJobHandler(engine),
		RequestChanges: handler.NewRequestChangesHandler(engine),
		TimeEntries:    handler.NewTimeEntriesHandler(reports),
		WorkerReport:   handler.NewWorkerReportHandler(reports),
		Summary:        handler.NewSummaryHandler(reports),
		OnlineWorkers:  handler.NewOnlineHandler(tracker),
		ListWorkers:    handler.NewListWorkersHandler(pgStore, tracker),
		CreateWorker:   handler.NewCreateWorkerHandler(pgStore, time.Now),
	}

	router := api.NewRouter(deps)

	// 7. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// pinger is satisfied by both the store and the cache.
type pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler checks database and cache connectivity.
func healthHandler(db, c pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := db.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Fail(w, response.CodeDegraded, "One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
