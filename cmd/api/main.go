package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/corebank/finbatch/pkg/config"
	"github.com/corebank/finbatch/pkg/schedule"
	"github.com/corebank/finbatch/pkg/store"
)

func main() {
	// A .env file is optional; environment variables win either way.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	storage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer storage.Close()

	server := NewServer(storage, logger)
	runTimeout := time.Duration(cfg.RunTimeoutSeconds) * time.Second

	var scheduler *schedule.Scheduler
	if cfg.SchedulerEnabled {
		jobs := schedule.NewJobs(server.interest, server.provisions, logger, runTimeout)
		scheduler = schedule.NewScheduler(jobs, logger, *cfg)
		scheduler.Start()
		logger.Info("scheduler started")
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      http.TimeoutHandler(server.Router(), runTimeout, "batch run timed out"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: runTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received")
	if scheduler != nil {
		stopCtx := scheduler.Stop()
		<-stopCtx.Done()
		logger.Info("scheduler stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}

// openStorage picks Postgres when DATABASE_URL is set, SQLite otherwise.
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Storage, error) {
	if cfg.DatabaseURL != "" {
		return store.NewPostgresStore(ctx, cfg.DatabaseURL, logger)
	}
	return store.NewSQLiteStore(cfg.SQLitePath, logger)
}
