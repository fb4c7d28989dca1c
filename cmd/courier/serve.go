package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/parcelworks/courier"
	"github.com/parcelworks/courier/api"
	"github.com/parcelworks/courier/handlers"
	"github.com/parcelworks/courier/job"
	"github.com/parcelworks/courier/middleware"
	"github.com/parcelworks/courier/producer"
	"github.com/parcelworks/courier/worker"
)

var serveWorkers int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and worker pool in one process",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&serveWorkers, "workers", 0,
		"number of worker goroutines (0 = embedded workers off unless WORKER_COUNT is set)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := newLogger()

	cfg, err := courier.FromEnv()
	if err != nil {
		return err
	}
	if serveWorkers > 0 {
		cfg.WorkerCount = serveWorkers
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cmd, cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}

	brk, closeBroker, err := openBroker(cfg, logger)
	if err != nil {
		return fmt.Errorf("open broker: %w", err)
	}
	defer closeBroker() //nolint:errcheck

	if err := brk.Ping(ctx); err != nil {
		return fmt.Errorf("broker unreachable: %w", err)
	}

	registry := job.NewRegistry()
	handlers.Register(registry, logger)

	prod := producer.New(store, brk, registry,
		producer.WithMaxRetries(cfg.MaxRetries),
		producer.WithLogger(logger),
	)

	executor := worker.NewExecutor(store, brk, registry,
		worker.WithExecutorLogger(logger),
		worker.WithMiddleware(
			middleware.Logging(logger),
			middleware.Recover(logger),
			middleware.Metrics(),
			middleware.Tracing(),
		),
	)
	pool := worker.NewPool(brk, executor,
		worker.WithConcurrency(cfg.WorkerCount),
		worker.WithDequeueTimeout(cfg.DequeueTimeout),
		worker.WithPoolLogger(logger),
	)
	pool.Start(ctx)
	defer pool.Stop()

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: api.New(prod, store, brk, api.WithLogger(logger)).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	pool.Stop()

	logger.Info("shutdown complete")
	return nil
}
