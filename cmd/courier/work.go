package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/parcelworks/courier"
	"github.com/parcelworks/courier/handlers"
	"github.com/parcelworks/courier/job"
	"github.com/parcelworks/courier/middleware"
	"github.com/parcelworks/courier/worker"
)

var workCount int

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "Run a standalone worker pool",
	Long: `work consumes the queue without serving HTTP. Run as many work
processes as needed; the store's conditional status update keeps
concurrent consumers from double-executing a job.`,
	RunE: runWork,
}

func init() {
	workCmd.Flags().IntVar(&workCount, "count", 0,
		"number of worker goroutines (overrides WORKER_COUNT)")
	rootCmd.AddCommand(workCmd)
}

func runWork(cmd *cobra.Command, _ []string) error {
	logger := newLogger()

	cfg, err := courier.FromEnv()
	if err != nil {
		return err
	}
	if workCount > 0 {
		cfg.WorkerCount = workCount
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cmd, cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

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
	<-ctx.Done()

	logger.Info("shutting down")
	pool.Stop()
	logger.Info("shutdown complete")
	return nil
}
