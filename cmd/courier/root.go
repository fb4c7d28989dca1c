package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/parcelworks/courier"
	"github.com/parcelworks/courier/broker"
	brokermem "github.com/parcelworks/courier/broker/memory"
	brokerredis "github.com/parcelworks/courier/broker/redis"
	"github.com/parcelworks/courier/job"
	storemem "github.com/parcelworks/courier/store/memory"
	storepg "github.com/parcelworks/courier/store/postgres"
	storesqlite "github.com/parcelworks/courier/store/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "courier",
	Short: "Asynchronous job dispatch service",
	Long: `courier accepts jobs over HTTP, persists them to a relational store,
and dispatches them through a FIFO queue to a pool of workers.

Backends are selected by URL: DATABASE_URL picks the job store
(postgres://, a sqlite file path, or "memory"), REDIS_URL picks the
broker (redis:// or "memory").`,
	SilenceUsage: true,
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// openStore selects the job store backend from the database URL.
func openStore(cmd *cobra.Command, cfg courier.Config, logger *slog.Logger) (job.Store, error) {
	ctx := cmd.Context()

	switch {
	case strings.HasPrefix(cfg.DatabaseURL, "postgres://"),
		strings.HasPrefix(cfg.DatabaseURL, "postgresql://"):
		return storepg.New(ctx, cfg.DatabaseURL, storepg.WithLogger(logger))
	case cfg.DatabaseURL == "memory":
		return storemem.New(), nil
	default:
		path := strings.TrimPrefix(cfg.DatabaseURL, "sqlite:")
		return storesqlite.New(path, storesqlite.WithLogger(logger))
	}
}

// openBroker selects the broker backend from the Redis URL. The second
// return value closes the underlying Redis client, when there is one.
func openBroker(cfg courier.Config, logger *slog.Logger) (broker.Broker, func() error, error) {
	if cfg.RedisURL == "memory" {
		b := brokermem.New()
		return b, b.Close, nil
	}

	redisOpts, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(redisOpts)
	b := brokerredis.New(client, cfg.QueueName, brokerredis.WithLogger(logger))
	return b, client.Close, nil
}
