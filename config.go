package courier

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DefaultMaxRetries is the attempt budget applied when neither
// configuration nor the job definition sets one.
const DefaultMaxRetries = 3

// Config holds process configuration shared by the API server and the
// worker pool.
type Config struct {
	// Addr is the HTTP listen address for the API server.
	Addr string

	// DatabaseURL selects the job store backend. A postgres:// or
	// postgresql:// URL opens the Postgres store; a sqlite: URL (or bare
	// file path) opens the SQLite store; the literal "memory" opens the
	// in-memory store.
	DatabaseURL string

	// RedisURL is the broker connection URL. The literal "memory" selects
	// the in-process broker (single-binary development mode only).
	RedisURL string

	// QueueName is the broker queue the producer appends to and the
	// workers consume from.
	QueueName string

	// MaxRetries is the number of execution attempts before a job is
	// marked FAILED. Job definitions may override it per type.
	MaxRetries int

	// WorkerCount is the number of concurrent worker goroutines.
	WorkerCount int

	// DequeueTimeout bounds each blocking dequeue. Workers check for
	// shutdown between timeouts, so this is also the shutdown latency of
	// an idle worker.
	DequeueTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		DatabaseURL:     "postgres://localhost:5432/courier?sslmode=disable",
		RedisURL:        "redis://localhost:6379/0",
		QueueName:       "default",
		MaxRetries:      DefaultMaxRetries,
		WorkerCount:     4,
		DequeueTimeout:  5 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// FromEnv builds a Config from environment variables, falling back to
// DefaultConfig for anything unset. Recognized variables: PORT,
// DATABASE_URL, REDIS_URL, QUEUE_NAME, MAX_RETRIES, WORKER_COUNT,
// DEQUEUE_TIMEOUT, SHUTDOWN_TIMEOUT.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if port := os.Getenv("PORT"); port != "" {
		cfg.Addr = ":" + port
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("QUEUE_NAME"); v != "" {
		cfg.QueueName = v
	}

	if v := os.Getenv("MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("courier: invalid MAX_RETRIES %q", v)
		}
		cfg.MaxRetries = n
	}
	if v := os.Getenv("WORKER_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("courier: invalid WORKER_COUNT %q", v)
		}
		cfg.WorkerCount = n
	}
	if v := os.Getenv("DEQUEUE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("courier: invalid DEQUEUE_TIMEOUT %q", v)
		}
		cfg.DequeueTimeout = d
	}
	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("courier: invalid SHUTDOWN_TIMEOUT %q", v)
		}
		cfg.ShutdownTimeout = d
	}

	return cfg, nil
}
