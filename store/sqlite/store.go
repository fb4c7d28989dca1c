// Package sqlite implements job.Store on SQLite via database/sql and
// mattn/go-sqlite3. Meant for single-node and development deployments;
// the conditional UPDATE in TransitionJob provides the same
// compare-and-swap semantics as the Postgres store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver registration

	"github.com/parcelworks/courier/job"
)

var _ job.Store = (*Store)(nil)

// Store is a SQLite implementation of job.Store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New opens (creating if necessary) the SQLite database at path.
// Use ":memory:" for an ephemeral store.
func New(path string, opts ...Option) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("courier/sqlite: open %s: %w", path, err)
	}

	// SQLite allows one writer at a time; a single connection avoids
	// SQLITE_BUSY churn between the producer and workers in-process.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:     db,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS courier_jobs (
	id           TEXT PRIMARY KEY,
	type         TEXT NOT NULL,
	payload      BLOB NOT NULL,
	status       TEXT NOT NULL DEFAULT 'QUEUED',
	retries      INTEGER NOT NULL DEFAULT 0,
	max_retries  INTEGER NOT NULL DEFAULT 3,
	last_error   TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL,
	started_at   DATETIME,
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_courier_jobs_status
	ON courier_jobs (status);

CREATE INDEX IF NOT EXISTS idx_courier_jobs_status_updated
	ON courier_jobs (status, updated_at);
`

// Migrate applies the schema. Idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("courier/sqlite: migrate: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
