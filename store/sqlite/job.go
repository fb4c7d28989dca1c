package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/parcelworks/courier"
	"github.com/parcelworks/courier/id"
	"github.com/parcelworks/courier/job"
)

const jobFields = `id, type, payload, status, retries, max_retries, last_error,
	created_at, updated_at, started_at, completed_at`

// CreateJob inserts a new QUEUED job.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO courier_jobs (
			id, type, payload, status, retries, max_retries, last_error,
			created_at, updated_at, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID.String(), j.Type, []byte(j.Payload), string(j.Status),
		j.Retries, j.MaxRetries, j.LastError,
		j.CreatedAt, j.UpdatedAt, nullTime(j.StartedAt), nullTime(j.CompletedAt),
	)
	if err != nil {
		if isDuplicateKey(err) {
			return courier.ErrJobAlreadyExists
		}
		return fmt.Errorf("courier/sqlite: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+jobFields+`
		FROM courier_jobs
		WHERE id = ?`,
		jobID.String(),
	)

	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, courier.ErrJobNotFound
		}
		return nil, fmt.Errorf("courier/sqlite: get job: %w", err)
	}
	return j, nil
}

// TransitionJob atomically moves a job from one status to another. The
// UPDATE's status predicate is the compare-and-swap; the follow-up read
// runs in the same transaction.
func (s *Store) TransitionJob(ctx context.Context, jobID id.JobID, from, to job.Status, lastError string) (*job.Job, error) {
	if !job.ValidTransition(from, to) {
		return nil, courier.ErrInvalidTransition
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("courier/sqlite: transition job: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE courier_jobs SET
			status = ?,
			retries = retries + CASE WHEN ? = 'PROCESSING' THEN 1 ELSE 0 END,
			last_error = CASE WHEN ? = '' THEN last_error ELSE ? END,
			started_at = CASE WHEN ? = 'PROCESSING' AND started_at IS NULL THEN ? ELSE started_at END,
			completed_at = CASE WHEN ? IN ('COMPLETED', 'FAILED') THEN ? ELSE completed_at END,
			updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to),
		string(to),
		lastError, lastError,
		string(to), now,
		string(to), now,
		now,
		jobID.String(), string(from),
	)
	if err != nil {
		return nil, fmt.Errorf("courier/sqlite: transition job: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("courier/sqlite: transition job: %w", err)
	}
	if affected == 0 {
		// Either the job does not exist or its status moved on.
		var exists bool
		if checkErr := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM courier_jobs WHERE id = ?)`,
			jobID.String(),
		).Scan(&exists); checkErr != nil {
			return nil, fmt.Errorf("courier/sqlite: transition job: %w", checkErr)
		}
		if !exists {
			return nil, courier.ErrJobNotFound
		}
		return nil, courier.ErrStaleStatus
	}

	row := tx.QueryRowContext(ctx, `
		SELECT `+jobFields+`
		FROM courier_jobs
		WHERE id = ?`,
		jobID.String(),
	)
	j, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("courier/sqlite: transition job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("courier/sqlite: transition job: %w", err)
	}
	return j, nil
}

// CountJobs returns the number of jobs matching the given options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	query := `SELECT count(*) FROM courier_jobs`
	args := []any{}
	if opts.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(opts.Status))
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("courier/sqlite: count jobs: %w", err)
	}
	return count, nil
}

func scanJob(row *sql.Row) (*job.Job, error) {
	var (
		j           job.Job
		rawID       string
		status      string
		payload     []byte
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)

	err := row.Scan(
		&rawID, &j.Type, &payload, &status, &j.Retries, &j.MaxRetries,
		&j.LastError, &j.CreatedAt, &j.UpdatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	parsedID, err := id.ParseJobID(rawID)
	if err != nil {
		return nil, err
	}

	j.ID = parsedID
	j.Status = job.Status(status)
	j.Payload = json.RawMessage(payload)
	if startedAt.Valid {
		t := startedAt.Time
		j.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		j.CompletedAt = &t
	}

	return &j, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func isDuplicateKey(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	// Fallback for wrapped driver errors.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
