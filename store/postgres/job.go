package postgres

import (
	"context"
	"fmt"

	"github.com/parcelworks/courier"
	"github.com/parcelworks/courier/id"
	"github.com/parcelworks/courier/job"
)

const jobFields = `id, type, payload, status, retries, max_retries, last_error,
	created_at, updated_at, started_at, completed_at`

// CreateJob inserts a new QUEUED job.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO courier_jobs (
			id, type, payload, status, retries, max_retries, last_error,
			created_at, updated_at, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		j.ID.String(), j.Type, j.Payload, string(j.Status),
		j.Retries, j.MaxRetries, j.LastError,
		j.CreatedAt, j.UpdatedAt, j.StartedAt, j.CompletedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return courier.ErrJobAlreadyExists
		}
		return fmt.Errorf("courier/postgres: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+jobFields+`
		FROM courier_jobs
		WHERE id = $1`,
		jobID.String(),
	)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, courier.ErrJobNotFound
		}
		return nil, fmt.Errorf("courier/postgres: get job: %w", err)
	}
	return j, nil
}

// TransitionJob atomically moves a job from one status to another. The
// `AND status = $2` predicate is the compare-and-swap: when two workers
// race on the same claim, one row update wins and the other sees zero
// rows affected.
func (s *Store) TransitionJob(ctx context.Context, jobID id.JobID, from, to job.Status, lastError string) (*job.Job, error) {
	if !job.ValidTransition(from, to) {
		return nil, courier.ErrInvalidTransition
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE courier_jobs SET
			status = $3,
			retries = retries + CASE WHEN $3 = 'PROCESSING' THEN 1 ELSE 0 END,
			last_error = CASE WHEN $4 = '' THEN last_error ELSE $4 END,
			started_at = CASE WHEN $3 = 'PROCESSING' AND started_at IS NULL THEN NOW() ELSE started_at END,
			completed_at = CASE WHEN $3 IN ('COMPLETED', 'FAILED') THEN NOW() ELSE completed_at END,
			updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+jobFields,
		jobID.String(), string(from), string(to), lastError,
	)

	j, err := scanJob(row)
	if err == nil {
		return j, nil
	}
	if !isNoRows(err) {
		return nil, fmt.Errorf("courier/postgres: transition job: %w", err)
	}

	// Zero rows: either the job does not exist or its status moved on.
	var exists bool
	if checkErr := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM courier_jobs WHERE id = $1)`,
		jobID.String(),
	).Scan(&exists); checkErr != nil {
		return nil, fmt.Errorf("courier/postgres: transition job: %w", checkErr)
	}
	if !exists {
		return nil, courier.ErrJobNotFound
	}
	return nil, courier.ErrStaleStatus
}

// CountJobs returns the number of jobs matching the given options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	query := `SELECT count(*) FROM courier_jobs`
	args := []any{}
	if opts.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(opts.Status))
	}

	var count int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("courier/postgres: count jobs: %w", err)
	}
	return count, nil
}
