package postgres

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/parcelworks/courier/id"
	"github.com/parcelworks/courier/job"
)

// scanJob scans one row in jobFields order.
func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		j           job.Job
		rawID       string
		status      string
		payload     []byte
		startedAt   *time.Time
		completedAt *time.Time
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
	j.StartedAt = startedAt
	j.CompletedAt = completedAt

	return &j, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// isDuplicateKey reports whether err is a Postgres unique violation.
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
