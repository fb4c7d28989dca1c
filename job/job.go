package job

import (
	"encoding/json"
	"time"

	"github.com/parcelworks/courier/id"
)

// Status is the lifecycle status of a job. The string values are the
// stored and wire representation.
type Status string

const (
	// StatusQueued means the job is waiting to be picked up by a worker.
	StatusQueued Status = "QUEUED"
	// StatusProcessing means a worker has claimed the job and is executing it.
	StatusProcessing Status = "PROCESSING"
	// StatusCompleted means the handler finished successfully. Terminal.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed means the job exhausted its attempts. Terminal.
	StatusFailed Status = "FAILED"
)

// Valid reports whether s is a known job status.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Job is a unit of work flowing through the pipeline. ID, Type, and
// Payload are immutable after creation; Status is mutated only through
// the store's conditional transition, never assigned directly.
type Job struct {
	ID      id.JobID        `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Status  Status          `json:"status"`

	// Retries counts execution attempts so far. It is incremented exactly
	// once per claim, so a job that failed twice and then succeeded on the
	// third attempt ends with Retries == 3.
	Retries int `json:"retries"`

	// MaxRetries is the attempt budget, copied from configuration (or the
	// job definition's override) at submit time.
	MaxRetries int `json:"max_retries"`

	// LastError holds the message of the most recent failed attempt.
	LastError string `json:"last_error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// New creates a queued job with a fresh ID and zero attempts.
func New(jobType string, payload json.RawMessage, maxRetries int) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:         id.NewJobID(),
		Type:       jobType,
		Payload:    payload,
		Status:     StatusQueued,
		Retries:    0,
		MaxRetries: maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
