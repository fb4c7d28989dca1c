package job

import (
	"context"

	"github.com/parcelworks/courier/id"
)

// CountOpts controls filtering for job count queries.
type CountOpts struct {
	// Status filters by job status. Empty means all statuses.
	Status Status
}

// Store defines the persistence contract for jobs. The store is the sole
// synchronization point between producers and workers: TransitionJob is a
// compare-and-swap on the status column and is the only way a job's
// status changes.
type Store interface {
	// CreateJob inserts a new QUEUED job with zero attempts.
	// Returns courier.ErrJobAlreadyExists on a duplicate id.
	CreateJob(ctx context.Context, j *Job) error

	// GetJob retrieves a job by ID.
	// Returns courier.ErrJobNotFound when absent.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// TransitionJob atomically moves a job from one status to another and
	// returns the updated row. The update only applies while the stored
	// status still equals from; otherwise courier.ErrStaleStatus is
	// returned and nothing changes. Edges not in the lifecycle table are
	// rejected with courier.ErrInvalidTransition.
	//
	// Side effects applied by the store: a transition to PROCESSING
	// increments Retries and stamps StartedAt on the first claim; a
	// transition to a terminal status stamps CompletedAt; every transition
	// refreshes UpdatedAt. A non-empty lastError replaces LastError.
	TransitionJob(ctx context.Context, jobID id.JobID, from, to Status, lastError string) (*Job, error)

	// CountJobs returns the number of jobs matching the given options.
	CountJobs(ctx context.Context, opts CountOpts) (int64, error)

	// Migrate applies the schema. Idempotent; run before accepting traffic.
	Migrate(ctx context.Context) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}
