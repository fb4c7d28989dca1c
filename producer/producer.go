// Package producer accepts job submissions, persists them, and hands
// their ids to the broker.
//
// Submission is two steps with no transaction spanning them: the store
// insert is the commit point, the enqueue is delivery. If the enqueue
// fails after the insert succeeded, the job is orphaned — persisted as
// QUEUED but absent from the queue. Submit reports this with
// courier.ErrEnqueueFailed while still returning the created job, so
// callers can surface the id for manual requeue.
package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/parcelworks/courier"
	"github.com/parcelworks/courier/broker"
	"github.com/parcelworks/courier/job"
)

// Producer validates and submits jobs.
type Producer struct {
	store      job.Store
	broker     broker.Broker
	registry   *job.Registry
	maxRetries int
	logger     *slog.Logger
}

// Option configures the Producer.
type Option func(*Producer)

// WithMaxRetries sets the default attempt budget for submitted jobs.
// Per-type definition options take precedence.
func WithMaxRetries(n int) Option {
	return func(p *Producer) {
		p.maxRetries = n
	}
}

// WithLogger sets the logger for the producer.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Producer) {
		p.logger = logger
	}
}

// New creates a Producer backed by the given store, broker, and registry.
func New(store job.Store, brk broker.Broker, registry *job.Registry, opts ...Option) *Producer {
	p := &Producer{
		store:      store,
		broker:     brk,
		registry:   registry,
		maxRetries: courier.DefaultMaxRetries,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit validates the submission, persists a QUEUED job, and enqueues
// its id. Validation failures return before anything is written:
// courier.ErrUnknownJobType for an unregistered type and
// courier.ErrEmptyPayload for a missing or malformed payload.
//
// On enqueue failure the created job is returned alongside an error
// wrapping courier.ErrEnqueueFailed.
func (p *Producer) Submit(ctx context.Context, jobType string, payload json.RawMessage) (*job.Job, error) {
	opts, ok := p.registry.Options(jobType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", courier.ErrUnknownJobType, jobType)
	}
	if len(payload) == 0 || !json.Valid(payload) {
		return nil, courier.ErrEmptyPayload
	}

	maxRetries := p.maxRetries
	if opts.MaxRetries > 0 {
		maxRetries = opts.MaxRetries
	}

	j := job.New(jobType, payload, maxRetries)

	if err := p.store.CreateJob(ctx, j); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := p.broker.Enqueue(ctx, j.ID); err != nil {
		// The row exists but the id never reached the queue. Log enough
		// for an operator to requeue it by hand.
		p.logger.Error("job persisted but enqueue failed",
			"job_id", j.ID,
			"job_type", jobType,
			"error", err,
		)
		return j, fmt.Errorf("%w: %v", courier.ErrEnqueueFailed, err)
	}

	p.logger.Info("job submitted",
		"job_id", j.ID,
		"job_type", jobType,
	)
	return j, nil
}

// Requeue re-enqueues a persisted job's id without touching its row.
// Intended for recovering orphaned jobs; the job must be QUEUED.
func (p *Producer) Requeue(ctx context.Context, j *job.Job) error {
	if j.Status != job.StatusQueued {
		return fmt.Errorf("%w: cannot requeue %s job", courier.ErrStaleStatus, j.Status)
	}
	if err := p.broker.Enqueue(ctx, j.ID); err != nil {
		return fmt.Errorf("%w: %v", courier.ErrEnqueueFailed, err)
	}
	return nil
}

// IsOrphaned reports whether err marks a submission that persisted the
// job but failed to enqueue it.
func IsOrphaned(err error) bool {
	return errors.Is(err, courier.ErrEnqueueFailed)
}
