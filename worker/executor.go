// Package worker consumes job ids from the broker, claims the jobs in
// the store, and runs their handlers.
//
// The store is the arbiter: a claim is a conditional transition
// QUEUED -> PROCESSING, so when the at-least-once broker delivers the
// same id twice, one claim wins and the other observes a stale status
// and drops the delivery. There is no lease or visibility timeout on
// PROCESSING jobs; a worker crash mid-execution leaves the row stuck in
// PROCESSING until an operator requeues it.
package worker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/parcelworks/courier"
	"github.com/parcelworks/courier/broker"
	"github.com/parcelworks/courier/id"
	"github.com/parcelworks/courier/job"
	"github.com/parcelworks/courier/middleware"
)

// Executor claims and executes a single job per call. It is stateless
// and shared by all workers in a pool.
type Executor struct {
	store    job.Store
	broker   broker.Broker
	registry *job.Registry
	chain    middleware.Middleware
	logger   *slog.Logger
}

// ExecutorOption configures the Executor.
type ExecutorOption func(*Executor)

// WithMiddleware sets the middleware chain wrapped around every handler
// invocation.
func WithMiddleware(mws ...middleware.Middleware) ExecutorOption {
	return func(e *Executor) {
		e.chain = middleware.Chain(mws...)
	}
}

// WithExecutorLogger sets the logger for the executor.
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor creates an Executor. The broker is needed for requeueing
// failed jobs that still have attempts left.
func NewExecutor(store job.Store, brk broker.Broker, registry *job.Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		store:    store,
		broker:   brk,
		registry: registry,
		chain:    middleware.Chain(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute processes one delivered job id end to end: claim, run the
// handler, and apply the resulting transition. A nil return means the
// delivery was consumed, including the cases where the job was already
// taken by another worker or is in a terminal state; those are dropped,
// not errors. A non-nil return means the store or broker failed and the
// caller should back off.
func (e *Executor) Execute(ctx context.Context, jobID id.JobID) error {
	j, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, courier.ErrJobNotFound) {
			// An id on the queue with no row behind it. Possible if the
			// store and broker diverged; nothing to execute.
			e.logger.Warn("dequeued id has no job record", "job_id", jobID)
			return nil
		}
		return err
	}

	if j.Status != job.StatusQueued {
		// Duplicate delivery of a job another worker already claimed, or a
		// terminal job whose id lingered on the queue.
		e.logger.Debug("skipping non-queued job",
			"job_id", jobID,
			"status", j.Status,
		)
		return nil
	}

	claimed, err := e.store.TransitionJob(ctx, jobID, job.StatusQueued, job.StatusProcessing, "")
	if err != nil {
		if errors.Is(err, courier.ErrStaleStatus) || errors.Is(err, courier.ErrJobNotFound) {
			// Lost the claim race.
			e.logger.Debug("claim lost", "job_id", jobID)
			return nil
		}
		return err
	}

	handlerErr := e.run(ctx, claimed)
	if handlerErr == nil {
		if _, err := e.store.TransitionJob(ctx, jobID, job.StatusProcessing, job.StatusCompleted, ""); err != nil {
			return err
		}
		e.logger.Info("job completed",
			"job_id", jobID,
			"job_type", claimed.Type,
			"attempt", claimed.Retries,
		)
		return nil
	}

	return e.fail(ctx, claimed, handlerErr)
}

// run invokes the registered handler through the middleware chain. An
// unregistered type counts as a failed attempt, not a dropped delivery:
// the job was claimed and its retry budget should burn down normally.
func (e *Executor) run(ctx context.Context, j *job.Job) error {
	handler, ok := e.registry.Get(j.Type)
	if !ok {
		return courier.ErrUnknownJobType
	}
	return e.chain(ctx, j, func(ctx context.Context) error {
		return handler(ctx, j.Payload)
	})
}

// fail applies the failure transition chosen by the lifecycle table:
// back to QUEUED (plus a broker re-enqueue) while attempts remain,
// FAILED once the budget is exhausted.
func (e *Executor) fail(ctx context.Context, j *job.Job, handlerErr error) error {
	next := job.Next(job.OutcomeFailure, j.Retries, j.MaxRetries)

	if _, err := e.store.TransitionJob(ctx, j.ID, job.StatusProcessing, next, handlerErr.Error()); err != nil {
		return err
	}

	if next == job.StatusFailed {
		e.logger.Error("job failed permanently",
			"job_id", j.ID,
			"job_type", j.Type,
			"attempts", j.Retries,
			"error", handlerErr,
		)
		return nil
	}

	e.logger.Warn("job attempt failed, requeueing",
		"job_id", j.ID,
		"job_type", j.Type,
		"attempt", j.Retries,
		"max_retries", j.MaxRetries,
		"error", handlerErr,
	)

	if err := e.broker.Enqueue(ctx, j.ID); err != nil {
		// The row is QUEUED but the id never made it back onto the queue.
		// Same orphan shape as a failed submission.
		e.logger.Error("requeue enqueue failed, job orphaned",
			"job_id", j.ID,
			"job_type", j.Type,
			"error", err,
		)
		return err
	}
	return nil
}
