// Package courier implements a minimal asynchronous job dispatch pipeline:
// an HTTP API accepts job submissions, persists them to a relational store,
// and pushes the job id onto a Redis-backed FIFO broker. A pool of workers
// blocking-pops ids from the broker, claims each job through a conditional
// status transition in the store, runs the handler registered for the job
// type, and records the outcome.
//
// # Architecture
//
// The store is the source of truth for job state; the broker only carries
// id tokens. Delivery is at-least-once: a duplicate delivery is resolved by
// the store's compare-and-swap transition (QUEUED → PROCESSING), which
// exactly one worker can win. There is no visibility timeout or lease on
// the broker — a job whose worker crashes mid-execution stays PROCESSING
// until an operator intervenes. Crash recovery via lease/heartbeat is a
// deliberate extension point, not implemented here.
//
// # Quick Start
//
//	reg := job.NewRegistry()
//	handlers.Register(reg, logger)
//
//	p := producer.New(store, brk, reg, producer.WithMaxRetries(3))
//	exec := worker.NewExecutor(store, brk, reg,
//	    worker.WithMiddleware(middleware.Logging(logger), middleware.Recover(logger)))
//	pool := worker.NewPool(brk, exec, worker.WithConcurrency(4))
//	pool.Start(ctx)
//
// The cmd/courier binary wires the same pieces from environment
// configuration: `courier serve` runs the API, `courier work` runs the
// worker pool, and `courier migrate` applies the schema.
package courier
