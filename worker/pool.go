package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/parcelworks/courier/backoff"
	"github.com/parcelworks/courier/broker"
	"github.com/parcelworks/courier/id"
)

const defaultDequeueTimeout = 5 * time.Second

// Pool runs a fixed set of worker goroutines, each looping
// dequeue -> execute. Stop is cooperative: workers check the stop
// channel between dequeues, so shutdown latency is bounded by the
// dequeue timeout plus the running handler, and no job is abandoned
// mid-execution.
type Pool struct {
	broker         broker.Broker
	executor       *Executor
	logger         *slog.Logger
	concurrency    int
	dequeueTimeout time.Duration
	errorBackoff   backoff.Strategy

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// PoolOption configures the Pool.
type PoolOption func(*Pool)

// WithConcurrency sets the number of worker goroutines. Default 4.
func WithConcurrency(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithDequeueTimeout bounds each blocking dequeue. Default 5s. This is
// also the worst-case shutdown latency of an idle worker.
func WithDequeueTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.dequeueTimeout = d
		}
	}
}

// WithErrorBackoff sets the delay strategy applied after consecutive
// dequeue or execution errors.
func WithErrorBackoff(s backoff.Strategy) PoolOption {
	return func(p *Pool) {
		p.errorBackoff = s
	}
}

// WithPoolLogger sets the logger for the pool.
func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) {
		p.logger = logger
	}
}

// NewPool creates a worker pool. Call Start to begin consuming.
func NewPool(brk broker.Broker, executor *Executor, opts ...PoolOption) *Pool {
	p := &Pool{
		broker:         brk,
		executor:       executor,
		logger:         slog.Default(),
		concurrency:    4,
		dequeueTimeout: defaultDequeueTimeout,
		errorBackoff:   backoff.DefaultStrategy(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the worker goroutines. Safe to call once; subsequent
// calls while running are no-ops.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})

	for i := 0; i < p.concurrency; i++ {
		workerID := id.NewWorkerID()
		p.wg.Add(1)
		go p.loop(ctx, workerID)
	}

	p.logger.Info("worker pool started", "concurrency", p.concurrency)
}

// Stop signals all workers and waits for in-flight executions to
// finish. Safe to call multiple times.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// loop is one worker's dequeue-execute cycle. Errors from the broker or
// store do not kill the worker; it backs off and keeps polling.
func (p *Pool) loop(ctx context.Context, workerID id.WorkerID) {
	defer p.wg.Done()

	logger := p.logger.With("worker_id", workerID)
	logger.Debug("worker started")

	consecutiveErrs := 0
	for {
		select {
		case <-p.stopCh:
			logger.Debug("worker stopping")
			return
		case <-ctx.Done():
			logger.Debug("worker context cancelled")
			return
		default:
		}

		jobID, ok, err := p.broker.Dequeue(ctx, p.dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			consecutiveErrs++
			delay := p.errorBackoff.Delay(consecutiveErrs)
			logger.Error("dequeue failed, backing off",
				"error", err,
				"delay", delay,
			)
			if !p.sleep(ctx, delay) {
				return
			}
			continue
		}
		if !ok {
			// Queue idle; loop back around to the shutdown check.
			continue
		}

		if err := p.executor.Execute(ctx, jobID); err != nil {
			consecutiveErrs++
			delay := p.errorBackoff.Delay(consecutiveErrs)
			logger.Error("job execution failed on infrastructure error, backing off",
				"job_id", jobID,
				"error", err,
				"delay", delay,
			)
			if !p.sleep(ctx, delay) {
				return
			}
			continue
		}
		consecutiveErrs = 0
	}
}

// sleep waits for d unless the pool stops or ctx is cancelled first.
// Returns false when the worker should exit.
func (p *Pool) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-p.stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}
