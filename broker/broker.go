// Package broker defines the queue transport contract between the
// producer and the worker pool.
//
// The broker carries job id tokens only — never payloads — through a
// single named FIFO queue. Delivery is at-least-once: a dequeued id is
// in flight and will not be redelivered if the consuming worker crashes;
// the job store's status column is the authority for detecting stuck
// jobs. FIFO order holds for ids appended by a single producer; retried
// jobs are re-appended at the tail and lose their original position.
package broker

import (
	"context"
	"time"

	"github.com/parcelworks/courier/id"
)

// Broker is a durable FIFO transport for job ids.
type Broker interface {
	// Enqueue appends a job id to the tail of the queue.
	Enqueue(ctx context.Context, jobID id.JobID) error

	// Dequeue removes and returns the oldest available id, blocking up to
	// timeout when the queue is empty. Returns ok=false (and a nil error)
	// when the timeout elapses with nothing to deliver.
	Dequeue(ctx context.Context, timeout time.Duration) (jobID id.JobID, ok bool, err error)

	// Ping verifies the broker is reachable.
	Ping(ctx context.Context) error

	// Close releases broker resources. Blocked Dequeue calls return.
	Close() error
}
