// Package memory implements broker.Broker with an in-process channel.
// Intended for unit testing and single-binary development mode; it is
// not durable and cannot be shared across processes.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/parcelworks/courier"
	"github.com/parcelworks/courier/broker"
	"github.com/parcelworks/courier/id"
)

var _ broker.Broker = (*Broker)(nil)

// Broker is a channel-backed FIFO of job ids.
type Broker struct {
	ch        chan id.JobID
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures the Broker.
type Option func(*options)

type options struct {
	capacity int
}

// WithCapacity bounds the queue length. Enqueue fails with
// courier.ErrBrokerFull once the queue is full.
func WithCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

// New creates an in-memory broker with a default capacity of 1024.
func New(opts ...Option) *Broker {
	o := options{capacity: 1024}
	for _, opt := range opts {
		opt(&o)
	}
	return &Broker{
		ch:   make(chan id.JobID, o.capacity),
		done: make(chan struct{}),
	}
}

// Enqueue appends a job id to the tail of the queue.
func (b *Broker) Enqueue(ctx context.Context, jobID id.JobID) error {
	select {
	case <-b.done:
		return courier.ErrBrokerClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	select {
	case b.ch <- jobID:
		return nil
	default:
		return courier.ErrBrokerFull
	}
}

// Dequeue removes and returns the oldest id, blocking up to timeout.
func (b *Broker) Dequeue(ctx context.Context, timeout time.Duration) (id.JobID, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case jobID := <-b.ch:
		return jobID, true, nil
	case <-timer.C:
		return id.Nil, false, nil
	case <-b.done:
		return id.Nil, false, courier.ErrBrokerClosed
	case <-ctx.Done():
		return id.Nil, false, ctx.Err()
	}
}

// Ping reports whether the broker is open.
func (b *Broker) Ping(_ context.Context) error {
	select {
	case <-b.done:
		return courier.ErrBrokerClosed
	default:
		return nil
	}
}

// Close releases the broker. Ids still in the queue are dropped.
func (b *Broker) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	return nil
}
