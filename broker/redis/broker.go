// Package redis implements broker.Broker on a Redis list: the producer
// side LPUSHes id tokens, the consumer side BRPOPs them, giving FIFO
// order with blocking dequeue.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	b := redisbroker.New(client, "default")
//	if err := b.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/parcelworks/courier/broker"
	"github.com/parcelworks/courier/id"
)

var _ broker.Broker = (*Broker)(nil)

// keyPrefix namespaces all courier keys to avoid collisions.
const keyPrefix = "courier:"

// queueKey returns the list key for a queue: courier:queue:{name}
func queueKey(name string) string { return keyPrefix + "queue:" + name }

// Option configures the Broker.
type Option func(*Broker)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Broker) { b.logger = l }
}

// Broker is a Redis-list-backed FIFO of job ids. The caller owns the
// Redis client lifecycle.
type Broker struct {
	client goredis.Cmdable
	key    string
	logger *slog.Logger
}

// New creates a Redis-backed broker for the given queue name.
func New(client goredis.Cmdable, queue string, opts ...Option) *Broker {
	b := &Broker{
		client: client,
		key:    queueKey(queue),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Client returns the underlying Redis client.
func (b *Broker) Client() goredis.Cmdable { return b.client }

// Enqueue appends a job id token to the tail of the queue.
func (b *Broker) Enqueue(ctx context.Context, jobID id.JobID) error {
	if err := b.client.LPush(ctx, b.key, jobID.String()).Err(); err != nil {
		return fmt.Errorf("courier/redis: enqueue: %w", err)
	}
	return nil
}

// Dequeue pops the oldest id token, blocking up to timeout when the
// queue is empty. A token that does not parse as a job id is dropped
// with a logged anomaly rather than redelivered forever.
func (b *Broker) Dequeue(ctx context.Context, timeout time.Duration) (id.JobID, bool, error) {
	res, err := b.client.BRPop(ctx, timeout, b.key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return id.Nil, false, nil
		}
		return id.Nil, false, fmt.Errorf("courier/redis: dequeue: %w", err)
	}

	// BRPOP returns [key, value].
	token := res[1]
	jobID, err := id.ParseJobID(token)
	if err != nil {
		b.logger.Warn("dropping malformed id token from queue",
			slog.String("token", token),
			slog.String("error", err.Error()),
		)
		return id.Nil, false, nil
	}

	return jobID, true, nil
}

// Ping verifies the Redis connection is alive.
func (b *Broker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close is a no-op — the caller owns the Redis client lifecycle.
func (b *Broker) Close() error { return nil }
