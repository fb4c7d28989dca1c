//go:build integration

package redis_test

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	redismodule "github.com/testcontainers/testcontainers-go/modules/redis"

	brokerredis "github.com/parcelworks/courier/broker/redis"
	"github.com/parcelworks/courier/id"
)

// setupTestBroker creates a Redis container and returns a connected Broker.
func setupTestBroker(t *testing.T) *brokerredis.Broker {
	t.Helper()

	ctx := context.Background()

	container, err := redismodule.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}
	opts, err := goredis.ParseURL(uri)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}

	client := goredis.NewClient(opts)
	t.Cleanup(func() { client.Close() })

	b := brokerredis.New(client, "test")
	if err := b.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	return b
}

func TestEnqueueDequeue_FIFO(t *testing.T) {
	b := setupTestBroker(t)
	ctx := context.Background()

	ids := []id.JobID{id.NewJobID(), id.NewJobID(), id.NewJobID()}
	for _, jobID := range ids {
		if err := b.Enqueue(ctx, jobID); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	for i, want := range ids {
		got, ok, err := b.Dequeue(ctx, time.Second)
		if err != nil {
			t.Fatalf("Dequeue() error = %v", err)
		}
		if !ok {
			t.Fatalf("Dequeue() #%d: empty queue", i)
		}
		if got != want {
			t.Errorf("Dequeue() #%d = %v, want %v", i, got, want)
		}
	}
}

func TestDequeue_Timeout(t *testing.T) {
	b := setupTestBroker(t)

	start := time.Now()
	_, ok, err := b.Dequeue(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Dequeue() error = %v", err)
	}
	if ok {
		t.Error("Dequeue() ok = true on empty queue")
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Errorf("Dequeue() returned after %v, want ~1s block", elapsed)
	}
}

func TestDequeue_DropsMalformedToken(t *testing.T) {
	b := setupTestBroker(t)
	ctx := context.Background()

	// Inject garbage directly, then a valid id behind it.
	if err := b.Client().LPush(ctx, "courier:queue:test", "not-an-id").Err(); err != nil {
		t.Fatalf("LPush error = %v", err)
	}
	want := id.NewJobID()
	if err := b.Enqueue(ctx, want); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	// First dequeue consumes and drops the garbage token.
	_, ok, err := b.Dequeue(ctx, time.Second)
	if err != nil {
		t.Fatalf("Dequeue() error = %v", err)
	}
	if ok {
		t.Error("Dequeue() ok = true for malformed token")
	}

	got, ok, err := b.Dequeue(ctx, time.Second)
	if err != nil || !ok {
		t.Fatalf("Dequeue() = (%v, %v, %v), want valid id", got, ok, err)
	}
	if got != want {
		t.Errorf("Dequeue() = %v, want %v", got, want)
	}
}
