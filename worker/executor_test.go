package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/parcelworks/courier"
	brokermem "github.com/parcelworks/courier/broker/memory"
	"github.com/parcelworks/courier/id"
	"github.com/parcelworks/courier/job"
	storemem "github.com/parcelworks/courier/store/memory"
)

type fixture struct {
	store    *storemem.Store
	broker   *brokermem.Broker
	registry *job.Registry
	executor *Executor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:    storemem.New(),
		broker:   brokermem.New(),
		registry: job.NewRegistry(),
	}
	t.Cleanup(func() { f.broker.Close() })
	f.executor = NewExecutor(f.store, f.broker, f.registry)
	return f
}

func (f *fixture) submit(t *testing.T, jobType string, maxRetries int) *job.Job {
	t.Helper()

	j := job.New(jobType, json.RawMessage(`{}`), maxRetries)
	if err := f.store.CreateJob(context.Background(), j); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	return j
}

func (f *fixture) register(t *testing.T, name string, handler func(ctx context.Context, p struct{}) error) {
	t.Helper()
	job.RegisterDefinition(f.registry, job.NewDefinition(name, handler))
}

func TestExecute_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var calls atomic.Int32
	f.register(t, "ok", func(ctx context.Context, _ struct{}) error {
		calls.Add(1)
		return nil
	})

	j := f.submit(t, "ok", 3)
	if err := f.executor.Execute(ctx, j.ID); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if calls.Load() != 1 {
		t.Errorf("handler calls = %d, want 1", calls.Load())
	}

	got, err := f.store.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.Status != job.StatusCompleted {
		t.Errorf("Status = %v, want %v", got.Status, job.StatusCompleted)
	}
	if got.Retries != 1 {
		t.Errorf("Retries = %d, want 1", got.Retries)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt = nil, want set")
	}
}

func TestExecute_FailTwiceThenSucceed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var calls atomic.Int32
	f.register(t, "flaky", func(ctx context.Context, _ struct{}) error {
		if calls.Add(1) <= 2 {
			return errors.New("transient failure")
		}
		return nil
	})

	j := f.submit(t, "flaky", 3)
	if err := f.broker.Enqueue(ctx, j.ID); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	// Drain the queue the way a worker would, executing each delivery.
	for {
		jobID, ok, err := f.broker.Dequeue(ctx, 50*time.Millisecond)
		if err != nil {
			t.Fatalf("Dequeue() error = %v", err)
		}
		if !ok {
			break
		}
		if err := f.executor.Execute(ctx, jobID); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
	}

	got, err := f.store.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.Status != job.StatusCompleted {
		t.Errorf("Status = %v, want %v", got.Status, job.StatusCompleted)
	}
	if got.Retries != 3 {
		t.Errorf("Retries = %d, want 3 (two failures + one success)", got.Retries)
	}
	if got.LastError != "transient failure" {
		t.Errorf("LastError = %q, want the last attempt's error preserved", got.LastError)
	}
}

func TestExecute_ExhaustsRetries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var calls atomic.Int32
	f.register(t, "doomed", func(ctx context.Context, _ struct{}) error {
		calls.Add(1)
		return errors.New("permanent failure")
	})

	j := f.submit(t, "doomed", 3)
	if err := f.broker.Enqueue(ctx, j.ID); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	for {
		jobID, ok, err := f.broker.Dequeue(ctx, 50*time.Millisecond)
		if err != nil {
			t.Fatalf("Dequeue() error = %v", err)
		}
		if !ok {
			break
		}
		if err := f.executor.Execute(ctx, jobID); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
	}

	if calls.Load() != 3 {
		t.Errorf("handler calls = %d, want 3", calls.Load())
	}

	got, err := f.store.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.Status != job.StatusFailed {
		t.Errorf("Status = %v, want %v", got.Status, job.StatusFailed)
	}
	if got.Retries != 3 {
		t.Errorf("Retries = %d, want 3", got.Retries)
	}
	if got.LastError != "permanent failure" {
		t.Errorf("LastError = %q, want %q", got.LastError, "permanent failure")
	}
}

func TestExecute_DuplicateDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var calls atomic.Int32
	f.register(t, "once", func(ctx context.Context, _ struct{}) error {
		calls.Add(1)
		return nil
	})

	j := f.submit(t, "once", 3)

	// The same id delivered to many workers concurrently: exactly one
	// claim wins, the rest drop the delivery.
	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.executor.Execute(ctx, j.ID)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("Execute() error = %v", err)
		}
	}

	if calls.Load() != 1 {
		t.Errorf("handler calls = %d, want exactly 1", calls.Load())
	}

	got, err := f.store.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.Retries != 1 {
		t.Errorf("Retries = %d, want 1", got.Retries)
	}
	if got.Status != job.StatusCompleted {
		t.Errorf("Status = %v, want %v", got.Status, job.StatusCompleted)
	}
}

func TestExecute_SkipsTerminalJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var calls atomic.Int32
	f.register(t, "done", func(ctx context.Context, _ struct{}) error {
		calls.Add(1)
		return nil
	})

	j := f.submit(t, "done", 3)
	if _, err := f.store.TransitionJob(ctx, j.ID, job.StatusQueued, job.StatusProcessing, ""); err != nil {
		t.Fatalf("claim error = %v", err)
	}
	if _, err := f.store.TransitionJob(ctx, j.ID, job.StatusProcessing, job.StatusCompleted, ""); err != nil {
		t.Fatalf("complete error = %v", err)
	}

	// A lingering delivery for the completed job must be dropped.
	if err := f.executor.Execute(ctx, j.ID); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("handler calls = %d, want 0", calls.Load())
	}
}

func TestExecute_MissingJobRecord(t *testing.T) {
	f := newFixture(t)

	// An id with no row behind it is consumed silently.
	if err := f.executor.Execute(context.Background(), id.NewJobID()); err != nil {
		t.Errorf("Execute() error = %v, want nil", err)
	}
}

func TestExecute_UnknownHandlerBurnsAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// No handler registered for this type: each delivery is a failed
	// attempt until the budget is gone.
	j := f.submit(t, "unregistered", 2)
	if err := f.broker.Enqueue(ctx, j.ID); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	for {
		jobID, ok, err := f.broker.Dequeue(ctx, 50*time.Millisecond)
		if err != nil {
			t.Fatalf("Dequeue() error = %v", err)
		}
		if !ok {
			break
		}
		if err := f.executor.Execute(ctx, jobID); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
	}

	got, err := f.store.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.Status != job.StatusFailed {
		t.Errorf("Status = %v, want %v", got.Status, job.StatusFailed)
	}
	if got.Retries != 2 {
		t.Errorf("Retries = %d, want 2", got.Retries)
	}
	if got.LastError != courier.ErrUnknownJobType.Error() {
		t.Errorf("LastError = %q, want %q", got.LastError, courier.ErrUnknownJobType.Error())
	}
}
