// Package memory is a fully in-memory implementation of job.Store.
// Safe for concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/parcelworks/courier"
	"github.com/parcelworks/courier/id"
	"github.com/parcelworks/courier/job"
)

var _ job.Store = (*Store)(nil)

// Store holds jobs in a mutex-guarded map. The mutex makes TransitionJob
// a true compare-and-swap: concurrent claimers of the same job serialize
// here, and exactly one observes the expected status.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*job.Job
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs: make(map[string]*job.Job),
	}
}

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// CreateJob inserts a new QUEUED job.
func (m *Store) CreateJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, exists := m.jobs[key]; exists {
		return courier.ErrJobAlreadyExists
	}
	cp := *j
	m.jobs[key] = &cp
	return nil
}

// GetJob retrieves a job by ID.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, courier.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

// TransitionJob atomically moves a job from one status to another.
func (m *Store) TransitionJob(_ context.Context, jobID id.JobID, from, to job.Status, lastError string) (*job.Job, error) {
	if !job.ValidTransition(from, to) {
		return nil, courier.ErrInvalidTransition
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, courier.ErrJobNotFound
	}
	if j.Status != from {
		return nil, courier.ErrStaleStatus
	}

	now := time.Now().UTC()
	j.Status = to
	j.UpdatedAt = now
	if lastError != "" {
		j.LastError = lastError
	}
	if to == job.StatusProcessing {
		j.Retries++
		if j.StartedAt == nil {
			n := now
			j.StartedAt = &n
		}
	}
	if job.Terminal(to) {
		n := now
		j.CompletedAt = &n
	}

	cp := *j
	return &cp, nil
}

// CountJobs returns the number of jobs matching the given options.
func (m *Store) CountJobs(_ context.Context, opts job.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, j := range m.jobs {
		if opts.Status != "" && j.Status != opts.Status {
			continue
		}
		count++
	}
	return count, nil
}
