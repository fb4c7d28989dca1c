package job_test

import (
	"testing"

	"github.com/parcelworks/courier/job"
)

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from, to job.Status
		want     bool
	}{
		{job.StatusQueued, job.StatusProcessing, true},
		{job.StatusProcessing, job.StatusCompleted, true},
		{job.StatusProcessing, job.StatusQueued, true},
		{job.StatusProcessing, job.StatusFailed, true},

		// No edge skips PROCESSING.
		{job.StatusQueued, job.StatusCompleted, false},
		{job.StatusQueued, job.StatusFailed, false},

		// Terminal statuses have no outgoing edges.
		{job.StatusCompleted, job.StatusQueued, false},
		{job.StatusCompleted, job.StatusProcessing, false},
		{job.StatusCompleted, job.StatusFailed, false},
		{job.StatusFailed, job.StatusQueued, false},
		{job.StatusFailed, job.StatusProcessing, false},

		// Self-loops and reversals.
		{job.StatusQueued, job.StatusQueued, false},
		{job.StatusProcessing, job.StatusProcessing, false},
	}

	for _, tt := range tests {
		if got := job.ValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("ValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTerminal(t *testing.T) {
	if job.Terminal(job.StatusQueued) || job.Terminal(job.StatusProcessing) {
		t.Error("QUEUED/PROCESSING reported terminal")
	}
	if !job.Terminal(job.StatusCompleted) || !job.Terminal(job.StatusFailed) {
		t.Error("COMPLETED/FAILED not reported terminal")
	}
}

func TestNext(t *testing.T) {
	tests := []struct {
		name       string
		outcome    job.Outcome
		retries    int
		maxRetries int
		want       job.Status
	}{
		{"success on first attempt", job.OutcomeSuccess, 1, 3, job.StatusCompleted},
		{"success on final attempt", job.OutcomeSuccess, 3, 3, job.StatusCompleted},
		{"failure with budget left", job.OutcomeFailure, 1, 3, job.StatusQueued},
		{"failure on penultimate attempt", job.OutcomeFailure, 2, 3, job.StatusQueued},
		{"failure on final attempt", job.OutcomeFailure, 3, 3, job.StatusFailed},
		{"failure with single attempt budget", job.OutcomeFailure, 1, 1, job.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := job.Next(tt.outcome, tt.retries, tt.maxRetries)
			if got != tt.want {
				t.Errorf("Next(%v, %d, %d) = %s, want %s",
					tt.outcome, tt.retries, tt.maxRetries, got, tt.want)
			}
		})
	}
}

// TestNext_AlwaysFailing walks the attempt sequence of a job that never
// succeeds: with a budget of 3 it retries twice and fails terminally on
// the third attempt, ending with retries == 3.
func TestNext_AlwaysFailing(t *testing.T) {
	const maxRetries = 3

	retries := 0
	var status job.Status = job.StatusQueued
	for status == job.StatusQueued {
		retries++ // claim increments the attempt counter
		status = job.Next(job.OutcomeFailure, retries, maxRetries)
	}

	if status != job.StatusFailed {
		t.Errorf("final status = %s, want FAILED", status)
	}
	if retries != maxRetries {
		t.Errorf("retries = %d, want %d", retries, maxRetries)
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []job.Status{job.StatusQueued, job.StatusProcessing, job.StatusCompleted, job.StatusFailed} {
		if !s.Valid() {
			t.Errorf("%s not valid", s)
		}
	}
	if job.Status("RUNNING").Valid() {
		t.Error("unknown status reported valid")
	}
}
