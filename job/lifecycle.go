package job

// Outcome is the result of one execution attempt, reported by the
// executor after the handler returns (or panics).
type Outcome int

const (
	// OutcomeSuccess means the handler returned nil.
	OutcomeSuccess Outcome = iota
	// OutcomeFailure means the handler returned an error or panicked.
	OutcomeFailure
)

// transitions is the edge set of the lifecycle state machine. Statuses
// only move forward: nothing leaves COMPLETED or FAILED, and the only way
// back to QUEUED is a failed attempt with budget remaining.
var transitions = map[Status]map[Status]struct{}{
	StatusQueued: {
		StatusProcessing: {},
	},
	StatusProcessing: {
		StatusCompleted: {},
		StatusQueued:    {},
		StatusFailed:    {},
	},
}

// ValidTransition reports whether the edge from → to exists in the
// lifecycle state machine.
func ValidTransition(from, to Status) bool {
	_, ok := transitions[from][to]
	return ok
}

// Terminal reports whether s is a terminal status.
func Terminal(s Status) bool {
	return s == StatusCompleted || s == StatusFailed
}

// Next returns the status a PROCESSING job moves to given the attempt
// outcome. retries is the attempt counter after the claim (so the current
// attempt is already counted); a failure retries while retries <
// maxRetries and is terminal once the budget is spent.
func Next(outcome Outcome, retries, maxRetries int) Status {
	if outcome == OutcomeSuccess {
		return StatusCompleted
	}
	if retries < maxRetries {
		return StatusQueued
	}
	return StatusFailed
}
