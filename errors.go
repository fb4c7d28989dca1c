package courier

import "errors"

var (
	// Store errors.
	ErrJobNotFound       = errors.New("courier: job not found")
	ErrJobAlreadyExists  = errors.New("courier: job already exists")
	ErrInvalidTransition = errors.New("courier: invalid status transition")

	// ErrStaleStatus is returned by a conditional status transition when the
	// job's stored status no longer matches the expected one. Under duplicate
	// delivery this is how the losing worker finds out it lost the claim.
	ErrStaleStatus = errors.New("courier: job status changed concurrently")

	// Submission errors.
	ErrUnknownJobType = errors.New("courier: unknown job type")
	ErrEmptyPayload   = errors.New("courier: payload is required")

	// ErrEnqueueFailed indicates the job record was stored but the broker
	// enqueue failed afterwards. The job stays QUEUED in storage and will
	// never be delivered without external intervention.
	ErrEnqueueFailed = errors.New("courier: job stored but enqueue failed")

	// Broker errors.
	ErrBrokerClosed = errors.New("courier: broker closed")
	ErrBrokerFull   = errors.New("courier: broker queue full")
)
