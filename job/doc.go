// Package job defines the job entity, the lifecycle state machine, typed
// definitions, and the store interface.
//
// # Lifecycle
//
// A [Job] moves through four statuses:
//
//	QUEUED → PROCESSING → COMPLETED
//	QUEUED → PROCESSING → QUEUED      (failure, attempts remain)
//	QUEUED → PROCESSING → FAILED      (failure, attempts exhausted)
//
// COMPLETED and FAILED are terminal. The transition table lives in
// [ValidTransition]; retry decisions live in [Next]. Retries counts
// execution attempts and is incremented exactly once per claim
// (QUEUED → PROCESSING), including the attempt that eventually succeeds.
//
// # Defining a Job
//
// Use [Definition] with a typed handler. The payload is stored as JSON at
// submit time and deserialized before the handler runs:
//
//	var SendEmail = job.NewDefinition("sendEmail",
//	    func(ctx context.Context, input EmailPayload) error {
//	        return mailer.Send(input.To, input.Subject, input.Body)
//	    },
//	)
//	job.RegisterDefinition(registry, SendEmail)
package job
