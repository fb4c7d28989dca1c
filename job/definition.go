package job

import "context"

// Definition is a typed job definition with a handler function.
// T is the payload type (must be JSON-serializable).
type Definition[T any] struct {
	// Name is the job type this definition handles.
	Name string

	// Handler is the function that processes the job payload.
	Handler func(ctx context.Context, payload T) error

	// Opts configures per-type behavior.
	Opts Options
}

// NewDefinition creates a typed job definition.
func NewDefinition[T any](name string, handler func(ctx context.Context, payload T) error, opts ...Option) *Definition[T] {
	def := &Definition[T]{
		Name:    name,
		Handler: handler,
	}
	for _, opt := range opts {
		opt(&def.Opts)
	}
	return def
}

// Options configures per-type behavior.
type Options struct {
	// MaxRetries overrides the producer's configured attempt budget for
	// this job type. Zero means inherit the producer's default.
	MaxRetries int
}

// Option is a functional option for configuring a job definition.
type Option func(*Options)

// WithMaxRetries overrides the attempt budget for this job type.
func WithMaxRetries(n int) Option {
	return func(o *Options) {
		o.MaxRetries = n
	}
}
