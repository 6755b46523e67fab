package kie

import "log/slog"

type options struct {
	logger      *slog.Logger
	ids         IDGenerator
	autoDispose bool
}

// Option configures builders and sessions.
type Option func(*options)

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithIDGenerator sets the session id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) {
		if g != nil {
			o.ids = g
		}
	}
}

// WithoutAutoDispose disables disposing a session when it becomes
// unreachable. The caller must call Dispose or Close.
func WithoutAutoDispose() Option {
	return func(o *options) {
		o.autoDispose = false
	}
}

func defaultOptions() options {
	return options{
		logger:      slog.Default(),
		ids:         UUIDv7Generator{},
		autoDispose: true,
	}
}

// apply returns a copy of o with opts applied.
func (o options) apply(opts []Option) options {
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
