// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package devmem

import "log/slog"

// EngineOption configures an Engine during creation.
//
// Example:
//
//	// Silent engine on the backend's default queue
//	eng := devmem.NewEngine(b)
//
//	// Engine that logs every transfer with its duration
//	eng := devmem.NewEngine(b,
//	    devmem.WithLogger(slog.Default()),
//	    devmem.WithTiming(true))
type EngineOption func(*engineOptions)

// engineOptions holds optional configuration for Engine creation.
type engineOptions struct {
	logger *slog.Logger
	queue  Queue
	timing bool
}

// defaultEngineOptions returns the default engine options.
func defaultEngineOptions() engineOptions {
	return engineOptions{
		logger: nil, // Falls back to Logger()
		queue:  nil, // Falls back to the backend's default queue
	}
}

// WithLogger sets the logger of the engine. The logger is also passed to
// the backend when it accepts one.
func WithLogger(l *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = l
	}
}

// WithQueue sets the queue transfers are enqueued on.
func WithQueue(q Queue) EngineOption {
	return func(o *engineOptions) {
		o.queue = q
	}
}

// WithTiming logs the wall time of every transfer at info level.
// Non-blocking transfers report the time to enqueue.
func WithTiming(enabled bool) EngineOption {
	return func(o *engineOptions) {
		o.timing = enabled
	}
}

// ContextOption configures a Context during creation.
//
// Example:
//
//	ctx, err := devmem.NewContext(b,
//	    devmem.WithMemoryBudget(512<<20),
//	    devmem.WithEngineOptions(devmem.WithTiming(true)))
type ContextOption func(*contextOptions)

// contextOptions holds optional configuration for Context creation.
type contextOptions struct {
	budget Bytes
	engine []EngineOption
}

// defaultContextOptions returns the default context options.
func defaultContextOptions() contextOptions {
	return contextOptions{
		budget: 0, // Unlimited
	}
}

// WithMemoryBudget caps the bytes of device memory a Context may hold.
// Zero or a negative value removes the cap.
func WithMemoryBudget(b Bytes) ContextOption {
	return func(o *contextOptions) {
		o.budget = b
	}
}

// WithEngineOptions configures the Context's engine.
func WithEngineOptions(opts ...EngineOption) ContextOption {
	return func(o *contextOptions) {
		o.engine = append(o.engine, opts...)
	}
}
