// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package goasio

import "time"

// builderOptions holds configuration options for a [Builder].
type builderOptions struct {
	workerThreads int
	logger        Logger
	pollTimeout   time.Duration
}

// Option configures a [Builder].
type Option interface {
	applyBuilder(*builderOptions)
}

type optionFunc func(*builderOptions)

func (f optionFunc) applyBuilder(opts *builderOptions) { f(opts) }

// WithWorkerThreads sets the number of worker threads the runtime will
// spawn. Per §4.6 of the specification, the only recognized builder
// option is a positive integer; zero or negative values are treated as
// the default (logical CPU count, or 1 if undetectable).
func WithWorkerThreads(n int) Option {
	return optionFunc(func(opts *builderOptions) {
		opts.workerThreads = n
	})
}

// WithLogger overrides the default [Logger], which receives driver poll
// errors.
func WithLogger(l Logger) Option {
	return optionFunc(func(opts *builderOptions) {
		if l != nil {
			opts.logger = l
		}
	})
}

// WithPollTimeout overrides the driver's OS-poll timeout. This exists
// primarily for tests that want a tighter or looser responsiveness bound
// than the specified ~100 microseconds; production callers should not
// normally need it.
func WithPollTimeout(d time.Duration) Option {
	return optionFunc(func(opts *builderOptions) {
		if d > 0 {
			opts.pollTimeout = d
		}
	})
}

// resolveBuilderOptions applies Option values over the defaults.
func resolveBuilderOptions(opts []Option) *builderOptions {
	cfg := &builderOptions{
		workerThreads: defaultWorkerThreads(),
		logger:        defaultLogger(),
		pollTimeout:   defaultPollTimeout,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyBuilder(cfg)
	}
	if cfg.workerThreads < 1 {
		cfg.workerThreads = defaultWorkerThreads()
	}
	return cfg
}
