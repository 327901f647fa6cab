package runner

import (
	"log/slog"
	"time"
)

// DefaultInterval is the tick period when none is configured.
const DefaultInterval = 100 * time.Millisecond

// Option defines a functional option for configuring a Run.
type Option func(*Runner)

// WithInterval sets the tick period.
func WithInterval(d time.Duration) Option {
	return func(r *Runner) {
		r.Interval = d
	}
}

// WithTicks stops the run after n ticks. Zero runs until the context ends.
func WithTicks(n uint64) Option {
	return func(r *Runner) {
		r.MaxTicks = n
	}
}

// WithReload applies a host reload for every path received, between ticks.
func WithReload(changes <-chan string) Option {
	return func(r *Runner) {
		r.Reload = changes
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// WithOnTick registers a callback run after every tick, e.g. to print
// outputs. n counts from 1.
func WithOnTick(fn func(n uint64)) Option {
	return func(r *Runner) {
		r.OnTick = fn
	}
}

// WithStopOnError ends the run at the first failed tick instead of logging
// the failure and carrying on.
func WithStopOnError(stop bool) Option {
	return func(r *Runner) {
		r.StopOnError = stop
	}
}
