package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/weave/internal/logging"
)

// Host is what the runner drives; *weave.Host satisfies it.
type Host interface {
	Tick(ctx context.Context) error
	ReloadFile(ctx context.Context, path string) error
}

// Runner holds the settings of one Run.
type Runner struct {
	Interval    time.Duration
	MaxTicks    uint64
	Reload      <-chan string
	Logger      *slog.Logger
	OnTick      func(n uint64)
	StopOnError bool
}

// NewRunner creates a Runner with the default interval and no tick limit.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		Interval: DefaultInterval,
		Logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run ticks host until ctx ends or the tick limit is reached.
func Run(ctx context.Context, host Host, opts ...Option) error {
	return NewRunner(opts...).Run(ctx, host)
}

// Run ticks host until ctx ends or the tick limit is reached. A cancelled
// context is reported as its error; reaching the limit returns nil.
func (r *Runner) Run(ctx context.Context, host Host) error {
	if r.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", r.Interval)
	}
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	reload := r.Reload
	var n uint64
	r.Logger.Info("runner started", "interval", r.Interval, "max_ticks", r.MaxTicks)

	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("runner stopped", "ticks", n, "reason", ctx.Err())
			return ctx.Err()

		case path, ok := <-reload:
			if !ok {
				reload = nil
				continue
			}
			r.Logger.Info("reloading", "path", path)
			if err := host.ReloadFile(ctx, path); err != nil {
				r.Logger.Warn("reload failed", "path", path, "err", err)
			}

		case <-ticker.C:
			n++
			if err := host.Tick(ctx); err != nil {
				if r.StopOnError {
					return fmt.Errorf("tick %d: %w", n, err)
				}
				r.Logger.Warn("tick failed", "tick", n, "err", err)
			}
			if r.OnTick != nil {
				r.OnTick(n)
			}
			if r.MaxTicks > 0 && n >= r.MaxTicks {
				r.Logger.Info("runner finished", "ticks", n)
				return nil
			}
		}
	}
}
