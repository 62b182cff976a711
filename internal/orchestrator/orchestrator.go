package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/autorecord/autorecord/internal/recorder"
)

// Runner is anything with a blocking Run: a worker, the display or the
// recorder.
type Runner interface {
	Run(ctx context.Context) error
}

// RunFunc adapts a function to Runner.
type RunFunc func(ctx context.Context) error

// Run calls f(ctx).
func (f RunFunc) Run(ctx context.Context) error { return f(ctx) }

// Sweeper clears lock markers.
type Sweeper interface {
	Sweep() (int, error)
}

// Options wires an Orchestrator. Display may be nil (headless).
type Options struct {
	Dirs     []string
	Locks    Sweeper
	Display  Runner
	Checker  Runner
	Resolver Runner
	Recorder Runner
	Stagger  time.Duration
}

// Orchestrator runs one autorecord session.
type Orchestrator struct {
	opts  Options
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	return &Orchestrator{opts: opts, sleep: sleepCtx}
}

// Prepare creates every directory the workers use. It is idempotent.
func (o *Orchestrator) Prepare() error {
	for _, dir := range o.opts.Dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("orchestrator: create %s: %w", dir, err)
		}
	}
	return nil
}

// Run performs the startup sequence and blocks until the recorder has
// returned and every worker has stopped. Only preparation and sweep
// failures are returned.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.Prepare(); err != nil {
		return err
	}

	n, err := o.opts.Locks.Sweep()
	if err != nil {
		return fmt.Errorf("orchestrator: sweep: %w", err)
	}
	slog.Info("orchestrator: cleared lock markers", "count", n)

	var display, workers errgroup.Group
	if o.opts.Display != nil {
		display.Go(o.supervise(ctx, "display", o.opts.Display))
	}
	workers.Go(o.supervise(ctx, "checker", o.opts.Checker))

	slog.Info("orchestrator: waiting before starting resolver", "stagger", o.opts.Stagger)
	if err := o.sleep(ctx, o.opts.Stagger); err != nil {
		slog.Info("orchestrator: cancelled during stagger")
	} else {
		workers.Go(o.supervise(ctx, "resolver", o.opts.Resolver))

		if err := o.opts.Recorder.Run(ctx); err != nil {
			slog.Error("orchestrator: recorder failed", "code", recorder.ExitCode(err), "err", err)
		} else {
			slog.Info("orchestrator: recorder exited")
		}
	}

	workers.Wait() //nolint:errcheck // supervise never returns an error
	slog.Info("orchestrator: workers stopped")
	display.Wait() //nolint:errcheck
	slog.Info("orchestrator: display stopped")
	return nil
}

// supervise runs r and logs its outcome. A failing worker never stops the
// others.
func (o *Orchestrator) supervise(ctx context.Context, name string, r Runner) func() error {
	return func() error {
		slog.Info("orchestrator: starting", "worker", name)
		if err := r.Run(ctx); err != nil {
			slog.Error("orchestrator: worker failed", "worker", name, "err", err)
			return nil
		}
		slog.Info("orchestrator: worker stopped", "worker", name)
		return nil
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
