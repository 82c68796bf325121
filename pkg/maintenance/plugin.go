// Package maintenance provides the periodic out-of-band processes that keep
// the job table healthy: pruning old terminal rows, rescuing orphaned
// executing rows, promoting due rows, and enqueueing recurring jobs.
//
// Plugins share one two-method contract and run on independent timers tied
// to the engine lifecycle. A tick error is logged and retried on the next
// interval; it never stops the runner.
package maintenance

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jdziat/durajobs/pkg/core"
	"github.com/jdziat/durajobs/pkg/event"
)

// Plugin is a periodic maintenance task.
type Plugin interface {
	// Name identifies the plugin in logs and events.
	Name() string
	// Interval is the pause between ticks.
	Interval() time.Duration
	// Tick runs one pass against the store.
	Tick(ctx context.Context, store core.Storage) error
}

// Runner drives a set of plugins, each on its own timer.
type Runner struct {
	store   core.Storage
	plugins []Plugin
	emitter *event.Emitter
	logger  *zap.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithEmitter sets the event emitter for plugin tick events.
func WithEmitter(e *event.Emitter) RunnerOption {
	return func(r *Runner) {
		r.emitter = e
	}
}

// WithLogger sets the runner logger.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// NewRunner creates a runner for the given plugins.
func NewRunner(store core.Storage, plugins []Plugin, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:   store,
		plugins: plugins,
		emitter: event.NewEmitter(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start runs all plugins until the context is cancelled.
func (r *Runner) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range r.plugins {
		p := p
		g.Go(func() error {
			r.runPlugin(ctx, p)
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) runPlugin(ctx context.Context, p Plugin) {
	ticker := time.NewTicker(p.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx, p)
		}
	}
}

func (r *Runner) tick(ctx context.Context, p Plugin) {
	start := time.Now()
	r.emitter.Emit(&event.PluginTickStarted{Plugin: p.Name(), Timestamp: start})

	err := p.Tick(ctx, r.store)
	if err != nil && ctx.Err() == nil {
		r.logger.Error("maintenance tick failed",
			zap.String("plugin", p.Name()),
			zap.Error(err))
	}

	r.emitter.Emit(&event.PluginTickCompleted{
		Plugin:    p.Name(),
		Duration:  time.Since(start),
		Error:     err,
		Timestamp: time.Now(),
	})
}
