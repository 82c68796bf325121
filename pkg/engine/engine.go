package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jdziat/durajobs/pkg/backoff"
	"github.com/jdziat/durajobs/pkg/client"
	"github.com/jdziat/durajobs/pkg/event"
	"github.com/jdziat/durajobs/pkg/maintenance"
)

// Engine processes jobs from the store. One Engine holds a bounded slot
// pool per configured queue plus the maintenance plugin runner.
type Engine struct {
	client *client.Client
	config Config
	logger *zap.Logger

	coord     coordinator
	producers []*producer
	slotWg    sync.WaitGroup
	inflight  atomic.Int64
}

// New creates an engine for the given client.
func New(c *client.Client, opts ...EngineOption) *Engine {
	e := &Engine{
		client: c,
		config: Config{
			PollInterval:  100 * time.Millisecond,
			ShutdownGrace: 30 * time.Second,
			ClientID:      uuid.New().String(),
		},
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt.ApplyEngine(e)
	}

	if e.config.Queues == nil {
		e.config.Queues = map[string]int{"default": 10}
	}
	if e.config.Backoff == nil {
		e.config.Backoff = backoff.Default()
	}
	if e.config.StorageRetry == nil {
		cfg := DefaultRetryConfig()
		e.config.StorageRetry = &cfg
	}
	if e.config.ClaimRetry == nil {
		// Longer backoff for claims to avoid hammering the store during
		// an outage.
		e.config.ClaimRetry = &RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    500 * time.Millisecond,
			MaxBackoff:        10 * time.Second,
			BackoffMultiplier: 2.0,
			JitterFraction:    0.2,
		}
	}

	return e
}

// State returns the engine lifecycle state.
func (e *Engine) State() RunState {
	return e.coord.State()
}

// ClientID returns this instance's identifier.
func (e *Engine) ClientID() string {
	return e.config.ClientID
}

// Start begins processing jobs. It blocks until ctx is cancelled, then
// drains: claiming stops immediately, in-flight handlers get up to
// ShutdownGrace to finish, and whatever still runs is abandoned for the
// lifeline to rescue. Returns ctx.Err() after halting, or an ErrInvalidConfig
// error immediately when the configuration is unusable.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.config.validate(); err != nil {
		return err
	}

	e.coord.to(RunStateRunning)
	queues := make([]string, 0, len(e.config.Queues))
	for name, concurrency := range e.config.Queues {
		queues = append(queues, name)
		e.producers = append(e.producers, newProducer(e, name, concurrency))
	}

	emitter := e.client.Emitter()
	emitter.Emit(&event.EngineStarted{
		ClientID:  e.config.ClientID,
		Queues:    queues,
		Timestamp: time.Now(),
	})
	e.logger.Info("engine started",
		zap.String("client_id", e.config.ClientID),
		zap.Strings("queues", queues))

	// workCtx outlives ctx: handlers keep their context through the drain
	// and lose it only at the grace cutoff.
	workCtx, hardStop := context.WithCancel(context.Background())
	defer hardStop()

	// Maintenance runs until the engine halts, not merely until draining
	// begins, so a final prune/rescue pass can still happen.
	maintCtx, stopMaint := context.WithCancel(context.Background())
	defer stopMaint()
	runner := maintenance.NewRunner(e.client.Storage(), e.maintenancePlugins(),
		maintenance.WithEmitter(emitter),
		maintenance.WithLogger(e.logger))
	go runner.Start(maintCtx) //nolint:errcheck // runner only returns on context cancel

	g, pollCtx := errgroup.WithContext(ctx)
	for _, p := range e.producers {
		p := p
		g.Go(func() error {
			p.run(pollCtx, workCtx)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // producers return nil

	// Producers have stopped claiming; wait out the in-flight work.
	e.coord.to(RunStateDraining)
	e.logger.Info("engine draining",
		zap.Int64("inflight", e.inflight.Load()),
		zap.Duration("grace", e.config.ShutdownGrace))

	done := make(chan struct{})
	go func() {
		e.slotWg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(e.config.ShutdownGrace):
	}
	hardStop()

	abandoned := int(e.inflight.Load())
	if abandoned > 0 {
		e.logger.Warn("abandoning in-flight jobs after grace period",
			zap.Int("count", abandoned))
	}

	stopMaint()
	e.coord.to(RunStateHalted)
	emitter.Emit(&event.EngineStopped{
		ClientID:  e.config.ClientID,
		Abandoned: abandoned,
		Timestamp: time.Now(),
	})
	e.logger.Info("engine halted")
	return ctx.Err()
}

// maintenancePlugins assembles the plugin set: the scheduler promoting due
// jobs always runs, then any configured plugins, then the periodic
// enqueuer when recurring jobs are registered.
func (e *Engine) maintenancePlugins() []maintenance.Plugin {
	plugins := []maintenance.Plugin{&maintenance.Scheduler{TickInterval: e.schedulerInterval()}}
	plugins = append(plugins, e.config.Plugins...)

	if len(e.config.PeriodicJobs) > 0 {
		plugins = append(plugins, &maintenance.Periodic{
			Jobs:   e.config.PeriodicJobs,
			Logger: e.logger,
			Insert: func(ctx context.Context, job maintenance.PeriodicJob) error {
				opts := []client.Option{client.Priority(job.Priority)}
				if job.Queue != "" {
					opts = append(opts, client.Queue(job.Queue))
				}
				_, err := e.client.Insert(ctx, job.Kind, job.Args, opts...)
				return err
			},
		})
	}
	return plugins
}

// schedulerInterval keeps due-job promotion at least as responsive as the
// claim polling.
func (e *Engine) schedulerInterval() time.Duration {
	if e.config.PollInterval > 0 && e.config.PollInterval < time.Second {
		return e.config.PollInterval
	}
	return time.Second
}
