package maintenance

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jdziat/durajobs/pkg/core"
	"github.com/jdziat/durajobs/pkg/schedule"
)

// PeriodicJob describes a recurring job enqueued on a schedule.
type PeriodicJob struct {
	Kind     string
	Args     any
	Schedule schedule.Schedule
	Queue    string
	Priority int
}

// InsertFunc inserts one periodic job occurrence. Wired by the engine to
// the client's Insert so handler validation and options apply.
type InsertFunc func(ctx context.Context, job PeriodicJob) error

// Periodic enqueues recurring jobs when their schedules come due. Each
// engine instance runs its own Periodic plugin; give recurring jobs a
// unique key at insertion when running multiple instances so duplicate
// occurrences are suppressed by the uniqueness resolver.
type Periodic struct {
	// Jobs is the set of recurring jobs.
	Jobs []PeriodicJob
	// Insert performs the enqueue.
	Insert InsertFunc
	// TickInterval is the schedule polling resolution. Default 1s.
	TickInterval time.Duration

	Logger *zap.Logger

	mu      sync.Mutex
	lastRun map[string]time.Time
}

// Name implements Plugin.
func (p *Periodic) Name() string { return "periodic" }

// Interval implements Plugin.
func (p *Periodic) Interval() time.Duration {
	if p.TickInterval > 0 {
		return p.TickInterval
	}
	return time.Second
}

// Tick enqueues every registered job whose schedule came due.
func (p *Periodic) Tick(ctx context.Context, _ core.Storage) error {
	p.mu.Lock()
	if p.lastRun == nil {
		p.lastRun = make(map[string]time.Time)
	}
	p.mu.Unlock()

	now := time.Now()
	for _, job := range p.Jobs {
		p.mu.Lock()
		last := p.lastRun[job.Kind]
		p.mu.Unlock()

		next := job.Schedule.Next(last)
		if now.Before(next) {
			continue
		}

		if err := p.Insert(ctx, job); err != nil {
			if p.Logger != nil {
				p.Logger.Error("failed to enqueue periodic job",
					zap.String("kind", job.Kind),
					zap.Error(err))
			}
			continue
		}

		p.mu.Lock()
		p.lastRun[job.Kind] = now
		p.mu.Unlock()
	}
	return nil
}
