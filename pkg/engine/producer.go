package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jdziat/durajobs/pkg/core"
	"github.com/jdziat/durajobs/pkg/event"
)

// producer owns one queue: it polls for claimable jobs, claims bounded
// batches atomically, and feeds a fixed pool of slot goroutines.
type producer struct {
	engine      *Engine
	queue       string
	concurrency int

	jobs   chan *core.Job
	active atomic.Int64
}

func newProducer(e *Engine, queue string, concurrency int) *producer {
	return &producer{
		engine:      e,
		queue:       queue,
		concurrency: concurrency,
		jobs:        make(chan *core.Job, concurrency),
	}
}

// run polls until pollCtx is cancelled, then closes the slot channel and
// returns. Slots finish whatever was already claimed; workCtx is the
// context handlers run under and survives into the drain.
func (p *producer) run(pollCtx, workCtx context.Context) {
	for i := 0; i < p.concurrency; i++ {
		p.engine.slotWg.Add(1)
		go p.slotLoop(workCtx)
	}

	ticker := time.NewTicker(p.engine.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-pollCtx.Done():
			close(p.jobs)
			return
		case <-ticker.C:
			p.poll(pollCtx)
		}
	}
}

// poll claims up to (concurrency - active) jobs in one atomic batch and
// hands them to slots. The batch bound keeps the channel send from ever
// blocking: every claimed job has a reserved slot or buffer position.
func (p *producer) poll(ctx context.Context) {
	limit := p.concurrency - int(p.active.Load())
	if limit <= 0 {
		return
	}

	jobs, err := p.claimWithRetry(ctx, limit)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			p.engine.logger.Error("failed to claim jobs after retries",
				zap.String("queue", p.queue),
				zap.Error(err))
		}
		return
	}
	if len(jobs) == 0 {
		return
	}

	p.engine.client.Emitter().Emit(&event.BatchClaimed{
		Queue:     p.queue,
		Count:     len(jobs),
		Timestamp: time.Now(),
	})

	for _, job := range jobs {
		p.active.Add(1)
		p.engine.inflight.Add(1)
		p.jobs <- job
	}
}

// claimWithRetry claims a batch with backoff on transient store failures.
func (p *producer) claimWithRetry(ctx context.Context, limit int) ([]*core.Job, error) {
	var jobs []*core.Job
	err := retryWithBackoff(ctx, *p.engine.config.ClaimRetry, func() error {
		var claimErr error
		jobs, claimErr = p.engine.client.Storage().ClaimBatch(
			ctx, p.queue, limit, p.engine.config.ClientID, time.Now())
		return claimErr
	})
	return jobs, err
}

func (p *producer) slotLoop(workCtx context.Context) {
	defer p.engine.slotWg.Done()

	for job := range p.jobs {
		p.engine.executeJob(workCtx, job)
		p.active.Add(-1)
		p.engine.inflight.Add(-1)
	}
}
