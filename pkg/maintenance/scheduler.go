package maintenance

import (
	"context"
	"time"

	"github.com/jdziat/durajobs/pkg/core"
)

// Scheduler promotes scheduled and retryable jobs whose scheduled_at has
// passed to available, making them claimable. This is the timed half of the
// state machine: the engine only ever claims available rows.
type Scheduler struct {
	// Limit caps rows promoted per tick. Default 1000.
	Limit int
	// TickInterval is the pause between sweeps. Default 1s.
	TickInterval time.Duration
}

// Name implements Plugin.
func (s *Scheduler) Name() string { return "scheduler" }

// Interval implements Plugin.
func (s *Scheduler) Interval() time.Duration {
	if s.TickInterval > 0 {
		return s.TickInterval
	}
	return time.Second
}

// Tick promotes one batch of due jobs.
func (s *Scheduler) Tick(ctx context.Context, store core.Storage) error {
	limit := s.Limit
	if limit <= 0 {
		limit = 1000
	}
	_, err := store.PromoteDue(ctx, time.Now(), limit)
	return err
}
