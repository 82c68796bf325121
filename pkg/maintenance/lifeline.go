package maintenance

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jdziat/durajobs/pkg/core"
)

// Lifeline rescues orphaned jobs: rows stuck in executing because their
// owning process died without recording an outcome. Rescued jobs return to
// available with their attempt count intact; jobs already at the attempt
// ceiling are discarded.
//
// RescueAfter must be comfortably larger than the longest expected handler
// duration. A job whose handler is still legitimately running past the
// threshold would be rescued and run twice; the atomic claim keeps that
// from corrupting state, but picking the threshold is a tuning
// responsibility.
type Lifeline struct {
	// RescueAfter is the staleness threshold measured from attempted_at.
	RescueAfter time.Duration
	// TickInterval is the pause between sweeps. Default 30s.
	TickInterval time.Duration

	Logger *zap.Logger
}

// Name implements Plugin.
func (l *Lifeline) Name() string { return "lifeline" }

// Interval implements Plugin.
func (l *Lifeline) Interval() time.Duration {
	if l.TickInterval > 0 {
		return l.TickInterval
	}
	return 30 * time.Second
}

// Tick sweeps for stale executing jobs.
func (l *Lifeline) Tick(ctx context.Context, store core.Storage) error {
	rescued, discarded, err := store.RescueStale(ctx, time.Now().Add(-l.RescueAfter))
	if err != nil {
		return err
	}
	if (rescued > 0 || discarded > 0) && l.Logger != nil {
		l.Logger.Info("rescued orphaned jobs",
			zap.Int64("rescued", rescued),
			zap.Int64("discarded", discarded))
	}
	return nil
}
