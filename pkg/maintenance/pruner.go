package maintenance

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jdziat/durajobs/pkg/core"
)

// Pruner deletes terminal jobs older than a retention age. Deletion happens
// oldest first and at most Limit rows per tick to bound transaction size.
// Non-terminal jobs are never deleted regardless of age.
type Pruner struct {
	// MaxAge is the retention age measured from the terminal timestamp.
	MaxAge time.Duration
	// Limit caps rows deleted per tick. Default 1000.
	Limit int
	// TickInterval is the pause between sweeps. Default 30s.
	TickInterval time.Duration

	Logger *zap.Logger
}

// Name implements Plugin.
func (p *Pruner) Name() string { return "pruner" }

// Interval implements Plugin.
func (p *Pruner) Interval() time.Duration {
	if p.TickInterval > 0 {
		return p.TickInterval
	}
	return 30 * time.Second
}

// Tick deletes one batch of expired terminal jobs.
func (p *Pruner) Tick(ctx context.Context, store core.Storage) error {
	limit := p.Limit
	if limit <= 0 {
		limit = 1000
	}

	pruned, err := store.PruneTerminal(ctx, time.Now().Add(-p.MaxAge), limit)
	if err != nil {
		return err
	}
	if pruned > 0 && p.Logger != nil {
		p.Logger.Debug("pruned terminal jobs", zap.Int64("count", pruned))
	}
	return nil
}
