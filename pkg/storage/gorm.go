package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jdziat/durajobs/pkg/core"
)

// GormStore implements core.Storage using GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB returns the underlying GORM handle.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// Migrate creates the necessary tables.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&core.Job{})
}

func prepareInsert(job *core.Job) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Queue == "" {
		job.Queue = "default"
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = 3
	}
	now := time.Now()
	if job.ScheduledAt.IsZero() {
		job.ScheduledAt = now
	}
	if job.State == "" {
		if job.ScheduledAt.After(now) {
			job.State = core.StateScheduled
		} else {
			job.State = core.StateAvailable
		}
	}
}

// Insert persists a new job row.
func (s *GormStore) Insert(ctx context.Context, job *core.Job) error {
	prepareInsert(job)
	return s.db.WithContext(ctx).Create(job).Error
}

// InsertUnique inserts the job unless a conflicting job matching opts exists.
// The check and insert run in one transaction; with SQLite the single-writer
// model serializes concurrent callers, with PostgreSQL the transaction plus
// conditional check keeps the window small (PgxStore additionally takes an
// advisory lock on the key).
func (s *GormStore) InsertUnique(ctx context.Context, job *core.Job, opts core.UniqueOpts) (*core.Job, bool, error) {
	prepareInsert(job)
	job.UniqueKey = opts.Key

	var existing core.Job
	var inserted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where("unique_key = ?", opts.Key).
			Where("state IN ?", opts.ConflictStates())
		if opts.Window > 0 {
			q = q.Where("created_at >= ?", time.Now().Add(-opts.Window))
		}
		result := q.Order("created_at ASC").First(&existing)
		if result.Error == nil {
			return nil // conflict, keep existing
		}
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return result.Error
		}
		inserted = true
		return tx.Create(job).Error
	})
	if err != nil {
		return nil, false, err
	}
	if inserted {
		return job, true, nil
	}
	return &existing, false, nil
}

// ClaimBatch atomically claims up to limit available jobs in the queue.
// Each row is claimed with a conditional update keyed on the available
// state, so a row that another instance claimed between the read and the
// update is skipped rather than double-claimed.
func (s *GormStore) ClaimBatch(ctx context.Context, queue string, limit int, clientID string, now time.Time) ([]*core.Job, error) {
	if limit <= 0 {
		return nil, nil
	}

	var claimed []*core.Job
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []*core.Job
		result := tx.
			Where("queue = ?", queue).
			Where("state = ?", core.StateAvailable).
			Where("scheduled_at <= ?", now).
			Order("priority ASC, scheduled_at ASC, created_at ASC").
			Limit(limit).
			Find(&rows)
		if result.Error != nil {
			return result.Error
		}

		for _, job := range rows {
			if job.Attempt >= job.MaxAttempts {
				// Already at the ceiling: discard instead of executing.
				res := tx.Model(&core.Job{}).
					Where("id = ? AND state = ?", job.ID, core.StateAvailable).
					Updates(map[string]any{
						"state":        core.StateDiscarded,
						"discarded_at": now,
					})
				if res.Error != nil {
					return res.Error
				}
				continue
			}

			res := tx.Model(&core.Job{}).
				Where("id = ? AND state = ?", job.ID, core.StateAvailable).
				Updates(map[string]any{
					"state":        core.StateExecuting,
					"attempt":      gorm.Expr("attempt + 1"),
					"attempted_at": now,
					"attempted_by": clientID,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				continue // claimed elsewhere
			}

			job.State = core.StateExecuting
			job.Attempt++
			at := now
			job.AttemptedAt = &at
			job.AttemptedBy = clientID
			claimed = append(claimed, job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Transition performs an atomic compare-and-update from one state to another.
func (s *GormStore) Transition(ctx context.Context, jobID string, from, to core.JobState, patch core.JobPatch) (bool, error) {
	if !core.CanTransition(from, to) {
		return false, nil
	}

	var moved bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job core.Job
		result := tx.Where("id = ? AND state = ?", jobID, from).First(&job)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return nil // already transitioned elsewhere
			}
			return result.Error
		}

		updates := map[string]any{"state": to}
		if patch.ScheduledAt != nil {
			updates["scheduled_at"] = *patch.ScheduledAt
		}
		if patch.CompletedAt != nil {
			updates["completed_at"] = *patch.CompletedAt
		}
		if patch.CancelledAt != nil {
			updates["cancelled_at"] = *patch.CancelledAt
		}
		if patch.DiscardedAt != nil {
			updates["discarded_at"] = *patch.DiscardedAt
		}
		if patch.ClearOwner {
			updates["attempted_by"] = ""
		}
		if patch.AppendError != nil {
			errs := append(job.Errors, *patch.AppendError)
			val, err := errs.Value()
			if err != nil {
				return err
			}
			updates["errors"] = val
		}

		res := tx.Model(&core.Job{}).
			Where("id = ? AND state = ?", jobID, from).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		moved = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return moved, nil
}

// Cancel marks a non-terminal job cancelled. Idempotent.
func (s *GormStore) Cancel(ctx context.Context, jobID string) (*core.Job, bool, error) {
	now := time.Now()
	res := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id = ?", jobID).
		Where("state NOT IN ?", core.TerminalStates).
		Updates(map[string]any{
			"state":        core.StateCancelled,
			"cancelled_at": now,
			"attempted_by": "",
		})
	if res.Error != nil {
		return nil, false, res.Error
	}
	// RowsAffected == 0 means the job was already terminal or missing;
	// either way return whatever is there now.
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, false, err
	}
	if job == nil {
		return nil, false, core.ErrJobNotFound
	}
	return job, res.RowsAffected > 0, nil
}

// PromoteDue moves due scheduled and retryable jobs to available.
func (s *GormStore) PromoteDue(ctx context.Context, now time.Time, limit int) (int64, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("state IN ?", []core.JobState{core.StateScheduled, core.StateRetryable}).
		Where("scheduled_at <= ?", now).
		Order("scheduled_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id IN ?", ids).
		Where("state IN ?", []core.JobState{core.StateScheduled, core.StateRetryable}).
		Where("scheduled_at <= ?", now).
		Update("state", core.StateAvailable)
	return res.RowsAffected, res.Error
}

// RescueStale returns orphaned executing jobs to available, or discards them
// at the attempt ceiling. The conditional predicates mirror the claim
// operation so a rescue never races a slot recording its outcome.
func (s *GormStore) RescueStale(ctx context.Context, olderThan time.Time) (int64, int64, error) {
	now := time.Now()

	discardRes := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("state = ?", core.StateExecuting).
		Where("attempted_at < ?", olderThan).
		Where("attempt >= max_attempts").
		Updates(map[string]any{
			"state":        core.StateDiscarded,
			"discarded_at": now,
			"attempted_by": "",
		})
	if discardRes.Error != nil {
		return 0, 0, discardRes.Error
	}

	rescueRes := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("state = ?", core.StateExecuting).
		Where("attempted_at < ?", olderThan).
		Where("attempt < max_attempts").
		Updates(map[string]any{
			"state":        core.StateAvailable,
			"attempted_by": "",
		})
	if rescueRes.Error != nil {
		return 0, discardRes.RowsAffected, rescueRes.Error
	}

	return rescueRes.RowsAffected, discardRes.RowsAffected, nil
}

// PruneTerminal deletes terminal jobs whose terminal timestamp is older than
// olderThan, oldest first, at most limit rows. Non-terminal jobs are never
// deleted regardless of age.
func (s *GormStore) PruneTerminal(ctx context.Context, olderThan time.Time, limit int) (int64, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("state IN ?", core.TerminalStates).
		Where("COALESCE(completed_at, cancelled_at, discarded_at) < ?", olderThan).
		Order("COALESCE(completed_at, cancelled_at, discarded_at) ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res := s.db.WithContext(ctx).
		Where("id IN ?", ids).
		Where("state IN ?", core.TerminalStates).
		Delete(&core.Job{})
	return res.RowsAffected, res.Error
}

// GetJob retrieves a job by ID. Returns (nil, nil) when not found.
func (s *GormStore) GetJob(ctx context.Context, jobID string) (*core.Job, error) {
	var job core.Job
	err := s.db.WithContext(ctx).First(&job, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs retrieves jobs in a state, newest first.
func (s *GormStore) ListJobs(ctx context.Context, state core.JobState, limit int) ([]*core.Job, error) {
	var jobList []*core.Job
	err := s.db.WithContext(ctx).
		Where("state = ?", state).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobList).Error
	return jobList, err
}

// CountByState returns row counts grouped by state.
func (s *GormStore) CountByState(ctx context.Context) (map[core.JobState]int64, error) {
	type row struct {
		State core.JobState
		N     int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Select("state, COUNT(*) AS n").
		Group("state").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[core.JobState]int64, len(rows))
	for _, r := range rows {
		counts[r.State] = r.N
	}
	return counts, nil
}

// CountByQueue returns the backlog (scheduled, available, retryable rows)
// per queue.
func (s *GormStore) CountByQueue(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Queue string
		N     int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Select("queue, COUNT(*) AS n").
		Where("state IN ?", []core.JobState{core.StateScheduled, core.StateAvailable, core.StateRetryable}).
		Group("queue").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Queue] = r.N
	}
	return counts, nil
}
