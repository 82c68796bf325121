package core

import (
	"context"
	"time"
)

// Starter is the interface for anything started with the engine lifecycle.
type Starter interface {
	Start(ctx context.Context) error
}

// UniqueOpts describes a uniqueness constraint resolved at insertion time.
// There is no database-level unique constraint behind it; stores resolve it
// with a transactional query-then-insert.
type UniqueOpts struct {
	// Key is the caller-supplied fingerprint.
	Key string
	// Window is how far back to look for a conflicting job. Zero means
	// any age.
	Window time.Duration
	// States restricts which states count as conflicting. Empty means all
	// non-terminal states.
	States []JobState
}

// ConflictStates returns the states that suppress insertion.
func (u UniqueOpts) ConflictStates() []JobState {
	if len(u.States) > 0 {
		return u.States
	}
	return NonTerminalStates
}

// JobPatch carries the field updates applied alongside a state transition.
// Nil fields are left untouched.
type JobPatch struct {
	ScheduledAt *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
	DiscardedAt *time.Time

	// AppendError appends one entry to the job's error sequence.
	AppendError *AttemptError

	// ClearOwner resets attempted_by when the job leaves executing.
	ClearOwner bool
}

// Storage defines the persistence layer for jobs. All mutations are atomic
// conditional updates; no caller ever does read-modify-write outside a
// store transaction.
type Storage interface {
	// Migrate creates the necessary database tables.
	Migrate(ctx context.Context) error

	// Insert persists a new job row.
	Insert(ctx context.Context, job *Job) error

	// InsertUnique inserts the job unless a conflicting job matching opts
	// exists. Returns the winning job and whether an insert happened; on
	// conflict the returned job is the pre-existing one.
	InsertUnique(ctx context.Context, job *Job, opts UniqueOpts) (*Job, bool, error)

	// ClaimBatch atomically transitions up to limit available jobs in the
	// queue to executing, ordered by (priority ASC, scheduled_at ASC,
	// created_at ASC). Claimed rows get attempt incremented, attempted_at
	// set, and attempted_by set to clientID. No two concurrent callers ever
	// claim the same row. Rows already at their attempt ceiling are
	// discarded instead of returned.
	ClaimBatch(ctx context.Context, queue string, limit int, clientID string, now time.Time) ([]*Job, error)

	// Transition performs an atomic compare-and-update from one state to
	// another, applying patch. Returns false without error when the row is
	// no longer in the from state; callers treat that as the job having
	// been transitioned elsewhere.
	Transition(ctx context.Context, jobID string, from, to JobState, patch JobPatch) (bool, error)

	// Cancel marks a non-terminal job cancelled. Idempotent: cancelling a
	// terminal job is a no-op. Returns the job row after the call and
	// whether this call performed the cancellation.
	Cancel(ctx context.Context, jobID string) (*Job, bool, error)

	// PromoteDue moves scheduled and retryable jobs whose scheduled_at has
	// passed to available, at most limit rows per call.
	PromoteDue(ctx context.Context, now time.Time, limit int) (int64, error)

	// RescueStale handles executing jobs whose attempted_at is older than
	// olderThan: jobs with attempts remaining return to available, jobs at
	// the ceiling are discarded. Returns (rescued, discarded) counts.
	RescueStale(ctx context.Context, olderThan time.Time) (int64, int64, error)

	// PruneTerminal deletes terminal jobs whose terminal timestamp is older
	// than olderThan, oldest first, at most limit rows per call.
	PruneTerminal(ctx context.Context, olderThan time.Time, limit int) (int64, error)

	// Queries
	GetJob(ctx context.Context, jobID string) (*Job, error)
	ListJobs(ctx context.Context, state JobState, limit int) ([]*Job, error)
	CountByState(ctx context.Context) (map[JobState]int64, error)
	CountByQueue(ctx context.Context) (map[string]int64, error)
}
