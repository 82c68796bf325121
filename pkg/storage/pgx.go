package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jdziat/durajobs/pkg/core"
)

// PgxStore implements core.Storage with raw SQL over a pgx connection pool.
// Claim batches use FOR UPDATE SKIP LOCKED so concurrent engine instances
// never contend on the same rows.
type PgxStore struct {
	db *pgxpool.Pool
}

// NewPgxStore creates a new pgx-backed store.
func NewPgxStore(db *pgxpool.Pool) *PgxStore {
	return &PgxStore{db: db}
}

const pgxSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id           text PRIMARY KEY,
	kind         text NOT NULL,
	args         bytea,
	queue        text NOT NULL DEFAULT 'default',
	priority     integer NOT NULL DEFAULT 0,
	state        text NOT NULL DEFAULT 'available',
	attempt      integer NOT NULL DEFAULT 0,
	max_attempts integer NOT NULL DEFAULT 3,
	errors       jsonb,
	scheduled_at timestamptz NOT NULL,
	attempted_at timestamptz,
	attempted_by text NOT NULL DEFAULT '',
	completed_at timestamptz,
	cancelled_at timestamptz,
	discarded_at timestamptz,
	unique_key   text NOT NULL DEFAULT '',
	created_at   timestamptz NOT NULL DEFAULT now(),
	updated_at   timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_jobs_claim ON jobs (queue, state, priority, scheduled_at);
CREATE INDEX IF NOT EXISTS idx_jobs_state ON jobs (state, attempted_at);
CREATE INDEX IF NOT EXISTS idx_jobs_unique_key ON jobs (unique_key) WHERE unique_key <> '';
`

// Migrate creates the jobs table and its indexes.
func (s *PgxStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, pgxSchema)
	return err
}

const jobColumns = `id, kind, args, queue, priority, state, attempt, max_attempts,
	errors, scheduled_at, attempted_at, attempted_by, completed_at, cancelled_at,
	discarded_at, unique_key, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*core.Job, error) {
	var job core.Job
	var errsJSON []byte
	err := row.Scan(
		&job.ID, &job.Kind, &job.Args, &job.Queue, &job.Priority, &job.State,
		&job.Attempt, &job.MaxAttempts, &errsJSON, &job.ScheduledAt,
		&job.AttemptedAt, &job.AttemptedBy, &job.CompletedAt, &job.CancelledAt,
		&job.DiscardedAt, &job.UniqueKey, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(errsJSON) > 0 {
		if err := json.Unmarshal(errsJSON, &job.Errors); err != nil {
			return nil, fmt.Errorf("decode errors column: %w", err)
		}
	}
	return &job, nil
}

func statePlaceholders(states []core.JobState, argOffset int) (string, []any) {
	parts := make([]string, len(states))
	args := make([]any, len(states))
	for i, st := range states {
		parts[i] = fmt.Sprintf("$%d", argOffset+i)
		args[i] = string(st)
	}
	return strings.Join(parts, ", "), args
}

// Insert persists a new job row.
func (s *PgxStore) Insert(ctx context.Context, job *core.Job) error {
	prepareInsert(job)
	errsJSON, err := json.Marshal(job.Errors)
	if err != nil {
		return err
	}
	if len(job.Errors) == 0 {
		errsJSON = nil
	}
	_, err = s.db.Exec(ctx, `INSERT INTO jobs (
		id, kind, args, queue, priority, state, attempt, max_attempts, errors,
		scheduled_at, unique_key
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		job.ID, job.Kind, job.Args, job.Queue, job.Priority, string(job.State),
		job.Attempt, job.MaxAttempts, errsJSON, job.ScheduledAt, job.UniqueKey,
	)
	return err
}

// InsertUnique inserts the job unless a conflicting job matching opts exists.
// A transaction-scoped advisory lock on the key serializes concurrent
// callers, since there is no database-level uniqueness constraint to rely on.
func (s *PgxStore) InsertUnique(ctx context.Context, job *core.Job, opts core.UniqueOpts) (*core.Job, bool, error) {
	prepareInsert(job)
	job.UniqueKey = opts.Key

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, opts.Key); err != nil {
		return nil, false, err
	}

	in, stArgs := statePlaceholders(opts.ConflictStates(), 2)
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE unique_key = $1 AND state IN (` + in + `)`
	args := append([]any{opts.Key}, stArgs...)
	if opts.Window > 0 {
		query += fmt.Sprintf(" AND created_at >= $%d", len(args)+1)
		args = append(args, time.Now().Add(-opts.Window))
	}
	query += " ORDER BY created_at ASC LIMIT 1"

	existing, err := scanJob(tx.QueryRow(ctx, query, args...))
	if err == nil {
		if cerr := tx.Commit(ctx); cerr != nil {
			return nil, false, cerr
		}
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	errsJSON, err := json.Marshal(job.Errors)
	if err != nil {
		return nil, false, err
	}
	if len(job.Errors) == 0 {
		errsJSON = nil
	}
	_, err = tx.Exec(ctx, `INSERT INTO jobs (
		id, kind, args, queue, priority, state, attempt, max_attempts, errors,
		scheduled_at, unique_key
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		job.ID, job.Kind, job.Args, job.Queue, job.Priority, string(job.State),
		job.Attempt, job.MaxAttempts, errsJSON, job.ScheduledAt, job.UniqueKey,
	)
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return job, true, nil
}

// ClaimBatch atomically claims up to limit available jobs in the queue.
func (s *PgxStore) ClaimBatch(ctx context.Context, queue string, limit int, clientID string, now time.Time) ([]*core.Job, error) {
	if limit <= 0 {
		return nil, nil
	}

	// Rows already at their attempt ceiling are discarded rather than
	// handed to a slot.
	_, err := s.db.Exec(ctx, `
		WITH stuck AS (
			SELECT id FROM jobs
			WHERE queue = $1 AND state = 'available' AND scheduled_at <= $2
			  AND attempt >= max_attempts
			FOR UPDATE SKIP LOCKED
		)
		UPDATE jobs j SET state = 'discarded', discarded_at = $2, updated_at = now()
		FROM stuck WHERE j.id = stuck.id`,
		queue, now,
	)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		WITH claimable AS (
			SELECT id FROM jobs
			WHERE queue = $1 AND state = 'available' AND scheduled_at <= $2
			  AND attempt < max_attempts
			ORDER BY priority ASC, scheduled_at ASC, created_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		UPDATE jobs j
		SET state = 'executing', attempt = j.attempt + 1,
		    attempted_at = $2, attempted_by = $4, updated_at = now()
		FROM claimable c WHERE j.id = c.id
		RETURNING `+qualifiedJobColumns("j"),
		queue, now, limit, clientID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claimed []*core.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, job)
	}
	return claimed, rows.Err()
}

func qualifiedJobColumns(alias string) string {
	cols := strings.Split(strings.ReplaceAll(jobColumns, "\n\t", " "), ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

// Transition performs an atomic compare-and-update from one state to another.
// The error append uses jsonb concatenation so no read-modify-write is needed.
func (s *PgxStore) Transition(ctx context.Context, jobID string, from, to core.JobState, patch core.JobPatch) (bool, error) {
	if !core.CanTransition(from, to) {
		return false, nil
	}

	set := []string{"state = $3", "updated_at = now()"}
	args := []any{jobID, string(from), string(to)}

	addArg := func(clause string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf(clause, len(args)))
	}

	if patch.ScheduledAt != nil {
		addArg("scheduled_at = $%d", *patch.ScheduledAt)
	}
	if patch.CompletedAt != nil {
		addArg("completed_at = $%d", *patch.CompletedAt)
	}
	if patch.CancelledAt != nil {
		addArg("cancelled_at = $%d", *patch.CancelledAt)
	}
	if patch.DiscardedAt != nil {
		addArg("discarded_at = $%d", *patch.DiscardedAt)
	}
	if patch.ClearOwner {
		set = append(set, "attempted_by = ''")
	}
	if patch.AppendError != nil {
		entry, err := json.Marshal([]core.AttemptError{*patch.AppendError})
		if err != nil {
			return false, err
		}
		addArg("errors = COALESCE(errors, '[]'::jsonb) || $%d::jsonb", entry)
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE jobs SET `+strings.Join(set, ", ")+` WHERE id = $1 AND state = $2`,
		args...,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Cancel marks a non-terminal job cancelled. Idempotent.
func (s *PgxStore) Cancel(ctx context.Context, jobID string) (*core.Job, bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE jobs
		SET state = 'cancelled', cancelled_at = now(), attempted_by = '', updated_at = now()
		WHERE id = $1 AND state NOT IN ('completed', 'discarded', 'cancelled')`,
		jobID,
	)
	if err != nil {
		return nil, false, err
	}
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, false, err
	}
	if job == nil {
		return nil, false, core.ErrJobNotFound
	}
	return job, tag.RowsAffected() > 0, nil
}

// PromoteDue moves due scheduled and retryable jobs to available.
func (s *PgxStore) PromoteDue(ctx context.Context, now time.Time, limit int) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		WITH due AS (
			SELECT id FROM jobs
			WHERE state IN ('scheduled', 'retryable') AND scheduled_at <= $1
			ORDER BY scheduled_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE jobs j SET state = 'available', updated_at = now()
		FROM due WHERE j.id = due.id`,
		now, limit,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RescueStale returns orphaned executing jobs to available, or discards
// them at the attempt ceiling.
func (s *PgxStore) RescueStale(ctx context.Context, olderThan time.Time) (int64, int64, error) {
	discardTag, err := s.db.Exec(ctx, `
		UPDATE jobs
		SET state = 'discarded', discarded_at = now(), attempted_by = '', updated_at = now()
		WHERE state = 'executing' AND attempted_at < $1 AND attempt >= max_attempts`,
		olderThan,
	)
	if err != nil {
		return 0, 0, err
	}

	rescueTag, err := s.db.Exec(ctx, `
		UPDATE jobs
		SET state = 'available', attempted_by = '', updated_at = now()
		WHERE state = 'executing' AND attempted_at < $1 AND attempt < max_attempts`,
		olderThan,
	)
	if err != nil {
		return 0, discardTag.RowsAffected(), err
	}
	return rescueTag.RowsAffected(), discardTag.RowsAffected(), nil
}

// PruneTerminal deletes terminal jobs whose terminal timestamp is older
// than olderThan, oldest first, at most limit rows.
func (s *PgxStore) PruneTerminal(ctx context.Context, olderThan time.Time, limit int) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM jobs
		WHERE id IN (
			SELECT id FROM jobs
			WHERE state IN ('completed', 'discarded', 'cancelled')
			  AND COALESCE(completed_at, cancelled_at, discarded_at) < $1
			ORDER BY COALESCE(completed_at, cancelled_at, discarded_at) ASC
			LIMIT $2
		)`,
		olderThan, limit,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// GetJob retrieves a job by ID. Returns (nil, nil) when not found.
func (s *PgxStore) GetJob(ctx context.Context, jobID string) (*core.Job, error) {
	job, err := scanJob(s.db.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobs retrieves jobs in a state, newest first.
func (s *PgxStore) ListJobs(ctx context.Context, state core.JobState, limit int) ([]*core.Job, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE state = $1 ORDER BY created_at DESC LIMIT $2`,
		string(state), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobList []*core.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobList = append(jobList, job)
	}
	return jobList, rows.Err()
}

// CountByState returns row counts grouped by state.
func (s *PgxStore) CountByState(ctx context.Context) (map[core.JobState]int64, error) {
	rows, err := s.db.Query(ctx, `SELECT state, COUNT(*) FROM jobs GROUP BY state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[core.JobState]int64)
	for rows.Next() {
		var state string
		var n int64
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[core.JobState(state)] = n
	}
	return counts, rows.Err()
}

// CountByQueue returns the backlog per queue.
func (s *PgxStore) CountByQueue(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.Query(ctx, `
		SELECT queue, COUNT(*) FROM jobs
		WHERE state IN ('scheduled', 'available', 'retryable')
		GROUP BY queue`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var queue string
		var n int64
		if err := rows.Scan(&queue, &n); err != nil {
			return nil, err
		}
		counts[queue] = n
	}
	return counts, rows.Err()
}
