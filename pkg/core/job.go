package core

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JobState represents the current lifecycle state of a job.
type JobState string

const (
	// StateScheduled means the job is waiting for its scheduled_at time.
	StateScheduled JobState = "scheduled"
	// StateAvailable means the job is claimable by any worker slot.
	StateAvailable JobState = "available"
	// StateExecuting means exactly one worker slot owns the job.
	StateExecuting JobState = "executing"
	// StateRetryable means the job failed and will become available again
	// once its backoff delay elapses.
	StateRetryable JobState = "retryable"
	// StateCompleted means the handler returned success. Terminal.
	StateCompleted JobState = "completed"
	// StateDiscarded means the job exhausted its attempts or was force
	// discarded by the handler. Terminal.
	StateDiscarded JobState = "discarded"
	// StateCancelled means the job was cancelled by an external request.
	// Terminal.
	StateCancelled JobState = "cancelled"
)

// Terminal reports whether the state is final. Terminal rows are immutable
// except for deletion by the pruner.
func (s JobState) Terminal() bool {
	switch s {
	case StateCompleted, StateDiscarded, StateCancelled:
		return true
	}
	return false
}

// TerminalStates lists all terminal states, for use in store predicates.
var TerminalStates = []JobState{StateCompleted, StateDiscarded, StateCancelled}

// NonTerminalStates lists all non-terminal states.
var NonTerminalStates = []JobState{StateScheduled, StateAvailable, StateExecuting, StateRetryable}

// legalTransitions is the canonical transition table. Cancellation from any
// non-terminal state is handled separately since it is legal everywhere.
var legalTransitions = map[JobState][]JobState{
	StateScheduled: {StateAvailable},
	StateAvailable: {StateExecuting},
	StateExecuting: {StateCompleted, StateRetryable, StateDiscarded, StateAvailable},
	StateRetryable: {StateAvailable, StateDiscarded},
}

// CanTransition reports whether from -> to is a legal state machine edge.
// executing -> available is the orphan rescue edge used by the lifeline.
func CanTransition(from, to JobState) bool {
	if from.Terminal() {
		return false
	}
	if to == StateCancelled {
		return true
	}
	for _, s := range legalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Job represents a unit of work to be processed.
type Job struct {
	ID          string        `gorm:"primaryKey;size:36"`
	Kind        string        `gorm:"index;size:255;not null"`
	Args        []byte        `gorm:"type:bytes"`
	Queue       string        `gorm:"index;size:255;default:'default'"`
	Priority    int           `gorm:"index;default:0"` // lower runs first
	State       JobState      `gorm:"index;size:20;default:'available'"`
	Attempt     int           `gorm:"default:0"`
	MaxAttempts int           `gorm:"default:3"`
	Errors      AttemptErrors `gorm:"type:bytes"`

	ScheduledAt time.Time  `gorm:"index"` // earliest time eligible for claim
	AttemptedAt *time.Time `gorm:"index"` // set on each claim
	AttemptedBy string     `gorm:"size:255"`
	CompletedAt *time.Time
	CancelledAt *time.Time
	DiscardedAt *time.Time

	UniqueKey string    `gorm:"index;size:255"` // deduplication fingerprint
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TerminalAt returns the terminal timestamp for the job's current state,
// or nil if the job is not terminal. At most one is ever set.
func (j *Job) TerminalAt() *time.Time {
	switch j.State {
	case StateCompleted:
		return j.CompletedAt
	case StateCancelled:
		return j.CancelledAt
	case StateDiscarded:
		return j.DiscardedAt
	}
	return nil
}

// AttemptError records a single failed attempt. The sequence on a job is
// append-only and ordered from earliest to latest.
type AttemptError struct {
	Attempt int       `json:"attempt"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// AttemptErrors is the job's error sequence, stored as a JSON blob.
type AttemptErrors []AttemptError

// Value implements driver.Valuer for database storage.
func (e AttemptErrors) Value() (driver.Value, error) {
	if len(e) == 0 {
		return nil, nil
	}
	return json.Marshal(e)
}

// Scan implements sql.Scanner.
func (e *AttemptErrors) Scan(src any) error {
	if src == nil {
		*e = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		if len(v) == 0 {
			*e = nil
			return nil
		}
		return json.Unmarshal(v, e)
	case string:
		if v == "" {
			*e = nil
			return nil
		}
		return json.Unmarshal([]byte(v), e)
	}
	return fmt.Errorf("jobs: cannot scan %T into AttemptErrors", src)
}
