package core

import (
	"errors"
	"fmt"
	"time"
)

// Validation errors
var (
	ErrInvalidKind      = errors.New("jobs: invalid job kind (must be alphanumeric, start with letter)")
	ErrKindTooLong      = errors.New("jobs: job kind too long")
	ErrInvalidQueueName = errors.New("jobs: invalid queue name")
	ErrQueueNameTooLong = errors.New("jobs: queue name too long")
	ErrArgsTooLarge     = errors.New("jobs: job arguments exceed size limit")
	ErrUniqueKeyTooLong = errors.New("jobs: unique key exceeds maximum length")
	ErrJobNotFound      = errors.New("jobs: job not found")
)

// DiscardError forces a job to discarded immediately, without consuming its
// remaining attempts.
type DiscardError struct {
	Err error
}

func (e *DiscardError) Error() string {
	return fmt.Sprintf("discard: %v", e.Err)
}

func (e *DiscardError) Unwrap() error {
	return e.Err
}

// Discard wraps an error to indicate the job should not be retried.
func Discard(err error) error {
	return &DiscardError{Err: err}
}

// SnoozeError requests a retry after an explicit delay instead of the
// backoff strategy's delay. The attempt still counts toward the ceiling.
type SnoozeError struct {
	Err   error
	Delay time.Duration
}

func (e *SnoozeError) Error() string {
	return fmt.Sprintf("snooze %v: %v", e.Delay, e.Err)
}

func (e *SnoozeError) Unwrap() error {
	return e.Err
}

// Snooze wraps an error to indicate the job should be retried after a delay.
func Snooze(d time.Duration, err error) error {
	return &SnoozeError{Err: err, Delay: d}
}
