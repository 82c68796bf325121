package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jdziat/durajobs/pkg/core"
	"github.com/jdziat/durajobs/pkg/event"
	"github.com/jdziat/durajobs/pkg/internal/handler"
	"github.com/jdziat/durajobs/pkg/jobctx"
	"github.com/jdziat/durajobs/pkg/security"
)

// recordTimeout bounds outcome-recording store calls. Recording runs on its
// own context: the work context may already be cancelled when a handler
// returns during shutdown, and the outcome must still land.
const recordTimeout = 30 * time.Second

// executeJob runs one claimed job through its handler and records the
// outcome via the state machine.
func (e *Engine) executeJob(workCtx context.Context, job *core.Job) {
	start := time.Now()
	emitter := e.client.Emitter()
	emitter.Emit(&event.JobStarted{Job: job, Timestamp: start})

	h, ok := e.client.Handler(job.Kind)
	if !ok {
		e.logger.Error("no handler for job",
			zap.String("kind", job.Kind),
			zap.String("job_id", job.ID))
		e.recordFailure(job, fmt.Errorf("jobs: no handler registered for %q", job.Kind), start)
		return
	}

	err := e.invokeHandler(workCtx, job, h)
	if err != nil {
		e.recordFailure(job, err, start)
		return
	}

	now := time.Now()
	moved := e.transitionWithRetry(job.ID, core.StateExecuting, core.StateCompleted, core.JobPatch{
		CompletedAt: &now,
		ClearOwner:  true,
	})
	if !moved {
		// Transitioned elsewhere (cancelled or rescued) - expected race,
		// not an error.
		e.logger.Debug("completion lost to concurrent transition", zap.String("job_id", job.ID))
		return
	}
	emitter.Emit(&event.JobCompleted{Job: job, Duration: time.Since(start), Timestamp: now})
}

// invokeHandler runs the handler under the job context with the registered
// or default timeout, converting panics to errors.
func (e *Engine) invokeHandler(workCtx context.Context, job *core.Job, h *handler.Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	ctx := jobctx.WithJob(workCtx, job)

	timeout := h.Timeout
	if timeout == 0 {
		timeout = e.config.JobTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return h.Execute(ctx, job.Args)
}

// recordFailure applies the failure policy: force discards go straight to
// discarded, snoozes retry after their explicit delay, anything else
// retries on the backoff strategy - in every case only while attempts
// remain. A handler timeout arrives here as context.DeadlineExceeded and
// counts like any other failure.
func (e *Engine) recordFailure(job *core.Job, jobErr error, start time.Time) {
	now := time.Now()
	attemptErr := &core.AttemptError{
		Attempt: job.Attempt,
		Message: security.SanitizeErrorMessage(jobErr.Error()),
		At:      now,
	}
	emitter := e.client.Emitter()

	var discard *core.DiscardError
	if errors.As(jobErr, &discard) {
		e.discard(job, jobErr, attemptErr, start)
		return
	}

	if job.Attempt >= job.MaxAttempts {
		e.discard(job, jobErr, attemptErr, start)
		return
	}

	delay := e.config.Backoff.Delay(job.Attempt)
	var snooze *core.SnoozeError
	if errors.As(jobErr, &snooze) {
		delay = snooze.Delay
	}
	retryAt := now.Add(delay)

	moved := e.transitionWithRetry(job.ID, core.StateExecuting, core.StateRetryable, core.JobPatch{
		ScheduledAt: &retryAt,
		AppendError: attemptErr,
		ClearOwner:  true,
	})
	if !moved {
		e.logger.Debug("retry lost to concurrent transition", zap.String("job_id", job.ID))
		return
	}
	emitter.Emit(&event.JobRetrying{
		Job:       job,
		Attempt:   job.Attempt,
		Error:     jobErr,
		NextRunAt: retryAt,
		Timestamp: now,
	})
}

func (e *Engine) discard(job *core.Job, jobErr error, attemptErr *core.AttemptError, start time.Time) {
	now := time.Now()
	moved := e.transitionWithRetry(job.ID, core.StateExecuting, core.StateDiscarded, core.JobPatch{
		DiscardedAt: &now,
		AppendError: attemptErr,
		ClearOwner:  true,
	})
	if !moved {
		e.logger.Debug("discard lost to concurrent transition", zap.String("job_id", job.ID))
		return
	}
	e.client.Emitter().Emit(&event.JobFailed{
		Job:       job,
		Error:     jobErr,
		Duration:  time.Since(start),
		Timestamp: now,
	})
}

// transitionWithRetry records a state transition with backoff on transient
// store failures. Returns whether the compare-and-update won; a loss means
// the job was transitioned elsewhere and the caller drops its outcome.
func (e *Engine) transitionWithRetry(jobID string, from, to core.JobState, patch core.JobPatch) bool {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	var moved bool
	err := retryWithBackoff(ctx, *e.config.StorageRetry, func() error {
		var trErr error
		moved, trErr = e.client.Storage().Transition(ctx, jobID, from, to, patch)
		return trErr
	})
	if err != nil {
		// The row stays executing; the lifeline picks it up later.
		e.logger.Error("failed to record job outcome after retries",
			zap.String("job_id", jobID),
			zap.String("to", string(to)),
			zap.Error(err))
		return false
	}
	return moved
}
