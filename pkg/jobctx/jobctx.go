// Package jobctx provides access to the current job from handler contexts.
package jobctx

import (
	"context"

	"github.com/jdziat/durajobs/pkg/core"
)

type ctxKey struct{}

// WithJob attaches a job to the context. Called by the engine before
// invoking a handler; handlers should not need this.
func WithJob(ctx context.Context, job *core.Job) context.Context {
	return context.WithValue(ctx, ctxKey{}, job)
}

// JobFromContext returns the current Job from context, or nil if not in a
// job handler. Use this to get the job ID for logging or progress tracking.
func JobFromContext(ctx context.Context) *core.Job {
	job, _ := ctx.Value(ctxKey{}).(*core.Job)
	return job
}

// JobIDFromContext returns the current job ID from context, or empty string
// if not in a job handler.
func JobIDFromContext(ctx context.Context) string {
	job := JobFromContext(ctx)
	if job == nil {
		return ""
	}
	return job.ID
}
