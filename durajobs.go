// Package durajobs provides a durable, database-backed job queue.
//
// This is the main package users should import. It re-exports the public
// types from the pkg/ packages for a clean API surface.
//
// Basic usage:
//
//	// Create storage and client
//	db, _ := gorm.Open(sqlite.Open("jobs.db"), &gorm.Config{})
//	store := durajobs.NewGormStore(db)
//	store.Migrate(context.Background())
//	c := durajobs.NewClient(store)
//
//	// Register handler
//	c.Register("send-email", func(ctx context.Context, email string) error {
//	    return sendEmail(email)
//	})
//
//	// Insert job
//	c.Insert(ctx, "send-email", "user@example.com")
//
//	// Start engine
//	eng := durajobs.NewEngine(c, durajobs.EngineQueue("default", 10))
//	eng.Start(ctx)
package durajobs

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"

	"github.com/jdziat/durajobs/pkg/backoff"
	"github.com/jdziat/durajobs/pkg/client"
	"github.com/jdziat/durajobs/pkg/core"
	"github.com/jdziat/durajobs/pkg/engine"
	"github.com/jdziat/durajobs/pkg/event"
	"github.com/jdziat/durajobs/pkg/jobctx"
	"github.com/jdziat/durajobs/pkg/maintenance"
	"github.com/jdziat/durajobs/pkg/schedule"
	"github.com/jdziat/durajobs/pkg/security"
	"github.com/jdziat/durajobs/pkg/storage"
)

// Type aliases
type (
	// Job represents a unit of work to be processed.
	Job = core.Job

	// JobState is the lifecycle state of a job.
	JobState = core.JobState

	// AttemptError records one failed attempt on a job.
	AttemptError = core.AttemptError

	// Storage defines the persistence layer for jobs.
	Storage = core.Storage

	// UniqueOpts describes a uniqueness constraint resolved at insert time.
	UniqueOpts = core.UniqueOpts

	// Event is the interface for all lifecycle events.
	Event = event.Event

	// JobStarted is emitted when a job starts executing.
	JobStarted = event.JobStarted

	// JobCompleted is emitted when a job completes successfully.
	JobCompleted = event.JobCompleted

	// JobFailed is emitted when a job reaches discarded.
	JobFailed = event.JobFailed

	// JobRetrying is emitted when a failed job is scheduled for another attempt.
	JobRetrying = event.JobRetrying

	// JobCancelled is emitted when a job is cancelled.
	JobCancelled = event.JobCancelled

	// DiscardError forces a job to discarded without consuming attempts.
	DiscardError = core.DiscardError

	// SnoozeError requests a retry after an explicit delay.
	SnoozeError = core.SnoozeError

	// Client registers handlers and inserts jobs.
	Client = client.Client

	// Option modifies insert and registration options.
	Option = client.Option

	// Options holds configuration for job insertion and registration.
	Options = client.Options

	// Engine processes jobs from the store.
	Engine = engine.Engine

	// EngineOption configures an Engine.
	EngineOption = engine.EngineOption

	// RunState is the engine lifecycle state.
	RunState = engine.RunState

	// Plugin is a maintenance routine run with the engine lifecycle.
	Plugin = maintenance.Plugin

	// PeriodicJob is a recurring job definition.
	PeriodicJob = maintenance.PeriodicJob

	// Pruner deletes old terminal jobs.
	Pruner = maintenance.Pruner

	// Lifeline rescues jobs stranded in executing.
	Lifeline = maintenance.Lifeline

	// Schedule defines when a recurring job should run next.
	Schedule = schedule.Schedule

	// BackoffStrategy computes retry delays for failed jobs.
	BackoffStrategy = backoff.Strategy

	// GormStore implements Storage using GORM.
	GormStore = storage.GormStore

	// PgxStore implements Storage natively on PostgreSQL.
	PgxStore = storage.PgxStore
)

// Job state constants
const (
	StateScheduled = core.StateScheduled
	StateAvailable = core.StateAvailable
	StateExecuting = core.StateExecuting
	StateRetryable = core.StateRetryable
	StateCompleted = core.StateCompleted
	StateDiscarded = core.StateDiscarded
	StateCancelled = core.StateCancelled
)

// Engine run state constants
const (
	RunStateIdle     = engine.RunStateIdle
	RunStateRunning  = engine.RunStateRunning
	RunStateDraining = engine.RunStateDraining
	RunStateHalted   = engine.RunStateHalted
)

// Security limits
const (
	MaxKindLength         = security.MaxKindLength
	MaxArgsSize           = security.MaxArgsSize
	MaxAttemptsCeiling    = security.MaxAttemptsCeiling
	MaxConcurrency        = security.MaxConcurrency
	MaxErrorMessageLength = security.MaxErrorMessageLength
)

// Error variables
var (
	ErrInvalidKind      = core.ErrInvalidKind
	ErrKindTooLong      = core.ErrKindTooLong
	ErrInvalidQueueName = core.ErrInvalidQueueName
	ErrQueueNameTooLong = core.ErrQueueNameTooLong
	ErrArgsTooLarge     = core.ErrArgsTooLarge
	ErrJobNotFound      = core.ErrJobNotFound
	ErrInvalidConfig    = engine.ErrInvalidConfig
)

// NewClient creates a new Client with the given storage backend.
func NewClient(s Storage, opts ...client.ClientOption) *Client {
	return client.New(s, opts...)
}

// NewGormStore creates a GORM-backed store.
func NewGormStore(db *gorm.DB) *GormStore {
	return storage.NewGormStore(db)
}

// NewPgxStore creates a store running natively on a pgx connection pool.
func NewPgxStore(db *pgxpool.Pool) *PgxStore {
	return storage.NewPgxStore(db)
}

// NewEngine creates an engine for the given client.
func NewEngine(c *Client, opts ...EngineOption) *Engine {
	return engine.New(c, opts...)
}

// Discard wraps an error to indicate the job should not be retried.
func Discard(err error) error {
	return core.Discard(err)
}

// Snooze wraps an error to indicate the job should be retried after a delay.
func Snooze(d time.Duration, err error) error {
	return core.Snooze(d, err)
}

// Insert option functions

// QueueOpt sets the queue name for an inserted job.
func QueueOpt(name string) Option {
	return client.Queue(name)
}

// Priority sets the job priority (lower runs first).
func Priority(p int) Option {
	return client.Priority(p)
}

// MaxAttempts sets the attempt ceiling.
func MaxAttempts(n int) Option {
	return client.MaxAttempts(n)
}

// Delay schedules the job to run after a duration.
func Delay(d time.Duration) Option {
	return client.Delay(d)
}

// At schedules the job to run at a specific time.
func At(t time.Time) Option {
	return client.At(t)
}

// Unique suppresses insertion when a matching job already exists.
func Unique(key string, window time.Duration, states ...JobState) Option {
	return client.Unique(key, window, states...)
}

// Timeout bounds a single handler invocation. Applies at registration.
func Timeout(d time.Duration) Option {
	return client.Timeout(d)
}

// Engine option functions

// EngineQueue adds a queue to process with the given concurrency limit.
func EngineQueue(name string, concurrency int) EngineOption {
	return engine.Queue(name, concurrency)
}

// PollInterval sets the pause between claim attempts on an idle queue.
func PollInterval(d time.Duration) EngineOption {
	return engine.PollInterval(d)
}

// JobTimeout sets the default bound on a handler invocation.
func JobTimeout(d time.Duration) EngineOption {
	return engine.JobTimeout(d)
}

// ShutdownGrace sets how long draining waits for in-flight handlers.
func ShutdownGrace(d time.Duration) EngineOption {
	return engine.ShutdownGrace(d)
}

// WithBackoff sets the retry delay strategy for failed jobs.
func WithBackoff(s BackoffStrategy) EngineOption {
	return engine.WithBackoff(s)
}

// WithPlugins adds maintenance plugins to the engine lifecycle.
func WithPlugins(plugins ...Plugin) EngineOption {
	return engine.WithPlugins(plugins...)
}

// WithPeriodicJobs registers recurring jobs enqueued by this instance.
func WithPeriodicJobs(jobs ...PeriodicJob) EngineOption {
	return engine.WithPeriodicJobs(jobs...)
}

// Schedule functions

// Every creates a schedule that runs at fixed intervals.
func Every(d time.Duration) Schedule {
	return schedule.Every(d)
}

// Daily creates a schedule that runs at a specific time each day.
func Daily(hour, minute int) Schedule {
	return schedule.Daily(hour, minute)
}

// Weekly creates a schedule that runs at a specific day and time each week.
func Weekly(day time.Weekday, hour, minute int) Schedule {
	return schedule.Weekly(day, hour, minute)
}

// Cron creates a schedule from a cron expression.
func Cron(expr string) Schedule {
	return schedule.Cron(expr)
}

// JobFromContext returns the current Job from context, or nil outside a
// handler. Use this to get the job ID for logging or progress tracking.
func JobFromContext(ctx context.Context) *Job {
	return jobctx.JobFromContext(ctx)
}

// JobIDFromContext returns the current job ID from context, or empty string
// outside a handler.
func JobIDFromContext(ctx context.Context) string {
	return jobctx.JobIDFromContext(ctx)
}
