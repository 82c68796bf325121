// Package event provides typed lifecycle notifications and the fan-out
// emitter that delivers them to subscribers without ever blocking the
// emitting operation.
package event

import (
	"time"

	"github.com/jdziat/durajobs/pkg/core"
)

// Event is the interface for all lifecycle events.
type Event interface {
	eventMarker()
}

// EngineStarted is emitted when an engine instance begins processing.
type EngineStarted struct {
	ClientID  string
	Queues    []string
	Timestamp time.Time
}

func (*EngineStarted) eventMarker() {}

// EngineStopped is emitted when an engine instance halts. Abandoned counts
// handler invocations still running when the grace period expired.
type EngineStopped struct {
	ClientID  string
	Abandoned int
	Timestamp time.Time
}

func (*EngineStopped) eventMarker() {}

// BatchClaimed is emitted after each non-empty claim batch.
type BatchClaimed struct {
	Queue     string
	Count     int
	Timestamp time.Time
}

func (*BatchClaimed) eventMarker() {}

// JobStarted is emitted when a job starts executing.
type JobStarted struct {
	Job       *core.Job
	Timestamp time.Time
}

func (*JobStarted) eventMarker() {}

// JobCompleted is emitted when a job completes successfully.
type JobCompleted struct {
	Job       *core.Job
	Duration  time.Duration
	Timestamp time.Time
}

func (*JobCompleted) eventMarker() {}

// JobFailed is emitted when a job reaches discarded, either by exhausting
// its attempts or via a force discard.
type JobFailed struct {
	Job       *core.Job
	Error     error
	Duration  time.Duration
	Timestamp time.Time
}

func (*JobFailed) eventMarker() {}

// JobRetrying is emitted when a failed job is scheduled for another attempt.
type JobRetrying struct {
	Job       *core.Job
	Attempt   int
	Error     error
	NextRunAt time.Time
	Timestamp time.Time
}

func (*JobRetrying) eventMarker() {}

// JobCancelled is emitted when a job is cancelled by an external request.
type JobCancelled struct {
	Job       *core.Job
	Timestamp time.Time
}

func (*JobCancelled) eventMarker() {}

// PluginTickStarted is emitted when a maintenance plugin tick begins.
type PluginTickStarted struct {
	Plugin    string
	Timestamp time.Time
}

func (*PluginTickStarted) eventMarker() {}

// PluginTickCompleted is emitted when a maintenance plugin tick finishes.
type PluginTickCompleted struct {
	Plugin    string
	Duration  time.Duration
	Error     error
	Timestamp time.Time
}

func (*PluginTickCompleted) eventMarker() {}
