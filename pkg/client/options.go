package client

import (
	"time"

	"github.com/jdziat/durajobs/pkg/core"
)

// Options holds configuration for job insertion and registration.
type Options struct {
	Queue       string
	Priority    int
	MaxAttempts int
	Delay       time.Duration
	RunAt       *time.Time
	Unique      *core.UniqueOpts
	Timeout     time.Duration
}

// NewOptions creates Options with defaults.
func NewOptions() *Options {
	return &Options{
		Queue:       "default",
		MaxAttempts: DefaultMaxAttempts,
	}
}

// DefaultMaxAttempts is the attempt ceiling applied when none is specified.
const DefaultMaxAttempts = 3

// Option modifies Options.
type Option interface {
	Apply(*Options)
}

type optionFunc func(*Options)

func (f optionFunc) Apply(o *Options) { f(o) }

// Queue sets the queue name.
func Queue(name string) Option {
	return optionFunc(func(o *Options) {
		o.Queue = name
	})
}

// Priority sets the job priority (lower runs first).
func Priority(p int) Option {
	return optionFunc(func(o *Options) {
		o.Priority = p
	})
}

// MaxAttempts sets the attempt ceiling.
func MaxAttempts(n int) Option {
	return optionFunc(func(o *Options) {
		o.MaxAttempts = n
	})
}

// Delay schedules the job to run after a duration.
func Delay(d time.Duration) Option {
	return optionFunc(func(o *Options) {
		o.Delay = d
	})
}

// At schedules the job to run at a specific time.
func At(t time.Time) Option {
	return optionFunc(func(o *Options) {
		o.RunAt = &t
	})
}

// Unique suppresses insertion when a job with the same key exists in a
// non-terminal state within the window. Zero window means any age.
func Unique(key string, window time.Duration, states ...core.JobState) Option {
	return optionFunc(func(o *Options) {
		o.Unique = &core.UniqueOpts{Key: key, Window: window, States: states}
	})
}

// Timeout bounds a single handler invocation. Applies at registration.
func Timeout(d time.Duration) Option {
	return optionFunc(func(o *Options) {
		o.Timeout = d
	})
}
