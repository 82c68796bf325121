package engine

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jdziat/durajobs/pkg/backoff"
	"github.com/jdziat/durajobs/pkg/maintenance"
	"github.com/jdziat/durajobs/pkg/security"
)

// ErrInvalidConfig is returned by Start for configuration the engine cannot
// run with. Configuration problems are fatal at startup only.
var ErrInvalidConfig = errors.New("jobs: invalid engine configuration")

// Config holds engine configuration.
type Config struct {
	// Queues maps queue name to concurrency limit.
	Queues map[string]int

	// PollInterval is the pause between claim attempts on an idle queue.
	// Default: 100ms
	PollInterval time.Duration

	// ClientID identifies this engine instance in claimed rows.
	// Default: a fresh UUID.
	ClientID string

	// JobTimeout bounds a handler invocation when the handler was
	// registered without its own timeout. Zero means unbounded.
	JobTimeout time.Duration

	// ShutdownGrace is how long draining waits for in-flight handlers.
	// Default: 30s
	ShutdownGrace time.Duration

	// Backoff computes retry delays for failed jobs.
	// Default: backoff.Default()
	Backoff backoff.Strategy

	// StorageRetry configures retries for outcome-recording store calls.
	StorageRetry *RetryConfig

	// ClaimRetry configures retries for claim polls. Uses longer backoff
	// to avoid hammering the store during outages.
	ClaimRetry *RetryConfig

	// Plugins are extra maintenance plugins run with the engine lifecycle.
	// A Scheduler promoting due jobs is always run.
	Plugins []maintenance.Plugin

	// PeriodicJobs are recurring jobs enqueued by this instance.
	PeriodicJobs []maintenance.PeriodicJob
}

func (c *Config) validate() error {
	for name, concurrency := range c.Queues {
		if err := security.ValidateQueueName(name); err != nil {
			return fmt.Errorf("%w: queue %q: %v", ErrInvalidConfig, name, err)
		}
		if concurrency < 1 {
			return fmt.Errorf("%w: queue %q: concurrency must be positive, got %d",
				ErrInvalidConfig, name, concurrency)
		}
		if concurrency > security.MaxConcurrency {
			return fmt.Errorf("%w: queue %q: concurrency %d exceeds limit %d",
				ErrInvalidConfig, name, concurrency, security.MaxConcurrency)
		}
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("%w: poll interval must not be negative", ErrInvalidConfig)
	}
	if c.ShutdownGrace < 0 {
		return fmt.Errorf("%w: shutdown grace must not be negative", ErrInvalidConfig)
	}
	return nil
}

// EngineOption configures an Engine.
type EngineOption interface {
	ApplyEngine(*Engine)
}

type engineOptionFunc func(*Engine)

func (f engineOptionFunc) ApplyEngine(e *Engine) { f(e) }

// Queue adds a queue to process with the given concurrency limit.
func Queue(name string, concurrency int) EngineOption {
	return engineOptionFunc(func(e *Engine) {
		if e.config.Queues == nil {
			e.config.Queues = make(map[string]int)
		}
		e.config.Queues[name] = concurrency
	})
}

// PollInterval sets the pause between claim attempts on an idle queue.
func PollInterval(d time.Duration) EngineOption {
	return engineOptionFunc(func(e *Engine) {
		e.config.PollInterval = d
	})
}

// JobTimeout sets the default bound on a handler invocation.
func JobTimeout(d time.Duration) EngineOption {
	return engineOptionFunc(func(e *Engine) {
		e.config.JobTimeout = d
	})
}

// ShutdownGrace sets how long draining waits for in-flight handlers.
func ShutdownGrace(d time.Duration) EngineOption {
	return engineOptionFunc(func(e *Engine) {
		e.config.ShutdownGrace = d
	})
}

// WithBackoff sets the retry delay strategy for failed jobs.
func WithBackoff(s backoff.Strategy) EngineOption {
	return engineOptionFunc(func(e *Engine) {
		e.config.Backoff = s
	})
}

// WithPlugins adds maintenance plugins to the engine lifecycle.
func WithPlugins(plugins ...maintenance.Plugin) EngineOption {
	return engineOptionFunc(func(e *Engine) {
		e.config.Plugins = append(e.config.Plugins, plugins...)
	})
}

// WithPeriodicJobs registers recurring jobs enqueued by this instance.
func WithPeriodicJobs(jobs ...maintenance.PeriodicJob) EngineOption {
	return engineOptionFunc(func(e *Engine) {
		e.config.PeriodicJobs = append(e.config.PeriodicJobs, jobs...)
	})
}

// WithEngineLogger sets the engine logger.
func WithEngineLogger(l *zap.Logger) EngineOption {
	return engineOptionFunc(func(e *Engine) {
		e.logger = l
	})
}

// WithStorageRetry overrides the retry policy for outcome-recording calls.
func WithStorageRetry(cfg RetryConfig) EngineOption {
	return engineOptionFunc(func(e *Engine) {
		e.config.StorageRetry = &cfg
	})
}
