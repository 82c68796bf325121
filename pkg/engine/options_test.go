package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jdziat/durajobs/pkg/backoff"
)

func TestConfig_ValidateAcceptsDefaults(t *testing.T) {
	cfg := Config{
		Queues:        map[string]int{"default": 10},
		PollInterval:  100 * time.Millisecond,
		ShutdownGrace: 30 * time.Second,
	}
	assert.NoError(t, cfg.validate())
}

func TestConfig_ValidateRejectsBadQueueName(t *testing.T) {
	cfg := Config{Queues: map[string]int{"bad queue": 1}}
	assert.ErrorIs(t, cfg.validate(), ErrInvalidConfig)
}

func TestConfig_ValidateRejectsBadConcurrency(t *testing.T) {
	cfg := Config{Queues: map[string]int{"default": 0}}
	assert.ErrorIs(t, cfg.validate(), ErrInvalidConfig)

	cfg = Config{Queues: map[string]int{"default": 100000}}
	assert.ErrorIs(t, cfg.validate(), ErrInvalidConfig)
}

func TestConfig_ValidateRejectsNegativeIntervals(t *testing.T) {
	cfg := Config{Queues: map[string]int{"default": 1}, PollInterval: -time.Second}
	assert.ErrorIs(t, cfg.validate(), ErrInvalidConfig)

	cfg = Config{Queues: map[string]int{"default": 1}, ShutdownGrace: -time.Second}
	assert.ErrorIs(t, cfg.validate(), ErrInvalidConfig)
}

func TestNew_AppliesDefaults(t *testing.T) {
	e := New(nil)

	assert.Equal(t, 100*time.Millisecond, e.config.PollInterval)
	assert.Equal(t, 30*time.Second, e.config.ShutdownGrace)
	assert.NotEmpty(t, e.config.ClientID)
	assert.Equal(t, map[string]int{"default": 10}, e.config.Queues)
	assert.NotNil(t, e.config.Backoff)
	assert.NotNil(t, e.config.StorageRetry)
	assert.NotNil(t, e.config.ClaimRetry)
}

func TestNew_OptionsOverrideDefaults(t *testing.T) {
	strategy := backoff.NewConstant(time.Second)
	e := New(nil,
		Queue("emails", 5),
		Queue("reports", 2),
		PollInterval(time.Second),
		JobTimeout(time.Minute),
		ShutdownGrace(5*time.Second),
		WithBackoff(strategy),
	)

	assert.Equal(t, map[string]int{"emails": 5, "reports": 2}, e.config.Queues)
	assert.Equal(t, time.Second, e.config.PollInterval)
	assert.Equal(t, time.Minute, e.config.JobTimeout)
	assert.Equal(t, 5*time.Second, e.config.ShutdownGrace)
	assert.Same(t, strategy, e.config.Backoff)
}

func TestEngine_SchedulerIntervalTracksPolling(t *testing.T) {
	e := New(nil, PollInterval(50*time.Millisecond))
	assert.Equal(t, 50*time.Millisecond, e.schedulerInterval())

	e = New(nil, PollInterval(5*time.Second))
	assert.Equal(t, time.Second, e.schedulerInterval())
}
