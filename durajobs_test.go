package durajobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	jobs "github.com/jdziat/durajobs"
)

func newFacadeClient(t *testing.T) *jobs.Client {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	store := jobs.NewGormStore(db)
	require.NoError(t, store.Migrate(context.Background()))
	return jobs.NewClient(store)
}

func TestFacade_InsertAndQuery(t *testing.T) {
	ctx := context.Background()
	c := newFacadeClient(t)

	c.Register("send-email", func(ctx context.Context, args struct {
		To string `json:"to"`
	}) error {
		return nil
	})

	job, err := c.Insert(ctx, "send-email", map[string]string{"to": "user@example.com"},
		jobs.QueueOpt("emails"),
		jobs.Priority(2),
		jobs.MaxAttempts(5),
	)
	require.NoError(t, err)

	assert.Equal(t, "emails", job.Queue)
	assert.Equal(t, 2, job.Priority)
	assert.Equal(t, 5, job.MaxAttempts)
	assert.Equal(t, jobs.StateAvailable, job.State)

	got, err := c.Storage().GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
}

func TestFacade_ControlFlowErrors(t *testing.T) {
	base := errors.New("nope")

	var discard *jobs.DiscardError
	require.True(t, errors.As(jobs.Discard(base), &discard))

	var snooze *jobs.SnoozeError
	require.True(t, errors.As(jobs.Snooze(time.Minute, base), &snooze))
	assert.Equal(t, time.Minute, snooze.Delay)
}

func TestFacade_Schedules(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(time.Hour), jobs.Every(time.Hour).Next(now))
	assert.Equal(t, time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC), jobs.Daily(9, 0).Next(now))
}

func TestFacade_StateConstants(t *testing.T) {
	assert.True(t, jobs.StateCompleted.Terminal())
	assert.False(t, jobs.StateAvailable.Terminal())
}

func TestFacade_EngineOptionsCompile(t *testing.T) {
	c := newFacadeClient(t)
	eng := jobs.NewEngine(c,
		jobs.EngineQueue("default", 2),
		jobs.PollInterval(10*time.Millisecond),
		jobs.ShutdownGrace(time.Second),
		jobs.WithPlugins(&jobs.Pruner{MaxAge: time.Hour}, &jobs.Lifeline{RescueAfter: time.Hour}),
	)
	require.NotNil(t, eng)
	assert.Equal(t, jobs.RunStateIdle, eng.State())
}
