package client

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jdziat/durajobs/pkg/core"
	"github.com/jdziat/durajobs/pkg/event"
	"github.com/jdziat/durajobs/pkg/storage"
)

type emailArgs struct {
	To string `json:"to"`
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	s := storage.NewGormStore(db)
	require.NoError(t, s.Migrate(context.Background()))
	return New(s)
}

func registerNoop(t *testing.T, c *Client, kind string, opts ...Option) {
	t.Helper()
	c.Register(kind, func(ctx context.Context, _ emailArgs) error { return nil }, opts...)
}

// ---------------------------------------------------------------------------
// Register
// ---------------------------------------------------------------------------

func TestRegister_ValidHandler(t *testing.T) {
	c := newTestClient(t)

	registerNoop(t, c, "send-email")

	assert.True(t, c.HasHandler("send-email"))
	assert.False(t, c.HasHandler("other"))
}

func TestRegister_PanicsOnInvalidKind(t *testing.T) {
	c := newTestClient(t)

	assert.Panics(t, func() {
		registerNoop(t, c, "bad kind with spaces")
	})
}

func TestRegister_PanicsOnInvalidHandler(t *testing.T) {
	c := newTestClient(t)

	assert.Panics(t, func() {
		c.Register("send-email", "not a function")
	})
}

func TestRegister_TimeoutOptionApplies(t *testing.T) {
	c := newTestClient(t)

	registerNoop(t, c, "slow-job", Timeout(5*time.Second))

	h, ok := c.Handler("slow-job")
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, h.Timeout)
}

// ---------------------------------------------------------------------------
// Insert
// ---------------------------------------------------------------------------

func TestInsert_CreatesAvailableJob(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	registerNoop(t, c, "send-email")

	job, err := c.Insert(ctx, "send-email", emailArgs{To: "user@example.com"})
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "send-email", job.Kind)
	assert.Equal(t, "default", job.Queue)
	assert.Equal(t, core.StateAvailable, job.State)
	assert.Equal(t, DefaultMaxAttempts, job.MaxAttempts)
	assert.JSONEq(t, `{"to":"user@example.com"}`, string(job.Args))
}

func TestInsert_UnregisteredKindRejected(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	_, err := c.Insert(ctx, "no-such-kind", emailArgs{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no handler registered")
}

func TestInsert_InvalidQueueRejected(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	registerNoop(t, c, "send-email")

	_, err := c.Insert(ctx, "send-email", emailArgs{}, Queue("bad queue"))
	assert.ErrorIs(t, err, core.ErrInvalidQueueName)
}

func TestInsert_OversizedArgsRejected(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	registerNoop(t, c, "send-email")

	huge := emailArgs{To: strings.Repeat("x", 2<<20)}
	_, err := c.Insert(ctx, "send-email", huge)
	assert.ErrorIs(t, err, core.ErrArgsTooLarge)
}

func TestInsert_DelaySchedulesJob(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	registerNoop(t, c, "send-email")

	job, err := c.Insert(ctx, "send-email", emailArgs{}, Delay(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, core.StateScheduled, job.State)
	assert.WithinDuration(t, time.Now().Add(time.Hour), job.ScheduledAt, 5*time.Second)
}

func TestInsert_AtSchedulesJob(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	registerNoop(t, c, "send-email")

	runAt := time.Now().Add(30 * time.Minute)
	job, err := c.Insert(ctx, "send-email", emailArgs{}, At(runAt))
	require.NoError(t, err)

	assert.Equal(t, core.StateScheduled, job.State)
	assert.WithinDuration(t, runAt, job.ScheduledAt, time.Second)
}

func TestInsert_MaxAttemptsClamped(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	registerNoop(t, c, "send-email")

	job, err := c.Insert(ctx, "send-email", emailArgs{}, MaxAttempts(10000))
	require.NoError(t, err)

	assert.Equal(t, 100, job.MaxAttempts)
}

func TestInsert_UniqueSuppressesDuplicate(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	registerNoop(t, c, "report.daily")

	first, err := c.Insert(ctx, "report.daily", emailArgs{}, Unique("report:today", 0))
	require.NoError(t, err)

	second, err := c.Insert(ctx, "report.daily", emailArgs{}, Unique("report:today", 0))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "duplicate returns the existing job")

	counts, err := c.Storage().CountByState(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[core.StateAvailable])
}

func TestInsert_UniqueKeyTooLong(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	registerNoop(t, c, "report.daily")

	_, err := c.Insert(ctx, "report.daily", emailArgs{}, Unique(strings.Repeat("k", 300), 0))
	assert.ErrorIs(t, err, core.ErrUniqueKeyTooLong)
}

// ---------------------------------------------------------------------------
// Cancel
// ---------------------------------------------------------------------------

func TestCancel_EmitsEvent(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	registerNoop(t, c, "send-email")

	job, err := c.Insert(ctx, "send-email", emailArgs{})
	require.NoError(t, err)

	events := c.Events()
	defer c.Unsubscribe(events)

	got, err := c.Cancel(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateCancelled, got.State)

	select {
	case ev := <-events:
		cancelled, ok := ev.(*event.JobCancelled)
		require.True(t, ok)
		assert.Equal(t, job.ID, cancelled.Job.ID)
	case <-time.After(time.Second):
		t.Fatal("no JobCancelled event")
	}
}

func TestCancel_TerminalJobNoEvent(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	registerNoop(t, c, "send-email")

	job, err := c.Insert(ctx, "send-email", emailArgs{})
	require.NoError(t, err)
	_, err = c.Cancel(ctx, job.ID)
	require.NoError(t, err)

	events := c.Events()
	defer c.Unsubscribe(events)

	// Second cancel is a no-op: the row is already terminal.
	got, err := c.Cancel(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateCancelled, got.State)

	select {
	case <-events:
		t.Fatal("no event should fire for an already terminal job")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCancel_MissingJob(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	_, err := c.Cancel(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrJobNotFound)
}
