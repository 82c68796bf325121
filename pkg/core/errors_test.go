package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscard_WrapsError(t *testing.T) {
	base := errors.New("bad payload")
	err := Discard(base)

	var discard *DiscardError
	require.True(t, errors.As(err, &discard))
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "bad payload")
}

func TestSnooze_WrapsErrorWithDelay(t *testing.T) {
	base := errors.New("rate limited")
	err := Snooze(5*time.Minute, base)

	var snooze *SnoozeError
	require.True(t, errors.As(err, &snooze))
	assert.Equal(t, 5*time.Minute, snooze.Delay)
	assert.ErrorIs(t, err, base)
}

func TestSnooze_NotADiscard(t *testing.T) {
	err := Snooze(time.Second, errors.New("later"))

	var discard *DiscardError
	assert.False(t, errors.As(err, &discard))
}
