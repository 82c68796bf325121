package handler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testArgs struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// ---------------------------------------------------------------------------
// NewHandler - nil / non-function rejection
// ---------------------------------------------------------------------------

func TestNewHandler_RejectsNil(t *testing.T) {
	_, err := NewHandler(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil")
}

func TestNewHandler_RejectsTypedNil(t *testing.T) {
	var fn func(ctx context.Context, args string) error = nil
	_, err := NewHandler(fn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil")
}

func TestNewHandler_RejectsNonFunction(t *testing.T) {
	_, err := NewHandler("not a function")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "function")

	_, err = NewHandler(42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "function")
}

// ---------------------------------------------------------------------------
// NewHandler - signature validation
// ---------------------------------------------------------------------------

func TestNewHandler_RejectsZeroArgs(t *testing.T) {
	fn := func() error { return nil }
	_, err := NewHandler(fn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1-2 arguments")
}

func TestNewHandler_RejectsThreeArgs(t *testing.T) {
	fn := func(_ context.Context, _ string, _ int) error { return nil }
	_, err := NewHandler(fn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1-2 arguments")
}

func TestNewHandler_RejectsNoReturnValues(t *testing.T) {
	fn := func(_ context.Context, _ string) {}
	_, err := NewHandler(fn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "return")
}

func TestNewHandler_RejectsNonErrorReturn(t *testing.T) {
	fn := func(_ context.Context, _ string) string { return "" }
	_, err := NewHandler(fn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "return")
}

func TestNewHandler_AcceptsValidFunction(t *testing.T) {
	fn := func(ctx context.Context, args testArgs) error { return nil }
	h, err := NewHandler(fn)
	require.NoError(t, err)
	assert.True(t, h.HasContext)
	assert.NotNil(t, h.ArgsType)
}

func TestNewHandler_AcceptsArgsOnly(t *testing.T) {
	fn := func(args testArgs) error { return nil }
	h, err := NewHandler(fn)
	require.NoError(t, err)
	assert.False(t, h.HasContext)
}

// ---------------------------------------------------------------------------
// Execute
// ---------------------------------------------------------------------------

func TestExecute_UnmarshalsArgs(t *testing.T) {
	var got testArgs
	fn := func(ctx context.Context, args testArgs) error {
		got = args
		return nil
	}
	h, err := NewHandler(fn)
	require.NoError(t, err)

	err = h.Execute(context.Background(), []byte(`{"name":"widget","value":7}`))
	require.NoError(t, err)
	assert.Equal(t, testArgs{Name: "widget", Value: 7}, got)
}

func TestExecute_PropagatesError(t *testing.T) {
	want := errors.New("handler failed")
	fn := func(ctx context.Context, _ testArgs) error { return want }
	h, err := NewHandler(fn)
	require.NoError(t, err)

	err = h.Execute(context.Background(), []byte(`{}`))
	assert.ErrorIs(t, err, want)
}

func TestExecute_InvalidJSON(t *testing.T) {
	fn := func(ctx context.Context, _ testArgs) error { return nil }
	h, err := NewHandler(fn)
	require.NoError(t, err)

	err = h.Execute(context.Background(), []byte(`not json`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestExecute_ReceivesContext(t *testing.T) {
	type ctxKey struct{}
	var got any
	fn := func(ctx context.Context, _ struct{}) error {
		got = ctx.Value(ctxKey{})
		return nil
	}
	h, err := NewHandler(fn)
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), ctxKey{}, "marker")
	require.NoError(t, h.Execute(ctx, []byte(`{}`)))
	assert.Equal(t, "marker", got)
}

func TestHandler_TimeoutField(t *testing.T) {
	fn := func(ctx context.Context, _ struct{}) error { return nil }
	h, err := NewHandler(fn)
	require.NoError(t, err)

	assert.Zero(t, h.Timeout)
	h.Timeout = 5 * time.Second
	assert.Equal(t, 5*time.Second, h.Timeout)
}
