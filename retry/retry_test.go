package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecoverableError(t *testing.T) {
	base := errors.New("rate limited")
	wrapped := NewRecoverableError(base)

	require.True(t, IsRecoverable(wrapped))
	require.False(t, IsRecoverable(base))
	require.False(t, IsRecoverable(nil))
	require.True(t, errors.Is(wrapped, wrapped))
	require.ErrorIs(t, wrapped, base)
}

func TestDoSucceedsWithoutRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestDoRetriesRecoverableThenSucceeds(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return NewRecoverableError(errors.New("transient"))
		}
		return nil
	}, WithMaxRetries(5), WithBaseWait(time.Millisecond))
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDoStopsAtNonRecoverable(t *testing.T) {
	calls := 0
	sentinel := errors.New("bad request")
	err := Do(context.Background(), func() error {
		calls++
		return sentinel
	}, WithMaxRetries(5), WithBaseWait(time.Millisecond))
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, 1, calls)
}

func TestDoExhaustsRetries(t *testing.T) {
	calls := 0
	sentinel := errors.New("still failing")
	err := Do(context.Background(), func() error {
		calls++
		return NewRecoverableError(sentinel)
	}, WithMaxRetries(3), WithBaseWait(time.Millisecond))
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, 3, calls)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, func() error {
		calls++
		return NewRecoverableError(errors.New("transient"))
	}, WithMaxRetries(5), WithBaseWait(time.Second))
	require.Error(t, err)
	require.Equal(t, 1, calls)
}
