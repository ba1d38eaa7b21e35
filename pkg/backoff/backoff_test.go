package backoff_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"skyreach/pkg/backoff"
)

var errBoom = errors.New("boom")

func TestDoSucceedsFirstAttempt(t *testing.T) {
	t.Parallel()

	calls := 0

	err := backoff.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}.Do(t.Context(), func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	calls := 0

	err := backoff.Policy{MaxAttempts: 5, BaseDelay: time.Millisecond}.Do(t.Context(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	t.Parallel()

	calls := 0

	err := backoff.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}.Do(t.Context(), func(context.Context) error {
		calls++
		return errBoom
	})

	require.ErrorIs(t, err, backoff.ErrRetriesExhausted)
	require.ErrorIs(t, err, errBoom)
	require.Equal(t, 3, calls)
}

func TestDoRespectsBudget(t *testing.T) {
	t.Parallel()

	calls := 0

	err := backoff.Policy{
		MaxAttempts: 100,
		Budget:      10 * time.Millisecond,
		BaseDelay:   time.Hour,
	}.Do(t.Context(), func(context.Context) error {
		calls++
		return errBoom
	})

	require.ErrorIs(t, err, backoff.ErrRetriesExhausted)
	require.Equal(t, 1, calls)
}

func TestDoStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())

	err := backoff.Policy{MaxAttempts: 5, BaseDelay: time.Hour}.Do(ctx, func(context.Context) error {
		cancel()
		return errBoom
	})

	require.ErrorIs(t, err, context.Canceled)
}
