package polling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fastConfig(maxAttempts int) Config {
	return Config{Interval: time.Millisecond, MaxAttempts: maxAttempts}
}

func TestPoll_TerminalOnFirstAttempt(t *testing.T) {
	calls := 0
	value, err := Poll(context.Background(), fastConfig(5), func(context.Context) (string, bool, error) {
		calls++
		return "verified", true, nil
	})

	require.NoError(t, err)
	require.Equal(t, "verified", value)
	require.Equal(t, 1, calls)
}

func TestPoll_TerminalAfterPending(t *testing.T) {
	calls := 0
	value, err := Poll(context.Background(), fastConfig(10), func(context.Context) (string, bool, error) {
		calls++
		if calls < 4 {
			return "", false, nil
		}
		return "verified", true, nil
	})

	require.NoError(t, err)
	require.Equal(t, "verified", value)
	require.Equal(t, 4, calls)
}

func TestPoll_ExhaustsAttemptBudget(t *testing.T) {
	calls := 0
	_, err := Poll(context.Background(), fastConfig(3), func(context.Context) (string, bool, error) {
		calls++
		return "", false, nil
	})

	require.ErrorIs(t, err, ErrExhausted)
	require.Equal(t, 3, calls)
}

func TestPoll_ProbeErrorAborts(t *testing.T) {
	boom := errors.New("status endpoint down")
	calls := 0
	_, err := Poll(context.Background(), fastConfig(5), func(context.Context) (string, bool, error) {
		calls++
		return "", false, boom
	})

	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

func TestPoll_CancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, err := Poll(ctx, Config{Interval: time.Hour, MaxAttempts: 5}, func(context.Context) (string, bool, error) {
		cancel()
		return "", false, nil
	})

	require.ErrorIs(t, err, context.Canceled)
}
