package retry_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/oslocurrency/oslocrawler-ws/internal/platform/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastPolicy = retry.Policy{
	MaxAttempts:    3,
	InitialBackoff: time.Millisecond,
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	val, err := retry.Do(context.Background(), clockwork.NewRealClock(), fastPolicy, func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, val)
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	calls := 0
	val, err := retry.Do(context.Background(), clockwork.NewRealClock(), fastPolicy, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	transient := errors.New("connection refused")
	calls := 0
	_, err := retry.Do(context.Background(), clockwork.NewRealClock(), fastPolicy, func(context.Context) (struct{}, error) {
		calls++
		return struct{}{}, transient
	})
	require.ErrorIs(t, err, transient)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	bad := errors.New("invalid URL")
	calls := 0
	_, err := retry.Do(context.Background(), clockwork.NewRealClock(), fastPolicy, func(context.Context) (struct{}, error) {
		calls++
		return struct{}{}, retry.Permanent(bad)
	})

	var permErr *retry.PermanentError
	require.ErrorAs(t, err, &permErr)
	assert.ErrorIs(t, err, bad)
	assert.Equal(t, 1, calls)
}

func TestDo_BackoffDoublesUpToCap(t *testing.T) {
	var backoffs []time.Duration
	p := retry.Policy{
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     3 * time.Millisecond,
		OnRetry: func(_ int, _ error, backoff time.Duration) {
			backoffs = append(backoffs, backoff)
		},
	}

	_, _ = retry.Do(context.Background(), clockwork.NewRealClock(), p, func(context.Context) (struct{}, error) {
		return struct{}{}, errors.New("transient")
	})

	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond, 3 * time.Millisecond}, backoffs)
}

func TestDo_WaitsOnClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := retry.Policy{MaxAttempts: 2, InitialBackoff: time.Minute}

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		_, err := retry.Do(context.Background(), clock, p, func(context.Context) (struct{}, error) {
			if calls.Add(1) == 1 {
				return struct{}{}, errors.New("transient")
			}
			return struct{}{}, nil
		})
		done <- err
	}()

	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	assert.Equal(t, int32(1), calls.Load())

	clock.Advance(time.Minute)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not resume after the backoff elapsed")
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := retry.Policy{MaxAttempts: 3, InitialBackoff: time.Hour}

	_, err := retry.Do(ctx, clockwork.NewRealClock(), p, func(context.Context) (struct{}, error) {
		cancel()
		return struct{}{}, errors.New("transient")
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDo_InvalidPolicy(t *testing.T) {
	_, err := retry.Do(context.Background(), clockwork.NewRealClock(), retry.Policy{}, func(context.Context) (struct{}, error) {
		return struct{}{}, nil
	})
	assert.Error(t, err)
}
