package retry_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amoradev/amora/internal/utils/retry"
)

func TestPollFirstHitWins(t *testing.T) {
	calls := 0
	v, ok, err := retry.Poll(context.Background(), 5, time.Millisecond, func(ctx context.Context) (string, bool, error) {
		calls++
		if calls == 3 {
			return "found", true, nil
		}
		return "", false, fmt.Errorf("miss %d", calls)
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "found", v)
	assert.Equal(t, 3, calls)
}

func TestPollExhaustionReturnsLastError(t *testing.T) {
	calls := 0
	_, ok, err := retry.Poll(context.Background(), 3, time.Millisecond, func(ctx context.Context) (int, bool, error) {
		calls++
		return 0, false, fmt.Errorf("miss %d", calls)
	})
	assert.False(t, ok)
	assert.EqualError(t, err, "miss 3")
	assert.Equal(t, 3, calls)
}

func TestPollExhaustionWithoutError(t *testing.T) {
	_, ok, err := retry.Poll(context.Background(), 2, time.Millisecond, func(ctx context.Context) (int, bool, error) {
		return 0, false, nil
	})
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestPollStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, ok, err := retry.Poll(ctx, 10, 50*time.Millisecond, func(ctx context.Context) (int, bool, error) {
		calls++
		cancel()
		return 0, false, nil
	})
	assert.False(t, ok)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
