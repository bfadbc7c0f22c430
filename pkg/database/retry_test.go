package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryBackoff_Bounds(t *testing.T) {
	for attempt, base := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		for i := 0; i < 20; i++ {
			wait := retryBackoff(attempt)
			assert.GreaterOrEqual(t, wait, base*3/4)
			assert.LessOrEqual(t, wait, base*5/4)
		}
	}
}

func TestRetryBackoff_NegativeAttempt(t *testing.T) {
	wait := retryBackoff(-1)
	assert.GreaterOrEqual(t, wait, 750*time.Millisecond)
	assert.LessOrEqual(t, wait, 1250*time.Millisecond)
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), true},
		{errors.New("read: connection reset by peer"), true},
		{errors.New("unexpected EOF"), true},
		{errors.New(`ERROR: duplicate key value violates unique constraint "products_pkey" (SQLSTATE 23505)`), false},
		{errors.New("syntax error at or near"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isConnectionError(tt.err), "%v", tt.err)
	}
}

func TestConnectWithRetry_FirstAttempt(t *testing.T) {
	calls := 0
	v, err := connectWithRetry(context.Background(), "test", nil, func(context.Context) (int, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)
}

func TestConnectWithRetry_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := connectWithRetry(ctx, "test", nil, func(context.Context) (string, error) {
		calls++
		return "", errors.New("connection refused")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
