package breaker

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNotFound = errors.New("not found")

func testConfig(name string) Config {
	return Config{
		Name:         name,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      50 * time.Millisecond,
		FailureRatio: 0.5,
		MinRequests:  3,
	}
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func gaugeValue(t *testing.T, name string) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, stateGauge.WithLabelValues(name).Write(&m))
	return m.GetGauge().GetValue()
}

func fail() (int, error) { return 0, errors.New("boom") }

func TestNew_TripsAfterFailureRatio(t *testing.T) {
	cb := New[int](testConfig("trip"), quiet())

	for i := 0; i < 3; i++ {
		_, err := cb.Execute(fail)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())
	assert.Equal(t, 2.0, gaugeValue(t, "trip"))

	_, err := cb.Execute(func() (int, error) { return 1, nil })
	assert.ErrorIs(t, err, ErrOpen)
}

func TestNew_BelowMinRequestsStaysClosed(t *testing.T) {
	cb := New[int](testConfig("min"), quiet())
	_, _ = cb.Execute(fail)
	_, _ = cb.Execute(fail)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestNew_HalfOpenRecovers(t *testing.T) {
	cb := New[int](testConfig("recover"), quiet())
	for i := 0; i < 3; i++ {
		_, _ = cb.Execute(fail)
	}
	require.Equal(t, gobreaker.StateOpen, cb.State())

	time.Sleep(60 * time.Millisecond)
	v, err := cb.Execute(func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestNew_IsSuccessfulExcludesErrors(t *testing.T) {
	cfg := testConfig("classify")
	cfg.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, errNotFound) }
	cb := New[int](cfg, quiet())

	for i := 0; i < 5; i++ {
		_, err := cb.Execute(func() (int, error) { return 0, errNotFound })
		assert.ErrorIs(t, err, errNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestStateValue(t *testing.T) {
	assert.Equal(t, 0.0, StateValue(gobreaker.StateClosed))
	assert.Equal(t, 1.0, StateValue(gobreaker.StateHalfOpen))
	assert.Equal(t, 2.0, StateValue(gobreaker.StateOpen))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("search")
	assert.Equal(t, "search", cfg.Name)
	assert.Equal(t, uint32(5), cfg.MinRequests)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}
