package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	repomem "github.com/utafrali/storefront/internal/repository/memory"
)

// countingSyncer fails the first failures calls for every pid.
type countingSyncer struct {
	mu       sync.Mutex
	calls    map[string]int
	failures int
}

func newCountingSyncer(failures int) *countingSyncer {
	return &countingSyncer{calls: make(map[string]int), failures: failures}
}

func (c *countingSyncer) Resync(_ context.Context, pid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[pid]++
	if c.calls[pid] <= c.failures {
		return errors.New("index still down")
	}
	return nil
}

func (c *countingSyncer) count(pid string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[pid]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRelay(outbox *repomem.OutboxRepository, syncer Syncer, cfg RelayConfig) (*Relay, *fakeClock) {
	clock := &fakeClock{now: time.Now().Add(time.Second)}
	r := NewRelay(outbox, syncer, cfg, newTestLogger())
	r.now = clock.Now
	return r, clock
}

func TestRelay_Backoff(t *testing.T) {
	r := NewRelay(repomem.NewOutboxRepository(), newCountingSyncer(0), RelayConfig{
		BaseBackoff: time.Second,
		MaxBackoff:  4 * time.Second,
	}, newTestLogger())

	assert.Equal(t, time.Second, r.backoff(1))
	assert.Equal(t, 2*time.Second, r.backoff(2))
	assert.Equal(t, 4*time.Second, r.backoff(3))
	assert.Equal(t, 4*time.Second, r.backoff(10))
}

func TestRelay_RetriesUntilSuccess(t *testing.T) {
	ctx := context.Background()
	outbox := repomem.NewOutboxRepository()
	syncer := newCountingSyncer(2)
	r, clock := newTestRelay(outbox, syncer, RelayConfig{MaxAttempts: 5, BaseBackoff: time.Minute, MaxBackoff: time.Hour})

	require.NoError(t, outbox.Enqueue(ctx, "P0001", domain.IndexOpUpsert, "index down"))

	done, err := r.Drain(ctx)
	require.NoError(t, err)
	assert.Zero(t, done)

	// Not due yet.
	done, err = r.Drain(ctx)
	require.NoError(t, err)
	assert.Zero(t, done)
	assert.Equal(t, 1, syncer.count("P0001"))

	clock.Advance(time.Minute)
	_, err = r.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, syncer.count("P0001"))

	clock.Advance(2 * time.Minute)
	done, err = r.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, done)

	stats, err := r.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.OutboxStats{}, stats)
}

func TestRelay_DeadLetter(t *testing.T) {
	ctx := context.Background()
	outbox := repomem.NewOutboxRepository()
	syncer := newCountingSyncer(100)
	r, clock := newTestRelay(outbox, syncer, RelayConfig{MaxAttempts: 3, BaseBackoff: time.Second, MaxBackoff: time.Second})

	require.NoError(t, outbox.Enqueue(ctx, "P0001", domain.IndexOpUpsert, "index down"))
	for i := 0; i < 5; i++ {
		_, err := r.Drain(ctx)
		require.NoError(t, err)
		clock.Advance(time.Hour)
	}

	assert.Equal(t, 3, syncer.count("P0001"), "dead tasks are not replayed")
	stats, err := r.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.OutboxStats{DeadLetter: 1}, stats)
}

func TestRelay_DrainsMultipleBatches(t *testing.T) {
	ctx := context.Background()
	outbox := repomem.NewOutboxRepository()
	syncer := newCountingSyncer(0)
	r, _ := newTestRelay(outbox, syncer, RelayConfig{BatchSize: 2, MaxAttempts: 3})

	for _, pid := range []string{"P0001", "P0002", "P0003", "P0004", "P0005"} {
		require.NoError(t, outbox.Enqueue(ctx, pid, domain.IndexOpUpsert, "index down"))
	}

	done, err := r.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, done)
}

func TestRelay_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	outbox := repomem.NewOutboxRepository()
	syncer := newCountingSyncer(0)
	r, _ := newTestRelay(outbox, syncer, RelayConfig{PollInterval: 10 * time.Millisecond, MaxAttempts: 3})

	require.NoError(t, outbox.Enqueue(ctx, "P0001", domain.IndexOpUpsert, "index down"))

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	assert.Eventually(t, func() bool { return syncer.count("P0001") == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
