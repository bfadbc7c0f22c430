package kafka

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodedMessage(t *testing.T, topic, pid string) kafka.Message {
	t.Helper()
	event, err := NewEvent("product.updated", pid, "product", "storefront", nil)
	require.NoError(t, err)
	raw, err := event.Marshal()
	require.NoError(t, err)
	return kafka.Message{Topic: topic, Key: []byte(pid), Value: raw}
}

func runConsumer(t *testing.T, c *Consumer, r *fakeReader, want int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return r.committedCount() == want }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.True(t, r.closed)
}

func TestConsumer_CommitsAfterSuccess(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{
		encodedMessage(t, "storefront.product.updated", "P0001"),
		encodedMessage(t, "storefront.product.updated", "P0002"),
	}}
	var seen []string
	handler := func(_ context.Context, e *Event) error {
		seen = append(seen, e.AggregateID)
		return nil
	}

	c := newConsumer(r, nil, ConsumerConfig{GroupID: "g", Topics: []string{"storefront.product.updated"}}, handler, testLogger())
	runConsumer(t, c, r, 2)
	assert.Equal(t, []string{"P0001", "P0002"}, seen)
}

func TestConsumer_RetriesThenSucceeds(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{encodedMessage(t, "t", "P0001")}}
	var calls atomic.Int32
	handler := func(context.Context, *Event) error {
		if calls.Add(1) < 3 {
			return errors.New("index unavailable")
		}
		return nil
	}
	dlq := &fakeDLQ{}

	cfg := ConsumerConfig{GroupID: "g", Topics: []string{"t"}, RetryBackoff: time.Millisecond}
	c := newConsumer(r, dlq, cfg, handler, testLogger())
	runConsumer(t, c, r, 1)

	assert.Equal(t, int32(3), calls.Load())
	assert.Empty(t, dlq.msgs)
}

func TestConsumer_ExhaustedRetriesGoToDLQ(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{encodedMessage(t, "t", "P0001")}}
	handler := func(context.Context, *Event) error { return errors.New("index unavailable") }
	dlq := &fakeDLQ{}

	cfg := ConsumerConfig{GroupID: "g", Topics: []string{"t"}, MaxRetries: 2, RetryBackoff: time.Millisecond}
	c := newConsumer(r, dlq, cfg, handler, testLogger())
	runConsumer(t, c, r, 1)

	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "P0001", string(dlq.msgs[0].Key))
	assert.EqualError(t, dlq.causes[0], "index unavailable")
}

func TestConsumer_UndecodableMessageIsDeadLettered(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{{Topic: "t", Value: []byte("not json")}}}
	dlq := &fakeDLQ{}
	handler := func(context.Context, *Event) error {
		t.Error("handler must not run for undecodable messages")
		return nil
	}

	c := newConsumer(r, dlq, ConsumerConfig{GroupID: "g", Topics: []string{"t"}}, handler, testLogger())
	runConsumer(t, c, r, 1)
	assert.Len(t, dlq.msgs, 1)
}

func TestNewConsumer_MultipleTopics(t *testing.T) {
	c := NewConsumer(ConsumerConfig{
		Brokers:   []string{"localhost:19092"},
		GroupID:   "storefront-index-sync",
		Topics:    []string{"a", "b"},
		EnableDLQ: true,
	}, func(context.Context, *Event) error { return nil }, testLogger())

	assert.NotNil(t, c.dlq)
	assert.Equal(t, "a,b", c.topics)
	assert.Equal(t, defaultMaxRetries, c.maxRetries)
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}
