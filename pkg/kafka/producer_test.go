package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestDefaultProducerConfig(t *testing.T) {
	cfg := DefaultProducerConfig([]string{"localhost:9092"})
	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 10*time.Millisecond, cfg.BatchTimeout)
	assert.False(t, cfg.Async)
}

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, logger: testLogger()}

	event, err := NewEvent("product.updated", "P0001", "product", "storefront", map[string]int{"stock": 3})
	require.NoError(t, err)
	event.WithCorrelationID("corr-9")

	require.NoError(t, p.Publish(context.Background(), Topic("product", "updated"), event))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "storefront.product.updated", msg.Topic)
	assert.Equal(t, "P0001", string(msg.Key))

	carrier := NewHeaderCarrier(&msg.Headers)
	assert.Equal(t, "product.updated", carrier.Get("event_type"))
	assert.Equal(t, "corr-9", carrier.Get("correlation_id"))

	decoded, err := UnmarshalEvent(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, event.EventID, decoded.EventID)
}

func TestProducer_PublishInjectsTraceContext(t *testing.T) {
	prevProp := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prevProp) })

	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	w := &fakeWriter{}
	p := &Producer{writer: w, logger: testLogger()}
	event, err := NewEvent("product.listed", "P0001", "product", "storefront", nil)
	require.NoError(t, err)

	require.NoError(t, p.Publish(ctx, "storefront.product.listed", event))
	traceparent := NewHeaderCarrier(&w.msgs[0].Headers).Get("traceparent")
	assert.Contains(t, traceparent, span.SpanContext().TraceID().String())
}

func TestProducer_PublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := &Producer{writer: w, logger: testLogger()}
	event, err := NewEvent("product.delisted", "P0001", "product", "storefront", nil)
	require.NoError(t, err)

	err = p.Publish(context.Background(), "storefront.product.delisted", event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storefront.product.delisted")
}

func TestNewProducer_Close(t *testing.T) {
	p := NewProducer(DefaultProducerConfig([]string{"localhost:19092"}), testLogger())
	require.NotNil(t, p)
	assert.NoError(t, p.Close())
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	err := PingBrokers(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no brokers configured")
}
