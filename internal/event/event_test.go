package event

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, event *pkgkafka.Event) error {
	args := m.Called(ctx, topic, event)
	return args.Error(0)
}

type mockSyncer struct {
	mock.Mock
}

func (m *mockSyncer) Resync(ctx context.Context, pid string) error {
	return m.Called(ctx, pid).Error(0)
}

func product() *domain.Product {
	return &domain.Product{PID: "P0001", SID: "S0001", Name: "Blue Mug", Category: "kitchen", Price: 9.5, Clicks: 3}
}

func TestTopics(t *testing.T) {
	assert.Equal(t, []string{
		"storefront.product.listed",
		"storefront.product.updated",
		"storefront.product.delisted",
		"storefront.product.clicked",
	}, Topics())
}

func TestProducer_ProductListed(t *testing.T) {
	pub := new(mockPublisher)
	p := &Producer{kafka: pub, logger: testLogger()}

	var sent *pkgkafka.Event
	pub.On("Publish", mock.Anything, TopicProductListed, mock.AnythingOfType("*kafka.Event")).
		Run(func(args mock.Arguments) { sent = args.Get(2).(*pkgkafka.Event) }).
		Return(nil)

	ctx := logger.WithCorrelationID(context.Background(), "corr-1")
	require.NoError(t, p.ProductListed(ctx, product()))
	pub.AssertExpectations(t)

	require.NotNil(t, sent)
	assert.Equal(t, "P0001", sent.AggregateID)
	assert.Equal(t, AggregateTypeProduct, sent.AggregateType)
	assert.Equal(t, SourceStorefront, sent.Source)
	assert.Equal(t, "corr-1", sent.CorrelationID)

	var data ProductData
	require.NoError(t, sent.UnmarshalData(&data))
	assert.Equal(t, int64(3), data.Clicks)
	assert.Equal(t, "kitchen", data.Category)
}

func TestProducer_ProductDelisted(t *testing.T) {
	pub := new(mockPublisher)
	p := &Producer{kafka: pub, logger: testLogger()}

	var sent *pkgkafka.Event
	pub.On("Publish", mock.Anything, TopicProductDelisted, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(2).(*pkgkafka.Event) }).
		Return(nil)

	require.NoError(t, p.ProductDelisted(context.Background(), product()))

	var data DelistedData
	require.NoError(t, sent.UnmarshalData(&data))
	assert.Equal(t, DelistedData{PID: "P0001", SID: "S0001"}, data)
}

func TestProducer_PublishError(t *testing.T) {
	pub := new(mockPublisher)
	p := &Producer{kafka: pub, logger: testLogger()}
	pub.On("Publish", mock.Anything, TopicProductClicked, mock.Anything).Return(errors.New("broker down"))

	err := p.ProductClicked(context.Background(), product())
	require.Error(t, err)
	assert.Contains(t, err.Error(), TopicProductClicked)
}

func TestNop(t *testing.T) {
	var n Nop
	ctx := context.Background()
	assert.NoError(t, n.ProductListed(ctx, product()))
	assert.NoError(t, n.ProductUpdated(ctx, product()))
	assert.NoError(t, n.ProductClicked(ctx, product()))
	assert.NoError(t, n.ProductDelisted(ctx, product()))
}

func TestSyncHandler_Resyncs(t *testing.T) {
	syncer := new(mockSyncer)
	syncer.On("Resync", mock.Anything, "P0001").Return(nil)
	h := NewSyncHandler(syncer, testLogger())

	evt, err := pkgkafka.NewEvent(TopicProductUpdated, "P0001", AggregateTypeProduct, SourceStorefront, ProductData{PID: "P0001"})
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), evt))
	syncer.AssertExpectations(t)
}

func TestSyncHandler_ResyncErrorIsReturned(t *testing.T) {
	syncer := new(mockSyncer)
	syncer.On("Resync", mock.Anything, "P0001").Return(errors.New("index down"))
	h := NewSyncHandler(syncer, testLogger())

	evt, err := pkgkafka.NewEvent(TopicProductDelisted, "P0001", AggregateTypeProduct, SourceStorefront, DelistedData{PID: "P0001"})
	require.NoError(t, err)

	err = h.Handle(context.Background(), evt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "P0001")
}

func TestSyncHandler_IgnoresForeignAggregates(t *testing.T) {
	syncer := new(mockSyncer)
	h := NewSyncHandler(syncer, testLogger())

	evt, err := pkgkafka.NewEvent("storefront.order.created", "O1", "order", "checkout", nil)
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), evt))
	syncer.AssertNotCalled(t, "Resync", mock.Anything, mock.Anything)
}

func TestSyncHandler_DuplicateDeliverySkipped(t *testing.T) {
	syncer := new(mockSyncer)
	syncer.On("Resync", mock.Anything, "P0001").Return(nil).Once()
	h := NewSyncHandler(syncer, testLogger())
	handle := pkgkafka.IdempotentHandler(pkgkafka.NewMemoryIdempotencyStore(time.Hour), h.Handle, testLogger())

	evt, err := pkgkafka.NewEvent(TopicProductClicked, "P0001", AggregateTypeProduct, SourceStorefront, ProductData{PID: "P0001"})
	require.NoError(t, err)

	require.NoError(t, handle(context.Background(), evt))
	require.NoError(t, handle(context.Background(), evt))
	syncer.AssertNumberOfCalls(t, "Resync", 1)
}
