package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

// Event actions on the product aggregate.
const (
	ActionListed   = "listed"
	ActionUpdated  = "updated"
	ActionDelisted = "delisted"
	ActionClicked  = "clicked"
)

// AggregateTypeProduct is the aggregate type of every product event.
const AggregateTypeProduct = "product"

// SourceStorefront identifies events emitted by this service.
const SourceStorefront = "storefront-service"

// Kafka topics for product events.
var (
	TopicProductListed   = pkgkafka.Topic(AggregateTypeProduct, ActionListed)
	TopicProductUpdated  = pkgkafka.Topic(AggregateTypeProduct, ActionUpdated)
	TopicProductDelisted = pkgkafka.Topic(AggregateTypeProduct, ActionDelisted)
	TopicProductClicked  = pkgkafka.Topic(AggregateTypeProduct, ActionClicked)
)

// Topics returns every product topic.
func Topics() []string {
	return []string{TopicProductListed, TopicProductUpdated, TopicProductDelisted, TopicProductClicked}
}

// ProductData is the payload of listed, updated and clicked events: the
// record as stored after the mutation.
type ProductData struct {
	PID      string  `json:"pid"`
	SID      string  `json:"sid"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Stock    int64   `json:"stock"`
	Sales    int64   `json:"sales"`
	Rating   float64 `json:"rating"`
	Clicks   int64   `json:"clicks"`
}

// DelistedData is the payload of a product.delisted event.
type DelistedData struct {
	PID string `json:"pid"`
	SID string `json:"sid"`
}

type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes product events to Kafka.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

// NewProducer creates a product event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

// ProductListed publishes a product.listed event.
func (p *Producer) ProductListed(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductListed, product.PID, newProductData(product))
}

// ProductUpdated publishes a product.updated event.
func (p *Producer) ProductUpdated(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductUpdated, product.PID, newProductData(product))
}

// ProductClicked publishes a product.clicked event.
func (p *Producer) ProductClicked(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductClicked, product.PID, newProductData(product))
}

// ProductDelisted publishes a product.delisted event.
func (p *Producer) ProductDelisted(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductDelisted, product.PID, DelistedData{PID: product.PID, SID: product.SID})
}

func (p *Producer) publish(ctx context.Context, topic, pid string, data any) error {
	event, err := pkgkafka.NewEvent(topic, pid, AggregateTypeProduct, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published product event",
		slog.String("topic", topic),
		slog.String("pid", pid),
	)
	return nil
}

func newProductData(p *domain.Product) ProductData {
	return ProductData{
		PID:      p.PID,
		SID:      p.SID,
		Name:     p.Name,
		Category: p.Category,
		Price:    p.Price,
		Stock:    p.Stock,
		Sales:    p.Sales,
		Rating:   p.Rating,
		Clicks:   p.Clicks,
	}
}

// Nop discards every event. It is used when Kafka is disabled.
type Nop struct{}

func (Nop) ProductListed(context.Context, *domain.Product) error   { return nil }
func (Nop) ProductUpdated(context.Context, *domain.Product) error  { return nil }
func (Nop) ProductClicked(context.Context, *domain.Product) error  { return nil }
func (Nop) ProductDelisted(context.Context, *domain.Product) error { return nil }
