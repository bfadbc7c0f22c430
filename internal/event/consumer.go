package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
)

// SyncGroupID is the consumer group of the index sync consumer. The search
// index is shared, so one member per event is enough.
const SyncGroupID = "storefront-index-sync"

// Syncer converges the index entry of one product with the primary store.
type Syncer interface {
	Resync(ctx context.Context, pid string) error
}

// SyncHandler re-syncs the index entry of the product named by each event.
// It never trusts the payload: the primary store is re-read, so events may
// arrive late, twice or out of order.
type SyncHandler struct {
	syncer Syncer
	logger *slog.Logger
}

// NewSyncHandler creates a sync handler over syncer.
func NewSyncHandler(syncer Syncer, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{syncer: syncer, logger: logger}
}

// Handle processes one product event.
func (h *SyncHandler) Handle(ctx context.Context, event *pkgkafka.Event) error {
	if event.AggregateType != AggregateTypeProduct || event.AggregateID == "" {
		h.logger.WarnContext(ctx, "ignoring event without product aggregate",
			slog.String("event_id", event.EventID),
			slog.String("event_type", event.EventType),
		)
		return nil
	}

	if err := h.syncer.Resync(ctx, event.AggregateID); err != nil {
		return fmt.Errorf("resync %s after %s: %w", event.AggregateID, event.EventType, err)
	}

	h.logger.DebugContext(ctx, "index re-synced from event",
		slog.String("event_id", event.EventID),
		slog.String("event_type", event.EventType),
		slog.String("pid", event.AggregateID),
	)
	return nil
}

// NewSyncConsumer builds the consumer for every product topic. Duplicate
// deliveries are filtered by store before reaching the handler.
func NewSyncConsumer(brokers []string, handler *SyncHandler, store pkgkafka.IdempotencyStore, logger *slog.Logger) *pkgkafka.Consumer {
	cfg := pkgkafka.ConsumerConfig{
		Brokers:      brokers,
		GroupID:      SyncGroupID,
		Topics:       Topics(),
		MinBytes:     1,
		MaxBytes:     10e6,
		MaxRetries:   3,
		RetryBackoff: 500 * time.Millisecond,
		EnableDLQ:    true,
	}
	return pkgkafka.NewConsumer(cfg, pkgkafka.IdempotentHandler(store, handler.Handle, logger), logger)
}
