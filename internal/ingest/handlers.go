package ingest

import (
	"context"

	"webhook-ingest/internal/models"

	"go.uber.org/zap"
)

// EventStore is the slice of the document store the handlers need.
type EventStore interface {
	UpsertEvent(ctx context.Context, event *models.InboundEvent) error
	UpdateEventStatus(ctx context.Context, eventID string, status models.EventStatus) error
}

// NewPipeline builds the router with the service's standard handlers:
// payment and membership events from the billing provider, plus a misc
// fallback that persists anything unrecognized for later inspection.
func NewPipeline(store EventStore, logger *zap.Logger) *Router {
	r := NewRouter(logger, miscHandler(store, logger))

	r.Handle("payment.succeeded", persistHandler(store))
	r.Handle("payment.failed", func(ctx context.Context, event *models.InboundEvent) error {
		logger.Warn("Payment failure reported",
			zap.String("event_id", event.EventID))
		return persistHandler(store)(ctx, event)
	})
	r.Handle("membership.updated", persistHandler(store))

	return r
}

// persistHandler stores the event and marks it processed.
func persistHandler(store EventStore) Handler {
	return func(ctx context.Context, event *models.InboundEvent) error {
		if err := store.UpsertEvent(ctx, event); err != nil {
			return err
		}
		return store.UpdateEventStatus(ctx, event.EventID, models.EventStatusProcessed)
	}
}

// miscHandler persists events of unrecognized types with routed status so
// the dashboards can surface them.
func miscHandler(store EventStore, logger *zap.Logger) Handler {
	return func(ctx context.Context, event *models.InboundEvent) error {
		logger.Info("Storing unrecognized event type",
			zap.String("event_type", event.EventType),
			zap.String("event_id", event.EventID))
		event.Status = string(models.EventStatusRouted)
		return store.UpsertEvent(ctx, event)
	}
}
