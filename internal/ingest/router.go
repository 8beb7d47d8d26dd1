// Package ingest routes verified, de-duplicated webhook events to their
// handlers. One handler runs per event, synchronously; unknown event types
// fall through to a fallback handler rather than being rejected.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"webhook-ingest/internal/models"

	"go.uber.org/zap"
)

// ErrProcessingFailed wraps any handler failure so the HTTP layer can map
// it to a 500. By the time a handler runs the event is already marked seen,
// so a failed event is not retried on redelivery; recovery goes through the
// replay queue.
var ErrProcessingFailed = errors.New("event processing failed")

// Handler processes one event's business side effects.
type Handler func(ctx context.Context, event *models.InboundEvent) error

type Router struct {
	handlers map[string]Handler
	fallback Handler
	logger   *zap.Logger
}

func NewRouter(logger *zap.Logger, fallback Handler) *Router {
	return &Router{
		handlers: make(map[string]Handler),
		fallback: fallback,
		logger:   logger,
	}
}

// Handle registers h for the given event type, replacing any previous
// registration.
func (r *Router) Handle(eventType string, h Handler) {
	r.handlers[eventType] = h
}

// Dispatch invokes exactly one handler for the event. Unknown types are
// logged and routed to the fallback, never dropped.
func (r *Router) Dispatch(ctx context.Context, event *models.InboundEvent) error {
	h, ok := r.handlers[event.EventType]
	if !ok {
		r.logger.Info("No handler registered for event type, using fallback",
			zap.String("event_type", event.EventType),
			zap.String("event_id", event.EventID))
		h = r.fallback
	}

	if err := h(ctx, event); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrProcessingFailed, event.EventType, err)
	}
	return nil
}
