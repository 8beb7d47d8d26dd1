// Package worker consumes replay requests and re-dispatches the stored
// events. A replay is an explicit operator request to reprocess, so it
// bypasses the idempotency ledger.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"webhook-ingest/internal/models"
	"webhook-ingest/internal/queue"
	"webhook-ingest/internal/storage"
	"webhook-ingest/pkg/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// EventSource reads and updates stored events.
type EventSource interface {
	GetEvent(ctx context.Context, eventID string) (*models.InboundEvent, error)
	UpdateEventStatus(ctx context.Context, eventID string, status models.EventStatus) error
	IncrementEventRetry(ctx context.Context, eventID string) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, event *models.InboundEvent) error
}

type Worker struct {
	channel    *amqp.Channel
	events     EventSource
	dispatcher Dispatcher
	logger     *zap.Logger
	maxRetries int
	baseDelay  time.Duration
}

func NewWorker(channel *amqp.Channel, events EventSource, dispatcher Dispatcher, logger *zap.Logger) *Worker {
	return &Worker{
		channel:    channel,
		events:     events,
		dispatcher: dispatcher,
		logger:     logger,
		maxRetries: 3,
		baseDelay:  10 * time.Second,
	}
}

func (w *Worker) Start(ctx context.Context, queueName string) error {
	msgs, err := w.channel.Consume(
		queueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return err
	}

	go func() {
		for msg := range msgs {
			var req queue.ReplayRequest
			if err := json.Unmarshal(msg.Body, &req); err != nil {
				w.logger.Error("Failed to unmarshal replay request",
					zap.Error(err),
					zap.String("body", string(msg.Body)))
				msg.Nack(false, false)
				continue
			}

			w.logger.Info("Processing replay request",
				zap.String("request_id", req.RequestID),
				zap.String("event_id", req.EventID))

			w.replay(ctx, req)
			msg.Ack(false)
		}
	}()

	return nil
}

// replay loads the stored event and re-dispatches it, retrying with backoff
// before giving up and marking it failed. The message is always acked: a
// replay that keeps failing needs an operator, not a redelivery loop.
func (w *Worker) replay(ctx context.Context, req queue.ReplayRequest) {
	event, err := w.events.GetEvent(ctx, req.EventID)
	if errors.Is(err, storage.ErrNotFound) {
		w.logger.Warn("Replay requested for unknown event",
			zap.String("event_id", req.EventID))
		metrics.ReplayRequests.WithLabelValues("not_found").Inc()
		return
	}
	if err != nil {
		w.logger.Error("Failed to load event for replay",
			zap.Error(err),
			zap.String("event_id", req.EventID))
		metrics.ReplayRequests.WithLabelValues("failed").Inc()
		return
	}

	if err := w.events.UpdateEventStatus(ctx, event.EventID, models.EventStatusReplaying); err != nil {
		w.logger.Error("Failed to update event status", zap.Error(err))
	}

	var dispatchErr error
	for attempt := 1; attempt <= w.maxRetries; attempt++ {
		dispatchErr = w.dispatcher.Dispatch(ctx, event)
		if dispatchErr == nil {
			break
		}

		w.logger.Error("Replay dispatch failed",
			zap.Error(dispatchErr),
			zap.String("event_id", event.EventID),
			zap.Int("attempt", attempt))

		if err := w.events.IncrementEventRetry(ctx, event.EventID); err != nil {
			w.logger.Error("Failed to record retry", zap.Error(err))
		}

		if attempt < w.maxRetries {
			time.Sleep(w.calculateBackoff(attempt))
		}
	}

	if dispatchErr != nil {
		if err := w.events.UpdateEventStatus(ctx, event.EventID, models.EventStatusFailed); err != nil {
			w.logger.Error("Failed to update event status", zap.Error(err))
		}
		metrics.ReplayRequests.WithLabelValues("failed").Inc()
		return
	}

	if err := w.events.UpdateEventStatus(ctx, event.EventID, models.EventStatusProcessed); err != nil {
		w.logger.Error("Failed to update event status", zap.Error(err))
	}
	metrics.ReplayRequests.WithLabelValues("processed").Inc()
}

func (w *Worker) calculateBackoff(retryCount int) time.Duration {
	// Exponential backoff with jitter
	backoff := float64(w.baseDelay) * math.Pow(2, float64(retryCount-1))
	jitter := (rand.Float64()*0.5 + 0.5) // 50% jitter
	return time.Duration(backoff * jitter)
}
