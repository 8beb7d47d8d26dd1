// Package queue carries operator-triggered replay requests over RabbitMQ.
// The broker is an ops side channel only: inbound webhook processing is
// synchronous, and nothing queues between the idempotency mark and the
// handler.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"webhook-ingest/pkg/metrics"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ReplayRequest asks the worker to reprocess a previously stored event.
type ReplayRequest struct {
	RequestID   string    `json:"request_id"`
	EventID     string    `json:"event_id"`
	RequestedAt time.Time `json:"requested_at"`
}

type Publisher interface {
	EnqueueReplay(ctx context.Context, eventID string) error
	Close() error
}

type RabbitMQ struct {
	conn         *amqp.Connection
	ch           *amqp.Channel
	exchangeName string
	queueName    string
	logger       *zap.Logger
}

func NewRabbitMQ(url, exchangeName, queueName string, logger *zap.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %v", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %v", err)
	}

	// Declare exchange
	err = ch.ExchangeDeclare(
		exchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %v", err)
	}

	// Declare queue
	q, err := ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %v", err)
	}

	// Bind queue to exchange
	err = ch.QueueBind(
		q.Name,       // queue name
		"",           // routing key
		exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %v", err)
	}

	return &RabbitMQ{
		conn:         conn,
		ch:           ch,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger,
	}, nil
}

// EnqueueReplay publishes a durable replay request for eventID.
func (r *RabbitMQ) EnqueueReplay(ctx context.Context, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req := ReplayRequest{
		RequestID:   uuid.NewString(),
		EventID:     eventID,
		RequestedAt: time.Now().UTC(),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal replay request: %v", err)
	}

	headers := make(amqp.Table)
	headers["request_id"] = req.RequestID
	headers["event_id"] = req.EventID

	err = r.ch.PublishWithContext(ctx,
		r.exchangeName,
		"",    // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Headers:      headers,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		})
	if err != nil {
		return fmt.Errorf("failed to publish replay request: %v", err)
	}

	metrics.ReplayRequests.WithLabelValues("enqueued").Inc()
	r.logger.Info("Enqueued replay request",
		zap.String("request_id", req.RequestID),
		zap.String("event_id", req.EventID))
	return nil
}

func (r *RabbitMQ) Close() error {
	if err := r.ch.Close(); err != nil {
		r.logger.Error("Failed to close channel", zap.Error(err))
	}
	if err := r.conn.Close(); err != nil {
		r.logger.Error("Failed to close connection", zap.Error(err))
	}
	return nil
}
