package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"webhook-ingest/config"
	"webhook-ingest/internal/idempotency"
	"webhook-ingest/internal/models"
	"webhook-ingest/internal/verify"
	"webhook-ingest/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dispatcher routes one verified, de-duplicated event to its handler.
type Dispatcher interface {
	Dispatch(ctx context.Context, event *models.InboundEvent) error
}

// AlertSink receives the operator-facing alert when a handler fails after
// the idempotency mark.
type AlertSink interface {
	RaiseAlert(ctx context.Context, alert *models.Alert) ([]models.ActionKind, error)
}

type WebhookHandler struct {
	logger     *zap.Logger
	cfg        config.WebhookConfig
	ledger     idempotency.Ledger
	dispatcher Dispatcher
	alerts     AlertSink
}

func NewWebhookHandler(logger *zap.Logger, cfg config.WebhookConfig, ledger idempotency.Ledger, dispatcher Dispatcher, alerts AlertSink) *WebhookHandler {
	return &WebhookHandler{
		logger:     logger,
		cfg:        cfg,
		ledger:     ledger,
		dispatcher: dispatcher,
		alerts:     alerts,
	}
}

// HandleWebhook is the ingest pipeline for one delivery: verify the
// signature over the raw body, parse, resolve the event id, mark it in the
// idempotency ledger, and dispatch. Order matters: nothing is parsed or
// trusted before verification, and nothing side-effecting runs before the
// ledger mark.
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	start := time.Now()

	raw, err := c.GetRawData()
	if err != nil || len(raw) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Empty request body"})
		return
	}

	signature := c.GetHeader(h.cfg.SignatureHeader)
	timestamp := c.GetHeader(h.cfg.TimestampHeader)
	if err := verify.Verify(raw, signature, h.cfg.Secret, timestamp, h.cfg.Tolerance()); err != nil {
		metrics.VerificationFailures.WithLabelValues(verificationReason(err)).Inc()
		h.logger.Warn("Webhook verification failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Verification failed"})
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.logger.Error("Failed to parse webhook payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}

	receivedAt := time.Now().UTC()
	eventType := firstString(payload, "type", "event_type", "event")
	if eventType == "" {
		eventType = c.GetHeader(h.cfg.EventTypeHeader)
	}
	if eventType == "" {
		eventType = "unknown"
	}

	eventID, derived := h.resolveEventID(c, payload, raw, eventType, receivedAt)

	event := &models.InboundEvent{
		EventID:    eventID,
		EventType:  eventType,
		Payload:    raw,
		DerivedID:  derived,
		ReceivedAt: receivedAt,
		Status:     string(models.EventStatusRouted),
	}

	metrics.WebhookReceived.WithLabelValues(event.EventType).Inc()

	// Bounded deadline on the dedup write so a degraded store cannot hold
	// the request for the platform timeout.
	storeCtx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.StoreTimeout())
	defer cancel()

	wasNew, err := h.ledger.MarkIfNew(storeCtx, event.EventID, h.cfg.IdempotencyTTL())
	if err != nil {
		h.logger.Error("Idempotency check failed",
			zap.Error(err),
			zap.String("event_id", event.EventID))
		// Nothing recorded yet: the sender can safely retry the delivery.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record event"})
		return
	}

	if !wasNew {
		metrics.WebhookDuplicates.WithLabelValues(event.EventType).Inc()
		h.logger.Info("Duplicate delivery suppressed",
			zap.String("event_id", event.EventID),
			zap.String("event_type", event.EventType))
		c.JSON(http.StatusOK, gin.H{
			"ok":        true,
			"event_id":  event.EventID,
			"duplicate": true,
		})
		return
	}

	if err := h.dispatcher.Dispatch(c.Request.Context(), event); err != nil {
		metrics.WebhookProcessed.WithLabelValues(event.EventType, "failed").Inc()
		h.logger.Error("Handler failed after idempotency mark",
			zap.Error(err),
			zap.String("event_id", event.EventID),
			zap.String("event_type", event.EventType))
		h.raiseProcessingAlert(event, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":    "processing_failed",
			"event_id": event.EventID,
		})
		return
	}

	metrics.WebhookProcessed.WithLabelValues(event.EventType, "success").Inc()
	metrics.WebhookProcessingTime.WithLabelValues(event.EventType).Observe(time.Since(start).Seconds())

	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"event_id":  event.EventID,
		"duplicate": false,
	})
}

// resolveEventID finds the sender's event id, or derives a stable one when
// none was supplied. The derived id hashes the event type, the raw body,
// and an hour bucket, so a resend of the same payload within the hour
// collides with the original. Best-effort dedup, not a guarantee.
func (h *WebhookHandler) resolveEventID(c *gin.Context, payload map[string]interface{}, raw []byte, eventType string, receivedAt time.Time) (string, bool) {
	if id := firstString(payload, "id", "event_id", "webhook_id"); id != "" {
		return id, false
	}
	if id := c.GetHeader(h.cfg.EventIDHeader); id != "" {
		return id, false
	}

	bucket := receivedAt.Truncate(time.Hour).Unix()
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\n%s\n%d", eventType, raw, bucket)))
	return "drv_" + hex.EncodeToString(sum[:16]), true
}

// raiseProcessingAlert surfaces the failure on the alerting path. It runs
// on its own context because the request is about to end with a 500, and
// its own errors are only logged: alerting must not mask the primary
// failure.
func (h *WebhookHandler) raiseProcessingAlert(event *models.InboundEvent, handlerErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.StoreTimeout())
	defer cancel()

	alert := &models.Alert{
		Type:     models.AlertProcessingFailed,
		Severity: models.SeverityHigh,
		Message:  fmt.Sprintf("handler for %s failed: %v", event.EventType, handlerErr),
		EventID:  event.EventID,
	}
	if _, err := h.alerts.RaiseAlert(ctx, alert); err != nil {
		h.logger.Error("Failed to raise processing alert",
			zap.Error(err),
			zap.String("event_id", event.EventID))
	}
}

func verificationReason(err error) string {
	switch {
	case errors.Is(err, verify.ErrMissingSecret):
		return "missing_secret"
	case errors.Is(err, verify.ErrMissingSignature):
		return "missing_signature"
	case errors.Is(err, verify.ErrStaleTimestamp):
		return "stale_timestamp"
	case errors.Is(err, verify.ErrBadTimestamp):
		return "bad_timestamp"
	default:
		return "signature_mismatch"
	}
}

func firstString(payload map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if val, ok := payload[key].(string); ok && val != "" {
			return val
		}
	}
	return ""
}
