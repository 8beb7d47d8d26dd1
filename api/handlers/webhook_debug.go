package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DebugWebhookHandler wraps the production handler with full request
// logging for diagnosing provider integrations. Enabled with
// WEBHOOK_DEBUG=true; verification still runs, nothing is skipped.
type DebugWebhookHandler struct {
	inner  *WebhookHandler
	logger *zap.Logger
}

func NewDebugWebhookHandler(inner *WebhookHandler, logger *zap.Logger) *DebugWebhookHandler {
	return &DebugWebhookHandler{inner: inner, logger: logger}
}

func (h *DebugWebhookHandler) HandleWebhook(c *gin.Context) {
	h.logger.Info("Incoming webhook request",
		zap.String("method", c.Request.Method),
		zap.String("remote_addr", c.ClientIP()),
		zap.String("content_type", c.GetHeader("Content-Type")),
		zap.String("user_agent", c.Request.UserAgent()),
		zap.Any("headers", c.Request.Header),
		zap.Int64("content_length", c.Request.ContentLength))

	h.inner.HandleWebhook(c)

	h.logger.Info("Webhook request completed",
		zap.Int("status", c.Writer.Status()))
}
