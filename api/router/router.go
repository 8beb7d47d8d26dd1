package router

import (
	"os"

	"webhook-ingest/api/handlers"
	"webhook-ingest/api/middleware"
	"webhook-ingest/config"
	"webhook-ingest/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WebhookHandler interface for both standard and debug handlers
type WebhookHandler interface {
	HandleWebhook(c *gin.Context)
}

func Setup(log *logger.Logger, cfg *config.Config, webhook *handlers.WebhookHandler, admin *handlers.IncidentHandler) *gin.Engine {
	router := gin.Default()

	security := middleware.NewSecurityMiddleware(
		log.Desugar(),
		cfg.Security.APIKeys,
		cfg.Security.APIKeyHeader,
	)

	router.Use(security.CORS())

	// Health check endpoint (no authentication required)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Metrics endpoint for Prometheus (no authentication required)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	var webhookHandler WebhookHandler = webhook
	if os.Getenv("WEBHOOK_DEBUG") == "true" {
		log.Desugar().Info("Initializing DEBUG webhook handler")
		webhookHandler = handlers.NewDebugWebhookHandler(webhook, log.Desugar())
	}

	// Provider URL-validation probes hit the endpoint with GET before
	// enabling deliveries.
	router.GET("/webhook", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "Webhook endpoint is ready",
		})
	})

	// The webhook POST carries its own credential: the HMAC signature.
	router.POST("/webhook", webhookHandler.HandleWebhook)

	// Admin API for the ops dashboards
	api := router.Group("/api/v1")
	api.Use(security.Authenticate(), security.RateLimit())
	{
		api.POST("/incidents", admin.CreateIncident)
		api.GET("/incidents/:id", admin.GetIncident)
		api.PATCH("/incidents/:id/status", admin.UpdateIncidentStatus)
		api.POST("/incidents/:id/timeline", admin.AppendTimeline)
		api.POST("/alerts", admin.CreateAlert)
		api.POST("/replay/:eventID", admin.EnqueueReplay)
		api.GET("/events", admin.ListEvents)
	}

	log.Desugar().Info("Router configured")

	return router
}
