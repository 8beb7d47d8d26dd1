package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"webhook-ingest/api/handlers"
	"webhook-ingest/api/router"
	"webhook-ingest/config"
	"webhook-ingest/internal/incidents"
	"webhook-ingest/internal/ingest"
	"webhook-ingest/internal/notify"
	"webhook-ingest/internal/queue"
	"webhook-ingest/internal/storage"
	"webhook-ingest/pkg/logger"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	httpServer    *http.Server
	metricsServer *http.Server
	logger        *logger.Logger
	store         *storage.MongoDB
	publisher     queue.Publisher
}

func NewServer(cfg *config.Config, log *logger.Logger) *Server {
	zlog := log.Desugar()

	store, err := storage.NewMongoDB(cfg.MongoDB.URI, cfg.MongoDB.Database, zlog)
	if err != nil {
		log.Fatalf("failed to connect to mongodb: %v", err)
	}

	publisher, err := queue.NewRabbitMQ(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.QueueName, zlog)
	if err != nil {
		log.Fatalf("failed to create replay queue publisher: %v", err)
	}

	notifier := notify.NewSlackNotifier(cfg.Notify.SlackWebhookURL, zlog)
	alertSink := incidents.NewService(store, notifier, publisher, zlog)
	pipeline := ingest.NewPipeline(store, zlog)

	webhookHandler := handlers.NewWebhookHandler(zlog, cfg.Webhook, store, pipeline, alertSink)
	adminHandler := handlers.NewIncidentHandler(zlog, alertSink, store, publisher)

	r := router.Setup(log, cfg, webhookHandler, adminHandler)

	// Create metrics server
	metricsAddr := fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort)
	metricsServer := &http.Server{
		Addr:    metricsAddr,
		Handler: promhttp.Handler(),
	}

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: r,
		},
		metricsServer: metricsServer,
		logger:        log,
		store:         store,
		publisher:     publisher,
	}
}

func (s *Server) Start() error {
	// Start metrics server in a goroutine
	go func() {
		s.logger.Info("Metrics server starting on port " + s.metricsServer.Addr)
		if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("metrics server error: %v", err)
		}
	}()

	// Start main HTTP server
	s.logger.Info("Server starting on port " + s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown() error {
	s.logger.Info("Server shutting down")
	if err := s.publisher.Close(); err != nil {
		s.logger.Error("failed to close publisher", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.store.Close(ctx); err != nil {
		s.logger.Error("failed to close storage", zap.Error(err))
	}
	return s.httpServer.Shutdown(ctx)
}
