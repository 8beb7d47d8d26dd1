package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_received_total",
		Help: "The total number of webhook deliveries that passed signature verification",
	}, []string{"event_type"})

	VerificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_verification_failures_total",
		Help: "The total number of webhook deliveries rejected during verification",
	}, []string{"reason"})

	WebhookDuplicates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_duplicate_total",
		Help: "The total number of webhook deliveries suppressed as duplicates",
	}, []string{"event_type"})

	WebhookProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_processed_total",
		Help: "The total number of webhook events dispatched to a handler",
	}, []string{"event_type", "status"})

	WebhookProcessingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_processing_duration_seconds",
		Help:    "Time taken to process webhook events end to end",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})

	AlertActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alert_actions_executed_total",
		Help: "The total number of alert actions executed, by kind and outcome",
	}, []string{"action", "outcome"})

	IncidentStatusChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "incident_status_changes_total",
		Help: "The total number of incident status transitions",
	}, []string{"status"})

	ReplayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replay_requests_total",
		Help: "The total number of event replay requests, by stage",
	}, []string{"stage"})
)
