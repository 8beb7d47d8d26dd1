// Package incidents is the operational sink for the ingest pipeline:
// append-mostly incident records with timelines, alerts, and the actions
// alerts fan out to.
package incidents

import (
	"context"
	"fmt"
	"time"

	"webhook-ingest/internal/models"
	"webhook-ingest/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the slice of the document store the sink writes to.
type Store interface {
	InsertIncident(ctx context.Context, incident *models.Incident) error
	GetIncident(ctx context.Context, incidentID string) (*models.Incident, error)
	AppendIncidentEvent(ctx context.Context, incidentID string, entry models.TimelineEntry) error
	UpdateIncidentStatus(ctx context.Context, incidentID string, status models.IncidentStatus) error
	InsertAlert(ctx context.Context, alert *models.Alert) error
	MarkAlertNeedsReview(ctx context.Context, alertID string) error
	UpdateAlertSeverity(ctx context.Context, alertID string, severity models.Severity) error
}

type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// ReplayQueue enqueues an event id for operator-triggered reprocessing.
type ReplayQueue interface {
	EnqueueReplay(ctx context.Context, eventID string) error
}

type Service struct {
	store    Store
	notifier Notifier
	replay   ReplayQueue
	logger   *zap.Logger
}

func NewService(store Store, notifier Notifier, replay ReplayQueue, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		replay:   replay,
		logger:   logger,
	}
}

func (s *Service) OpenIncident(ctx context.Context, title string, severity models.Severity, actor string) (*models.Incident, error) {
	now := time.Now().UTC()
	incident := &models.Incident{
		IncidentID: uuid.NewString(),
		Title:      title,
		Severity:   severity,
		Status:     models.IncidentStatusOpen,
		Timeline: []models.TimelineEntry{{
			Type:    models.TimelineAction,
			Message: "incident opened",
			Actor:   actor,
			At:      now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.InsertIncident(ctx, incident); err != nil {
		return nil, err
	}
	metrics.IncidentStatusChanges.WithLabelValues(string(models.IncidentStatusOpen)).Inc()
	return incident, nil
}

func (s *Service) GetIncident(ctx context.Context, incidentID string) (*models.Incident, error) {
	return s.store.GetIncident(ctx, incidentID)
}

// AppendIncidentEvent stamps and appends one timeline entry.
func (s *Service) AppendIncidentEvent(ctx context.Context, incidentID string, entry models.TimelineEntry) error {
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	return s.store.AppendIncidentEvent(ctx, incidentID, entry)
}

// UpdateIncidentStatus moves an incident to any status in the closed set
// and records the transition on the timeline. There is no transition graph:
// any status may follow any other.
func (s *Service) UpdateIncidentStatus(ctx context.Context, incidentID string, status models.IncidentStatus, actor string) error {
	if !status.Valid() {
		return fmt.Errorf("invalid incident status %q", status)
	}

	if err := s.store.UpdateIncidentStatus(ctx, incidentID, status); err != nil {
		return err
	}

	entry := models.TimelineEntry{
		Type:    models.TimelineAction,
		Message: fmt.Sprintf("status changed to %s", status),
		Actor:   actor,
		At:      time.Now().UTC(),
	}
	if err := s.store.AppendIncidentEvent(ctx, incidentID, entry); err != nil {
		s.logger.Warn("Failed to record status change on timeline",
			zap.Error(err),
			zap.String("incident_id", incidentID))
	}

	metrics.IncidentStatusChanges.WithLabelValues(string(status)).Inc()
	return nil
}

// RaiseAlert persists the alert and runs its actions. Returns the actions
// that were selected.
func (s *Service) RaiseAlert(ctx context.Context, alert *models.Alert) ([]models.ActionKind, error) {
	if alert.AlertID == "" {
		alert.AlertID = uuid.NewString()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	if err := s.store.InsertAlert(ctx, alert); err != nil {
		return nil, err
	}

	actions := ActionsFor(alert)
	if err := s.Execute(ctx, alert, actions); err != nil {
		return actions, err
	}
	return actions, nil
}

// Execute runs each action in order. Notification failures are swallowed so
// they cannot fail the primary request; store and queue failures are
// returned after the remaining actions have run.
func (s *Service) Execute(ctx context.Context, alert *models.Alert, actions []models.ActionKind) error {
	var firstErr error
	fail := func(action models.ActionKind, err error) {
		metrics.AlertActions.WithLabelValues(string(action), "failed").Inc()
		s.logger.Error("Alert action failed",
			zap.Error(err),
			zap.String("action", string(action)),
			zap.String("alert_id", alert.AlertID))
		if firstErr == nil {
			firstErr = err
		}
	}

	for _, action := range actions {
		switch action {
		case models.ActionNotifyTeam:
			if err := s.notifier.Notify(ctx, s.formatAlert(alert)); err != nil {
				// Non-blocking side call: log and move on.
				metrics.AlertActions.WithLabelValues(string(action), "failed").Inc()
				s.logger.Warn("Failed to notify team", zap.Error(err), zap.String("alert_id", alert.AlertID))
				continue
			}
			metrics.AlertActions.WithLabelValues(string(action), "success").Inc()

		case models.ActionMarkNeedsReview:
			if err := s.store.MarkAlertNeedsReview(ctx, alert.AlertID); err != nil {
				fail(action, err)
				continue
			}
			alert.NeedsReview = true
			metrics.AlertActions.WithLabelValues(string(action), "success").Inc()

		case models.ActionQueueReplay:
			if alert.EventID == "" {
				continue
			}
			if err := s.replay.EnqueueReplay(ctx, alert.EventID); err != nil {
				fail(action, err)
				continue
			}
			metrics.AlertActions.WithLabelValues(string(action), "success").Inc()

		case models.ActionEscalate:
			if err := s.escalate(ctx, alert); err != nil {
				fail(action, err)
				continue
			}
			metrics.AlertActions.WithLabelValues(string(action), "success").Inc()

		case models.ActionCreateTicket:
			// Not implemented: no ticketing backend. Logged so operators can
			// see the intent.
			s.logger.Info("create-ticket action requested (logging only)",
				zap.String("alert_id", alert.AlertID),
				zap.String("alert_type", alert.Type))
			metrics.AlertActions.WithLabelValues(string(action), "noop").Inc()
		}
	}
	return firstErr
}

// escalate bumps the alert one severity step and makes sure an incident
// exists to track it.
func (s *Service) escalate(ctx context.Context, alert *models.Alert) error {
	escalated := alert.Severity.Escalated()
	if err := s.store.UpdateAlertSeverity(ctx, alert.AlertID, escalated); err != nil {
		return err
	}
	alert.Severity = escalated

	if alert.IncidentID == "" {
		incident, err := s.OpenIncident(ctx,
			fmt.Sprintf("escalated alert: %s", alert.Type),
			escalated,
			"alert-engine")
		if err != nil {
			return err
		}
		alert.IncidentID = incident.IncidentID
	} else {
		entry := models.TimelineEntry{
			Type:    models.TimelineAction,
			Message: fmt.Sprintf("alert %s escalated to %s", alert.AlertID, escalated),
			Actor:   "alert-engine",
			At:      time.Now().UTC(),
		}
		if err := s.store.AppendIncidentEvent(ctx, alert.IncidentID, entry); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) formatAlert(alert *models.Alert) string {
	text := fmt.Sprintf("[%s] %s: %s", alert.Severity, alert.Type, alert.Message)
	if alert.EventID != "" {
		text += fmt.Sprintf(" (event %s)", alert.EventID)
	}
	return text
}
