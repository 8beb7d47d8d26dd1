package handlers

import (
	"context"
	"errors"
	"net/http"

	"webhook-ingest/internal/incidents"
	"webhook-ingest/internal/models"
	"webhook-ingest/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// EventLister exposes stored events to the ops dashboard.
type EventLister interface {
	GetEventsByStatus(ctx context.Context, status models.EventStatus) ([]*models.InboundEvent, error)
}

// ReplayEnqueuer enqueues an event id for manual reprocessing.
type ReplayEnqueuer interface {
	EnqueueReplay(ctx context.Context, eventID string) error
}

// IncidentHandler serves the authenticated admin surface backing the ops
// dashboards.
type IncidentHandler struct {
	logger *zap.Logger
	svc    *incidents.Service
	events EventLister
	replay ReplayEnqueuer
}

func NewIncidentHandler(logger *zap.Logger, svc *incidents.Service, events EventLister, replay ReplayEnqueuer) *IncidentHandler {
	return &IncidentHandler{
		logger: logger,
		svc:    svc,
		events: events,
		replay: replay,
	}
}

type createIncidentRequest struct {
	Title    string          `json:"title" binding:"required"`
	Severity models.Severity `json:"severity"`
	Actor    string          `json:"actor"`
}

func (h *IncidentHandler) CreateIncident(c *gin.Context) {
	var req createIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Severity == "" {
		req.Severity = models.SeverityMedium
	}

	incident, err := h.svc.OpenIncident(c.Request.Context(), req.Title, req.Severity, req.Actor)
	if err != nil {
		h.logger.Error("Failed to open incident", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open incident"})
		return
	}

	c.JSON(http.StatusCreated, incident)
}

func (h *IncidentHandler) GetIncident(c *gin.Context) {
	incident, err := h.svc.GetIncident(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Incident not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to load incident", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load incident"})
		return
	}

	c.JSON(http.StatusOK, incident)
}

type updateStatusRequest struct {
	Status models.IncidentStatus `json:"status" binding:"required"`
	Actor  string                `json:"actor"`
}

func (h *IncidentHandler) UpdateIncidentStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown incident status"})
		return
	}

	err := h.svc.UpdateIncidentStatus(c.Request.Context(), c.Param("id"), req.Status, req.Actor)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Incident not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to update incident status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update incident status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"incident_id": c.Param("id"), "status": req.Status})
}

type appendTimelineRequest struct {
	Type    models.TimelineEntryType `json:"type" binding:"required"`
	Message string                   `json:"message" binding:"required"`
	Actor   string                   `json:"actor"`
	Meta    map[string]any           `json:"meta"`
}

func (h *IncidentHandler) AppendTimeline(c *gin.Context) {
	var req appendTimelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Type != models.TimelineNote && req.Type != models.TimelineAction {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Entry type must be note or action"})
		return
	}

	entry := models.TimelineEntry{
		Type:    req.Type,
		Message: req.Message,
		Actor:   req.Actor,
		Meta:    req.Meta,
	}
	err := h.svc.AppendIncidentEvent(c.Request.Context(), c.Param("id"), entry)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Incident not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to append timeline entry", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to append timeline entry"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"incident_id": c.Param("id")})
}

type createAlertRequest struct {
	Type     string          `json:"type" binding:"required"`
	Severity models.Severity `json:"severity"`
	Message  string          `json:"message"`
	EventID  string          `json:"event_id"`
}

func (h *IncidentHandler) CreateAlert(c *gin.Context) {
	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Severity == "" {
		req.Severity = models.SeverityMedium
	}

	alert := &models.Alert{
		Type:     req.Type,
		Severity: req.Severity,
		Message:  req.Message,
		EventID:  req.EventID,
	}
	actions, err := h.svc.RaiseAlert(c.Request.Context(), alert)
	if err != nil {
		h.logger.Error("Failed to raise alert", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to raise alert"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"alert_id": alert.AlertID,
		"actions":  actions,
	})
}

func (h *IncidentHandler) EnqueueReplay(c *gin.Context) {
	eventID := c.Param("eventID")
	if err := h.replay.EnqueueReplay(c.Request.Context(), eventID); err != nil {
		h.logger.Error("Failed to enqueue replay",
			zap.Error(err),
			zap.String("event_id", eventID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to enqueue replay"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"event_id": eventID, "queued": true})
}

func (h *IncidentHandler) ListEvents(c *gin.Context) {
	status := models.EventStatus(c.DefaultQuery("status", string(models.EventStatusFailed)))

	events, err := h.events.GetEventsByStatus(c.Request.Context(), status)
	if err != nil {
		h.logger.Error("Failed to list events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}
