package models

import "time"

// IncidentStatus is the closed set of incident states. Any status may
// transition to any other; only the enum itself is validated.
type IncidentStatus string

const (
	IncidentStatusOpen          IncidentStatus = "open"
	IncidentStatusInvestigating IncidentStatus = "investigating"
	IncidentStatusMonitoring    IncidentStatus = "monitoring"
	IncidentStatusResolved      IncidentStatus = "resolved"
)

func (s IncidentStatus) Valid() bool {
	switch s {
	case IncidentStatusOpen, IncidentStatusInvestigating, IncidentStatusMonitoring, IncidentStatusResolved:
		return true
	}
	return false
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	}
	return -1
}

func (s Severity) AtLeast(other Severity) bool {
	return s.rank() >= other.rank()
}

// Escalated returns the next severity up, capped at critical.
func (s Severity) Escalated() Severity {
	switch s {
	case SeverityLow:
		return SeverityMedium
	case SeverityMedium:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

type TimelineEntryType string

const (
	TimelineNote   TimelineEntryType = "note"
	TimelineAction TimelineEntryType = "action"
)

// TimelineEntry is one appended record on an incident's timeline. Entries
// are never removed.
type TimelineEntry struct {
	Type    TimelineEntryType `json:"type" bson:"type"`
	Message string            `json:"message" bson:"message"`
	Actor   string            `json:"actor,omitempty" bson:"actor,omitempty"`
	Meta    map[string]any    `json:"meta,omitempty" bson:"meta,omitempty"`
	At      time.Time         `json:"at" bson:"at"`
}

// Incident is an append-mostly operational record. Incidents are never
// deleted, only marked resolved.
type Incident struct {
	IncidentID string          `json:"incident_id" bson:"incident_id"`
	Title      string          `json:"title" bson:"title"`
	Severity   Severity        `json:"severity" bson:"severity"`
	Status     IncidentStatus  `json:"status" bson:"status"`
	Timeline   []TimelineEntry `json:"timeline" bson:"timeline"`
	CreatedAt  time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" bson:"updated_at"`
}

// ActionKind names the operator-facing actions an alert can trigger.
type ActionKind string

const (
	ActionNotifyTeam      ActionKind = "notify-team"
	ActionMarkNeedsReview ActionKind = "mark-needs-review"
	ActionQueueReplay     ActionKind = "queue-replay"
	ActionEscalate        ActionKind = "escalate"
	ActionCreateTicket    ActionKind = "create-ticket"
)

// Well-known alert types raised by the pipeline.
const (
	AlertProcessingFailed = "processing_failed"
	AlertSignatureFailure = "signature_failure"
	AlertStoreDegraded    = "store_degraded"
)

type Alert struct {
	AlertID     string    `json:"alert_id" bson:"alert_id"`
	Type        string    `json:"type" bson:"type"`
	Severity    Severity  `json:"severity" bson:"severity"`
	Message     string    `json:"message" bson:"message"`
	EventID     string    `json:"event_id,omitempty" bson:"event_id,omitempty"`
	IncidentID  string    `json:"incident_id,omitempty" bson:"incident_id,omitempty"`
	NeedsReview bool      `json:"needs_review" bson:"needs_review"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}
