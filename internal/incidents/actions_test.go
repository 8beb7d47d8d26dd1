package incidents

import (
	"testing"

	"webhook-ingest/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestActionsFor(t *testing.T) {
	tests := []struct {
		name  string
		alert models.Alert
		want  []models.ActionKind
	}{
		{
			name:  "processing failure with event id",
			alert: models.Alert{Type: models.AlertProcessingFailed, Severity: models.SeverityMedium, EventID: "evt_1"},
			want:  []models.ActionKind{models.ActionNotifyTeam, models.ActionQueueReplay},
		},
		{
			name:  "processing failure without event id skips replay",
			alert: models.Alert{Type: models.AlertProcessingFailed, Severity: models.SeverityMedium},
			want:  []models.ActionKind{models.ActionNotifyTeam},
		},
		{
			name:  "high severity processing failure escalates",
			alert: models.Alert{Type: models.AlertProcessingFailed, Severity: models.SeverityHigh, EventID: "evt_2"},
			want:  []models.ActionKind{models.ActionNotifyTeam, models.ActionQueueReplay, models.ActionEscalate},
		},
		{
			name:  "signature failure flags for review",
			alert: models.Alert{Type: models.AlertSignatureFailure, Severity: models.SeverityLow},
			want:  []models.ActionKind{models.ActionMarkNeedsReview},
		},
		{
			name:  "repeated signature failures also notify",
			alert: models.Alert{Type: models.AlertSignatureFailure, Severity: models.SeverityHigh},
			want:  []models.ActionKind{models.ActionMarkNeedsReview, models.ActionNotifyTeam},
		},
		{
			name:  "store degradation",
			alert: models.Alert{Type: models.AlertStoreDegraded, Severity: models.SeverityCritical},
			want:  []models.ActionKind{models.ActionNotifyTeam, models.ActionEscalate, models.ActionCreateTicket},
		},
		{
			name:  "unknown low severity alert gets no actions",
			alert: models.Alert{Type: "something_else", Severity: models.SeverityLow},
			want:  nil,
		},
		{
			name:  "unknown medium severity alert flagged for review",
			alert: models.Alert{Type: "something_else", Severity: models.SeverityMedium},
			want:  []models.ActionKind{models.ActionMarkNeedsReview},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ActionsFor(&tt.alert))
		})
	}
}

func TestSeverityEscalated(t *testing.T) {
	assert.Equal(t, models.SeverityMedium, models.SeverityLow.Escalated())
	assert.Equal(t, models.SeverityHigh, models.SeverityMedium.Escalated())
	assert.Equal(t, models.SeverityCritical, models.SeverityHigh.Escalated())
	assert.Equal(t, models.SeverityCritical, models.SeverityCritical.Escalated(), "critical is the cap")
}
