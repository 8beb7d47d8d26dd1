package incidents

import "webhook-ingest/internal/models"

// ActionsFor maps an alert's type and severity to the actions to execute.
// Pure function, no side effects; Execute carries them out.
func ActionsFor(alert *models.Alert) []models.ActionKind {
	var actions []models.ActionKind

	switch alert.Type {
	case models.AlertProcessingFailed:
		actions = append(actions, models.ActionNotifyTeam)
		if alert.EventID != "" {
			actions = append(actions, models.ActionQueueReplay)
		}
		if alert.Severity.AtLeast(models.SeverityHigh) {
			actions = append(actions, models.ActionEscalate)
		}
	case models.AlertSignatureFailure:
		actions = append(actions, models.ActionMarkNeedsReview)
		if alert.Severity.AtLeast(models.SeverityHigh) {
			actions = append(actions, models.ActionNotifyTeam)
		}
	case models.AlertStoreDegraded:
		actions = append(actions,
			models.ActionNotifyTeam,
			models.ActionEscalate,
			models.ActionCreateTicket,
		)
	default:
		if alert.Severity.AtLeast(models.SeverityMedium) {
			actions = append(actions, models.ActionMarkNeedsReview)
		}
	}

	return actions
}
