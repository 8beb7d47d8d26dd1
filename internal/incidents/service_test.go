package incidents

import (
	"context"
	"errors"
	"testing"

	"webhook-ingest/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) InsertIncident(ctx context.Context, incident *models.Incident) error {
	args := m.Called(ctx, incident)
	return args.Error(0)
}

func (m *MockStore) GetIncident(ctx context.Context, incidentID string) (*models.Incident, error) {
	args := m.Called(ctx, incidentID)
	if inc := args.Get(0); inc != nil {
		return inc.(*models.Incident), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) AppendIncidentEvent(ctx context.Context, incidentID string, entry models.TimelineEntry) error {
	args := m.Called(ctx, incidentID, entry)
	return args.Error(0)
}

func (m *MockStore) UpdateIncidentStatus(ctx context.Context, incidentID string, status models.IncidentStatus) error {
	args := m.Called(ctx, incidentID, status)
	return args.Error(0)
}

func (m *MockStore) InsertAlert(ctx context.Context, alert *models.Alert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func (m *MockStore) MarkAlertNeedsReview(ctx context.Context, alertID string) error {
	args := m.Called(ctx, alertID)
	return args.Error(0)
}

func (m *MockStore) UpdateAlertSeverity(ctx context.Context, alertID string, severity models.Severity) error {
	args := m.Called(ctx, alertID, severity)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, text string) error {
	args := m.Called(ctx, text)
	return args.Error(0)
}

type MockReplayQueue struct {
	mock.Mock
}

func (m *MockReplayQueue) EnqueueReplay(ctx context.Context, eventID string) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

func newTestService() (*Service, *MockStore, *MockNotifier, *MockReplayQueue) {
	store := new(MockStore)
	notifier := new(MockNotifier)
	replay := new(MockReplayQueue)
	return NewService(store, notifier, replay, zap.NewNop()), store, notifier, replay
}

func TestRaiseAlertRunsActions(t *testing.T) {
	svc, store, notifier, replay := newTestService()

	store.On("InsertAlert", mock.Anything, mock.Anything).Return(nil)
	notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)
	replay.On("EnqueueReplay", mock.Anything, "evt_1").Return(nil)

	alert := &models.Alert{
		Type:     models.AlertProcessingFailed,
		Severity: models.SeverityMedium,
		Message:  "handler blew up",
		EventID:  "evt_1",
	}
	actions, err := svc.RaiseAlert(context.Background(), alert)

	require.NoError(t, err)
	assert.Equal(t, []models.ActionKind{models.ActionNotifyTeam, models.ActionQueueReplay}, actions)
	assert.NotEmpty(t, alert.AlertID)
	store.AssertExpectations(t)
	notifier.AssertExpectations(t)
	replay.AssertExpectations(t)
}

func TestNotifyFailureIsSwallowed(t *testing.T) {
	svc, store, notifier, replay := newTestService()

	store.On("InsertAlert", mock.Anything, mock.Anything).Return(nil)
	notifier.On("Notify", mock.Anything, mock.Anything).Return(errors.New("chat is down"))
	replay.On("EnqueueReplay", mock.Anything, "evt_2").Return(nil)

	alert := &models.Alert{
		Type:     models.AlertProcessingFailed,
		Severity: models.SeverityMedium,
		EventID:  "evt_2",
	}
	_, err := svc.RaiseAlert(context.Background(), alert)

	assert.NoError(t, err, "a failed notification must not fail the alert")
	replay.AssertExpectations(t)
}

func TestQueueReplayFailureSurfaces(t *testing.T) {
	svc, store, notifier, replay := newTestService()

	store.On("InsertAlert", mock.Anything, mock.Anything).Return(nil)
	notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)
	replay.On("EnqueueReplay", mock.Anything, "evt_3").Return(errors.New("broker unavailable"))

	alert := &models.Alert{
		Type:     models.AlertProcessingFailed,
		Severity: models.SeverityMedium,
		EventID:  "evt_3",
	}
	_, err := svc.RaiseAlert(context.Background(), alert)

	assert.Error(t, err)
}

func TestEscalateOpensLinkedIncident(t *testing.T) {
	svc, store, notifier, _ := newTestService()

	store.On("UpdateAlertSeverity", mock.Anything, "al_1", models.SeverityCritical).Return(nil)
	store.On("InsertIncident", mock.Anything, mock.MatchedBy(func(inc *models.Incident) bool {
		return inc.Status == models.IncidentStatusOpen && inc.Severity == models.SeverityCritical
	})).Return(nil)
	notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

	alert := &models.Alert{
		AlertID:  "al_1",
		Type:     models.AlertStoreDegraded,
		Severity: models.SeverityHigh,
	}
	err := svc.Execute(context.Background(), alert, []models.ActionKind{models.ActionEscalate})

	require.NoError(t, err)
	assert.Equal(t, models.SeverityCritical, alert.Severity)
	assert.NotEmpty(t, alert.IncidentID, "escalation must link an incident")
	store.AssertExpectations(t)
}

func TestCreateTicketIsANoop(t *testing.T) {
	svc, store, _, _ := newTestService()

	alert := &models.Alert{AlertID: "al_2", Type: models.AlertStoreDegraded}
	err := svc.Execute(context.Background(), alert, []models.ActionKind{models.ActionCreateTicket})

	assert.NoError(t, err)
	store.AssertNotCalled(t, "InsertIncident", mock.Anything, mock.Anything)
}

func TestUpdateIncidentStatus(t *testing.T) {
	svc, store, _, _ := newTestService()

	store.On("UpdateIncidentStatus", mock.Anything, "inc_1", models.IncidentStatusResolved).Return(nil)
	store.On("AppendIncidentEvent", mock.Anything, "inc_1", mock.MatchedBy(func(e models.TimelineEntry) bool {
		return e.Type == models.TimelineAction && e.Actor == "ops"
	})).Return(nil)

	err := svc.UpdateIncidentStatus(context.Background(), "inc_1", models.IncidentStatusResolved, "ops")

	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestUpdateIncidentStatusRejectsUnknownStatus(t *testing.T) {
	svc, store, _, _ := newTestService()

	err := svc.UpdateIncidentStatus(context.Background(), "inc_1", models.IncidentStatus("archived"), "ops")

	assert.Error(t, err)
	store.AssertNotCalled(t, "UpdateIncidentStatus", mock.Anything, mock.Anything, mock.Anything)
}
