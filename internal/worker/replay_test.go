package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"webhook-ingest/internal/models"
	"webhook-ingest/internal/queue"
	"webhook-ingest/internal/storage"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeEvents struct {
	event    *models.InboundEvent
	statuses []models.EventStatus
	retries  int
}

func (f *fakeEvents) GetEvent(ctx context.Context, eventID string) (*models.InboundEvent, error) {
	if f.event == nil || f.event.EventID != eventID {
		return nil, storage.ErrNotFound
	}
	return f.event, nil
}

func (f *fakeEvents) UpdateEventStatus(ctx context.Context, eventID string, status models.EventStatus) error {
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeEvents) IncrementEventRetry(ctx context.Context, eventID string) error {
	f.retries++
	return nil
}

type fakeDispatcher struct {
	calls    int
	failures int // fail this many calls before succeeding
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, event *models.InboundEvent) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("handler failed")
	}
	return nil
}

func newTestWorker(events EventSource, dispatcher Dispatcher) *Worker {
	w := NewWorker(nil, events, dispatcher, zap.NewNop())
	w.baseDelay = time.Millisecond
	return w
}

func TestReplaySuccess(t *testing.T) {
	events := &fakeEvents{event: &models.InboundEvent{EventID: "evt_1", EventType: "payment.succeeded"}}
	dispatcher := &fakeDispatcher{}
	w := newTestWorker(events, dispatcher)

	w.replay(context.Background(), queue.ReplayRequest{RequestID: "req_1", EventID: "evt_1"})

	assert.Equal(t, 1, dispatcher.calls)
	assert.Equal(t, []models.EventStatus{models.EventStatusReplaying, models.EventStatusProcessed}, events.statuses)
}

func TestReplayRetriesThenSucceeds(t *testing.T) {
	events := &fakeEvents{event: &models.InboundEvent{EventID: "evt_2", EventType: "payment.failed"}}
	dispatcher := &fakeDispatcher{failures: 2}
	w := newTestWorker(events, dispatcher)

	w.replay(context.Background(), queue.ReplayRequest{RequestID: "req_2", EventID: "evt_2"})

	assert.Equal(t, 3, dispatcher.calls)
	assert.Equal(t, 2, events.retries)
	assert.Equal(t, models.EventStatusProcessed, events.statuses[len(events.statuses)-1])
}

func TestReplayExhaustsRetries(t *testing.T) {
	events := &fakeEvents{event: &models.InboundEvent{EventID: "evt_3", EventType: "membership.updated"}}
	dispatcher := &fakeDispatcher{failures: 10}
	w := newTestWorker(events, dispatcher)

	w.replay(context.Background(), queue.ReplayRequest{RequestID: "req_3", EventID: "evt_3"})

	assert.Equal(t, 3, dispatcher.calls, "dispatch stops at maxRetries")
	assert.Equal(t, models.EventStatusFailed, events.statuses[len(events.statuses)-1])
}

func TestReplayUnknownEvent(t *testing.T) {
	events := &fakeEvents{}
	dispatcher := &fakeDispatcher{}
	w := newTestWorker(events, dispatcher)

	w.replay(context.Background(), queue.ReplayRequest{RequestID: "req_4", EventID: "evt_missing"})

	assert.Zero(t, dispatcher.calls)
	assert.Empty(t, events.statuses)
}
