package storage

import (
	"context"
	"errors"
	"time"

	"webhook-ingest/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("document not found")

const (
	eventsCollection      = "events"
	idempotencyCollection = "idempotency_keys"
	incidentsCollection   = "incidents"
	alertsCollection      = "alerts"
)

type MongoDB struct {
	client      *mongo.Client
	events      *mongo.Collection
	idempotency *mongo.Collection
	incidents   *mongo.Collection
	alerts      *mongo.Collection
	logger      *zap.Logger
}

func NewMongoDB(uri, database string, logger *zap.Logger) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri).
		SetMaxPoolSize(100).
		SetMaxConnIdleTime(30 * time.Second).
		SetConnectTimeout(10 * time.Second).
		SetSocketTimeout(30 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	logger.Info("Successfully connected to MongoDB",
		zap.String("database", database),
	)

	db := client.Database(database)
	m := &MongoDB{
		client:      client,
		events:      db.Collection(eventsCollection),
		idempotency: db.Collection(idempotencyCollection),
		incidents:   db.Collection(incidentsCollection),
		alerts:      db.Collection(alertsCollection),
		logger:      logger,
	}

	if err := m.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MongoDB) ensureIndexes(ctx context.Context) error {
	// The unique index on event_id is what makes MarkIfNew atomic; the TTL
	// index prunes expired records best-effort.
	_, err := m.idempotency.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	})
	if err != nil {
		return err
	}

	_, err = m.events.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "event_type", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "received_at", Value: 1}},
		},
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "event_type", Value: 1},
			},
		},
	})
	if err != nil {
		return err
	}

	_, err = m.incidents.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "incident_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}},
		},
	})
	if err != nil {
		return err
	}

	_, err = m.alerts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "alert_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "event_id", Value: 1}},
		},
	})
	return err
}

// MarkIfNew is the atomic check-and-set behind the idempotency contract.
// The unique index on event_id serializes concurrent callers: the insert
// succeeds for exactly one of them. On a duplicate key the existing record
// is taken over only if it has expired, via a conditional replace.
func (m *MongoDB) MarkIfNew(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	record := models.IdempotencyRecord{
		EventID:   eventID,
		SeenAt:    now,
		ExpiresAt: now.Add(ttl),
	}

	_, err := m.idempotency.InsertOne(ctx, record)
	if err == nil {
		return true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return false, err
	}

	res := m.idempotency.FindOneAndReplace(ctx,
		bson.M{"event_id": eventID, "expires_at": bson.M{"$lte": now}},
		record,
	)
	if res.Err() == nil {
		return true, nil
	}
	if errors.Is(res.Err(), mongo.ErrNoDocuments) {
		// A live record exists: already handled.
		return false, nil
	}
	return false, res.Err()
}

// UpsertEvent persists the event document keyed by event_id. Replays write
// the same id again, so this is a replace-or-create, not a bare insert.
func (m *MongoDB) UpsertEvent(ctx context.Context, event *models.InboundEvent) error {
	if event.Status == "" {
		event.Status = string(models.EventStatusRouted)
	}

	doc := bson.M{
		"event_id":    event.EventID,
		"event_type":  event.EventType,
		"payload":     string(event.Payload),
		"derived_id":  event.DerivedID,
		"received_at": event.ReceivedAt,
		"status":      event.Status,
		"retry_count": event.RetryCount,
	}

	_, err := m.events.ReplaceOne(ctx,
		bson.M{"event_id": event.EventID},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		m.logger.Error("Failed to upsert event",
			zap.Error(err),
			zap.String("event_id", event.EventID))
		return err
	}
	return nil
}

func (m *MongoDB) GetEvent(ctx context.Context, eventID string) (*models.InboundEvent, error) {
	var doc struct {
		models.InboundEvent `bson:",inline"`
		Payload             string `bson:"payload"`
	}
	err := m.events.FindOne(ctx, bson.M{"event_id": eventID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	event := doc.InboundEvent
	event.Payload = []byte(doc.Payload)
	return &event, nil
}

func (m *MongoDB) UpdateEventStatus(ctx context.Context, eventID string, status models.EventStatus) error {
	filter := bson.M{"event_id": eventID}

	update := bson.M{
		"$set": bson.M{
			"status":     status,
			"updated_at": time.Now().UTC(),
		},
	}

	_, err := m.events.UpdateOne(ctx, filter, update)
	return err
}

func (m *MongoDB) IncrementEventRetry(ctx context.Context, eventID string) error {
	update := bson.M{
		"$inc": bson.M{"retry_count": 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	_, err := m.events.UpdateOne(ctx, bson.M{"event_id": eventID}, update)
	return err
}

func (m *MongoDB) GetEventsByStatus(ctx context.Context, status models.EventStatus) ([]*models.InboundEvent, error) {
	cursor, err := m.events.Find(ctx, bson.M{"status": status})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []*models.InboundEvent
	for cursor.Next(ctx) {
		var doc struct {
			models.InboundEvent `bson:",inline"`
			Payload             string `bson:"payload"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		event := doc.InboundEvent
		event.Payload = []byte(doc.Payload)
		events = append(events, &event)
	}
	return events, cursor.Err()
}

func (m *MongoDB) InsertIncident(ctx context.Context, incident *models.Incident) error {
	_, err := m.incidents.InsertOne(ctx, incident)
	if err != nil {
		m.logger.Error("Failed to insert incident",
			zap.Error(err),
			zap.String("incident_id", incident.IncidentID))
	}
	return err
}

func (m *MongoDB) GetIncident(ctx context.Context, incidentID string) (*models.Incident, error) {
	var incident models.Incident
	err := m.incidents.FindOne(ctx, bson.M{"incident_id": incidentID}).Decode(&incident)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &incident, nil
}

// AppendIncidentEvent pushes one entry onto the incident timeline. Prior
// entries are never removed.
func (m *MongoDB) AppendIncidentEvent(ctx context.Context, incidentID string, entry models.TimelineEntry) error {
	update := bson.M{
		"$push": bson.M{"timeline": entry},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}

	res, err := m.incidents.UpdateOne(ctx, bson.M{"incident_id": incidentID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoDB) UpdateIncidentStatus(ctx context.Context, incidentID string, status models.IncidentStatus) error {
	update := bson.M{
		"$set": bson.M{
			"status":     status,
			"updated_at": time.Now().UTC(),
		},
	}

	res, err := m.incidents.UpdateOne(ctx, bson.M{"incident_id": incidentID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoDB) InsertAlert(ctx context.Context, alert *models.Alert) error {
	_, err := m.alerts.InsertOne(ctx, alert)
	if err != nil {
		m.logger.Error("Failed to insert alert",
			zap.Error(err),
			zap.String("alert_id", alert.AlertID))
	}
	return err
}

func (m *MongoDB) MarkAlertNeedsReview(ctx context.Context, alertID string) error {
	update := bson.M{"$set": bson.M{"needs_review": true}}
	_, err := m.alerts.UpdateOne(ctx, bson.M{"alert_id": alertID}, update)
	return err
}

func (m *MongoDB) UpdateAlertSeverity(ctx context.Context, alertID string, severity models.Severity) error {
	update := bson.M{"$set": bson.M{"severity": severity}}
	_, err := m.alerts.UpdateOne(ctx, bson.M{"alert_id": alertID}, update)
	return err
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
