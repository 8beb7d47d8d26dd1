package models

import (
	"encoding/json"
	"time"
)

// InboundEvent is the verified, parsed form of one webhook delivery. It is
// only constructed after signature verification succeeds; the payload stays
// opaque to the router.
type InboundEvent struct {
	EventID   string          `json:"event_id" bson:"event_id"`
	EventType string          `json:"event_type" bson:"event_type"`
	Payload   json.RawMessage `json:"payload" bson:"-"`

	// DerivedID marks events whose sender supplied no identifier, so the
	// id was derived from the payload. Dedup for these is best-effort.
	DerivedID bool `json:"derived_id,omitempty" bson:"derived_id"`

	// Metadata
	ReceivedAt time.Time `json:"-" bson:"received_at"`
	UpdatedAt  time.Time `json:"-" bson:"updated_at"`
	RetryCount int       `json:"-" bson:"retry_count"`
	Status     string    `json:"-" bson:"status"`
}

// EventStatus represents the possible states of a stored event
type EventStatus string

const (
	EventStatusRouted    EventStatus = "routed"
	EventStatusProcessed EventStatus = "processed"
	EventStatusFailed    EventStatus = "failed"
	EventStatusReplaying EventStatus = "replaying"
)

// IdempotencyRecord is one row per event id ever seen. Created on first
// sighting, never mutated; a lookup after ExpiresAt is treated as unseen.
type IdempotencyRecord struct {
	EventID   string    `bson:"event_id"`
	SeenAt    time.Time `bson:"seen_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}
