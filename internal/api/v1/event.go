package v1

import (
	"fmt"
	"time"
)

// EventMetadata is the system-assigned envelope of a stored domain event.
type EventMetadata struct {
	// Timestamp is the server-side clock reading at append time.
	Timestamp time.Time `json:"timestamp"`

	// Version is the event's position in its aggregate's stream.
	// Versions start at 1 and increase by exactly one per event.
	Version int `json:"version"`

	// CorrelationID ties together all events appended in one batch.
	CorrelationID string `json:"correlation_id,omitempty"`

	// CausationID points at the event or command that led to this one.
	CausationID string `json:"causation_id,omitempty"`
}

// DomainEvent is one immutable entry in the append-only event log.
// Events are created only through a successful append and never mutated
// or deleted afterwards; the log is the source of truth.
type DomainEvent struct {
	ID            string         `json:"id"`
	AggregateID   string         `json:"aggregate_id"`
	AggregateType string         `json:"aggregate_type"`
	EventType     string         `json:"event_type"`
	EventData     map[string]any `json:"event_data"`
	Metadata      EventMetadata  `json:"metadata"`
}

// NewEvent is the caller-supplied portion of an event, before the store
// assigns ID and Metadata.
type NewEvent struct {
	AggregateType string         `json:"aggregate_type"`
	EventType     string         `json:"event_type"`
	EventData     map[string]any `json:"event_data,omitempty"`
	CausationID   string         `json:"causation_id,omitempty"`
}

// Validate checks the caller-supplied event fields.
func (e *NewEvent) Validate() error {
	if e.AggregateType == "" {
		return fmt.Errorf("aggregate_type is required")
	}
	if e.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	return nil
}

// EventStream is a read of one aggregate's events above a version cutoff.
// Version is the highest version present in Events, or the cutoff itself
// when the read returned nothing.
type EventStream struct {
	AggregateID string         `json:"aggregate_id"`
	Events      []*DomainEvent `json:"events"`
	Version     int            `json:"version"`
}
