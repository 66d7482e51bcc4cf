// Package eventstore implements the append-only domain event log with
// optimistic concurrency control and projection fan-out.
package eventstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	v1 "github.com/convoylab/roadguard/internal/api/v1"
	"github.com/convoylab/roadguard/internal/core/keylock"
	"github.com/convoylab/roadguard/internal/eventstore/storage"
)

// ErrValidation marks malformed append/read requests that should be
// rejected before any state mutation (HTTP 400 at the API layer).
var ErrValidation = errors.New("invalid event store request")

// ConflictError reports an expected-version mismatch on append.
// The store never retries; refreshing the version and retrying is caller
// policy.
type ConflictError struct {
	AggregateID     string
	ExpectedVersion int
	ActualVersion   int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrency conflict on aggregate %s: expected version %d, got %d",
		e.AggregateID, e.ExpectedVersion, e.ActualVersion)
}

// Subscriber receives each successfully appended event, in append order.
// Delivery happens synchronously on the appending goroutine; subscribers
// absorb their own failures (a projection falling behind must not fail the
// append that already committed).
type Subscriber interface {
	HandleEvent(ctx context.Context, event *v1.DomainEvent)
}

// Service is the event store. It owns version assignment: the
// expected-version check and the write are serialized per aggregate by a
// key lock, so no append to the same aggregate can interleave between the
// check and the write. Appends to distinct aggregates run concurrently.
type Service struct {
	log         storage.EventLog
	locks       *keylock.KeyLock
	subscribers []Subscriber
	nowFn       func() time.Time
	idFn        func() string
}

// NewService creates an event store backed by log. Subscribers are
// notified of every appended event.
func NewService(log storage.EventLog, subscribers ...Subscriber) *Service {
	if log == nil {
		panic("eventstore: log must not be nil")
	}
	return &Service{
		log:         log,
		locks:       keylock.New(),
		subscribers: subscribers,
		nowFn:       func() time.Time { return time.Now().UTC() },
		idFn:        uuid.NewString,
	}
}

// Subscribe attaches an additional subscriber. Not safe to call after the
// store has started serving appends.
func (s *Service) Subscribe(sub Subscriber) {
	s.subscribers = append(s.subscribers, sub)
}

// AppendEvents appends the batch to aggregateID's stream if and only if
// the stream's current version equals expectedVersion. On success every
// event is assigned an id, a timestamp and a contiguous version starting
// at expectedVersion+1, in batch order, and the batch shares one
// correlation id. The batch is all-or-nothing.
func (s *Service) AppendEvents(ctx context.Context, aggregateID string, expectedVersion int, batch []v1.NewEvent) ([]*v1.DomainEvent, error) {
	if aggregateID == "" {
		return nil, fmt.Errorf("%w: aggregate_id is required", ErrValidation)
	}
	if expectedVersion < 0 {
		return nil, fmt.Errorf("%w: expected_version must not be negative", ErrValidation)
	}
	if len(batch) == 0 {
		return nil, fmt.Errorf("%w: events must not be empty", ErrValidation)
	}
	for i := range batch {
		if err := batch[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: events[%d]: %s", ErrValidation, i, err)
		}
	}

	s.locks.Lock(aggregateID)
	defer s.locks.Unlock(aggregateID)

	actual, err := s.log.Version(ctx, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("read aggregate version: %w", err)
	}
	if actual != expectedVersion {
		return nil, &ConflictError{
			AggregateID:     aggregateID,
			ExpectedVersion: expectedVersion,
			ActualVersion:   actual,
		}
	}

	now := s.nowFn()
	correlationID := s.idFn()
	events := make([]*v1.DomainEvent, len(batch))
	for i, in := range batch {
		events[i] = &v1.DomainEvent{
			ID:            s.idFn(),
			AggregateID:   aggregateID,
			AggregateType: in.AggregateType,
			EventType:     in.EventType,
			EventData:     in.EventData,
			Metadata: v1.EventMetadata{
				Timestamp:     now,
				Version:       expectedVersion + i + 1,
				CorrelationID: correlationID,
				CausationID:   in.CausationID,
			},
		}
	}

	if err := s.log.Append(ctx, aggregateID, events); err != nil {
		return nil, fmt.Errorf("append events: %w", err)
	}

	slog.Info("Appended events",
		"aggregate_id", aggregateID,
		"count", len(events),
		"new_version", expectedVersion+len(events))

	// Fan out inside the aggregate lock so subscribers observe events for
	// one aggregate in strict version order.
	for _, event := range events {
		s.publish(ctx, event)
	}

	return events, nil
}

// GetEventStream returns aggregateID's events with version > fromVersion
// in ascending version order. Unknown aggregates yield an empty stream.
func (s *Service) GetEventStream(ctx context.Context, aggregateID string, fromVersion int) (*v1.EventStream, error) {
	if aggregateID == "" {
		return nil, fmt.Errorf("%w: aggregate_id is required", ErrValidation)
	}
	if fromVersion < 0 {
		return nil, fmt.Errorf("%w: from_version must not be negative", ErrValidation)
	}

	events, err := s.log.Stream(ctx, aggregateID, fromVersion)
	if err != nil {
		return nil, fmt.Errorf("read event stream: %w", err)
	}

	version := fromVersion
	if len(events) > 0 {
		version = events[len(events)-1].Metadata.Version
	}
	return &v1.EventStream{
		AggregateID: aggregateID,
		Events:      events,
		Version:     version,
	}, nil
}

// GetAggregateVersion returns the highest version recorded for the
// aggregate, or 0 when it has no events.
func (s *Service) GetAggregateVersion(ctx context.Context, aggregateID string) (int, error) {
	if aggregateID == "" {
		return 0, fmt.Errorf("%w: aggregate_id is required", ErrValidation)
	}
	return s.log.Version(ctx, aggregateID)
}

func (s *Service) publish(ctx context.Context, event *v1.DomainEvent) {
	slog.Debug("Publishing event",
		"event_type", event.EventType,
		"aggregate_type", event.AggregateType,
		"aggregate_id", event.AggregateID,
		"version", event.Metadata.Version)

	for _, sub := range s.subscribers {
		sub.HandleEvent(ctx, event)
	}
}
