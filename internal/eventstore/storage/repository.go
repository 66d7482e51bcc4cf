package storage

import (
	"context"
	"errors"

	v1 "github.com/convoylab/roadguard/internal/api/v1"
)

// ErrVersionExists is returned by Append when one of the batch's assigned
// versions is already present for the aggregate. The service layer prevents
// this under its per-aggregate lock; durable implementations keep a unique
// constraint as a backstop and surface it through this sentinel.
var ErrVersionExists = errors.New("event version already exists")

// EventLog is the persistence interface for the append-only event log.
// Implementations never mutate or delete stored events.
type EventLog interface {
	// Append persists the batch for aggregateID atomically: either every
	// event is stored or none is. Events arrive with ID and Metadata
	// already assigned, versions contiguous and ascending.
	Append(ctx context.Context, aggregateID string, events []*v1.DomainEvent) error

	// Stream returns the aggregate's events with version > fromVersion,
	// ordered ascending by version. A missing aggregate yields an empty
	// slice, not an error.
	Stream(ctx context.Context, aggregateID string, fromVersion int) ([]*v1.DomainEvent, error)

	// Version returns the highest stored version for the aggregate,
	// or 0 when no events exist.
	Version(ctx context.Context, aggregateID string) (int, error)
}
