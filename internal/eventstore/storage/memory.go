package storage

import (
	"context"
	"sync"

	v1 "github.com/convoylab/roadguard/internal/api/v1"
)

// MemoryLog is an in-memory implementation of EventLog.
// Useful for testing and single-node development deployments.
type MemoryLog struct {
	mu      sync.RWMutex
	streams map[string][]*v1.DomainEvent
}

// NewMemoryLog creates an empty in-memory event log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{streams: make(map[string][]*v1.DomainEvent)}
}

func (l *MemoryLog) Append(ctx context.Context, aggregateID string, events []*v1.DomainEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	stream := l.streams[aggregateID]
	have := make(map[int]struct{}, len(stream))
	for _, e := range stream {
		have[e.Metadata.Version] = struct{}{}
	}
	for _, e := range events {
		if _, dup := have[e.Metadata.Version]; dup {
			return ErrVersionExists
		}
	}

	// Store copies to keep the log immutable from the caller's side.
	for _, e := range events {
		copy := *e
		stream = append(stream, &copy)
	}
	l.streams[aggregateID] = stream
	return nil
}

func (l *MemoryLog) Stream(ctx context.Context, aggregateID string, fromVersion int) ([]*v1.DomainEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []*v1.DomainEvent
	for _, e := range l.streams[aggregateID] {
		if e.Metadata.Version > fromVersion {
			copy := *e
			result = append(result, &copy)
		}
	}
	// Appends always arrive in version order, so the stream is already sorted.
	return result, nil
}

func (l *MemoryLog) Version(ctx context.Context, aggregateID string) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	version := 0
	for _, e := range l.streams[aggregateID] {
		if e.Metadata.Version > version {
			version = e.Metadata.Version
		}
	}
	return version, nil
}
