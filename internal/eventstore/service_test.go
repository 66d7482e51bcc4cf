package eventstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	v1 "github.com/convoylab/roadguard/internal/api/v1"
	"github.com/convoylab/roadguard/internal/eventstore/storage"
)

func newInput(eventType string) v1.NewEvent {
	return v1.NewEvent{
		AggregateType: "driver",
		EventType:     eventType,
		EventData:     map[string]any{"k": "v"},
	}
}

// recordingSubscriber captures dispatched events in arrival order.
type recordingSubscriber struct {
	mu     sync.Mutex
	events []*v1.DomainEvent
}

func (r *recordingSubscriber) HandleEvent(ctx context.Context, event *v1.DomainEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func TestService_AppendEvents_SequentialVersions(t *testing.T) {
	svc := NewService(storage.NewMemoryLog())
	ctx := context.Background()

	const n = 5
	version := 0
	for i := 0; i < n; i++ {
		events, err := svc.AppendEvents(ctx, "driver-1", version, []v1.NewEvent{newInput("CheatDetected")})
		require.NoError(t, err)
		require.Len(t, events, 1)
		version = events[0].Metadata.Version
	}

	got, err := svc.GetAggregateVersion(ctx, "driver-1")
	require.NoError(t, err)
	require.Equal(t, n, got)

	stream, err := svc.GetEventStream(ctx, "driver-1", 0)
	require.NoError(t, err)
	require.Len(t, stream.Events, n)
	require.Equal(t, n, stream.Version)
	for i, e := range stream.Events {
		require.Equal(t, i+1, e.Metadata.Version)
		require.NotEmpty(t, e.ID)
		require.False(t, e.Metadata.Timestamp.IsZero())
	}
}

func TestService_AppendEvents_BatchAssignsContiguousVersions(t *testing.T) {
	svc := NewService(storage.NewMemoryLog())
	ctx := context.Background()

	batch := []v1.NewEvent{newInput("JobCreated"), newInput("JobStatusChanged"), newInput("JobStatusChanged")}
	events, err := svc.AppendEvents(ctx, "job-1", 0, batch)
	require.NoError(t, err)
	require.Len(t, events, 3)

	correlation := events[0].Metadata.CorrelationID
	require.NotEmpty(t, correlation)
	for i, e := range events {
		require.Equal(t, i+1, e.Metadata.Version)
		require.Equal(t, correlation, e.Metadata.CorrelationID)
	}
}

func TestService_AppendEvents_ConcurrencyConflict(t *testing.T) {
	svc := NewService(storage.NewMemoryLog())
	ctx := context.Background()

	_, err := svc.AppendEvents(ctx, "driver-1", 0, []v1.NewEvent{newInput("CheatDetected")})
	require.NoError(t, err)

	// Stale expected version.
	_, err = svc.AppendEvents(ctx, "driver-1", 0, []v1.NewEvent{newInput("CheatDetected")})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, "driver-1", conflict.AggregateID)
	require.Equal(t, 0, conflict.ExpectedVersion)
	require.Equal(t, 1, conflict.ActualVersion)

	// Nothing was appended by the failed call.
	version, err := svc.GetAggregateVersion(ctx, "driver-1")
	require.NoError(t, err)
	require.Equal(t, 1, version)

	stream, err := svc.GetEventStream(ctx, "driver-1", 0)
	require.NoError(t, err)
	require.Len(t, stream.Events, 1)
}

func TestService_AppendEvents_Validation(t *testing.T) {
	svc := NewService(storage.NewMemoryLog())
	ctx := context.Background()

	tests := []struct {
		name        string
		aggregateID string
		expected    int
		batch       []v1.NewEvent
	}{
		{name: "empty aggregate id", aggregateID: "", expected: 0, batch: []v1.NewEvent{newInput("E")}},
		{name: "negative expected version", aggregateID: "a", expected: -1, batch: []v1.NewEvent{newInput("E")}},
		{name: "empty batch", aggregateID: "a", expected: 0, batch: nil},
		{name: "missing event type", aggregateID: "a", expected: 0, batch: []v1.NewEvent{{AggregateType: "driver"}}},
		{name: "missing aggregate type", aggregateID: "a", expected: 0, batch: []v1.NewEvent{{EventType: "E"}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AppendEvents(ctx, tc.aggregateID, tc.expected, tc.batch)
			require.ErrorIs(t, err, ErrValidation)
		})
	}

	// No mutation happened.
	version, err := svc.GetAggregateVersion(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 0, version)
}

func TestService_GetEventStream_FromVersion(t *testing.T) {
	svc := NewService(storage.NewMemoryLog())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := svc.AppendEvents(ctx, "driver-1", i, []v1.NewEvent{newInput("CheatDetected")})
		require.NoError(t, err)
	}

	tests := []struct {
		fromVersion int
		wantLen     int
		wantVersion int
	}{
		{fromVersion: 0, wantLen: 4, wantVersion: 4},
		{fromVersion: 2, wantLen: 2, wantVersion: 4},
		{fromVersion: 4, wantLen: 0, wantVersion: 4},
		{fromVersion: 99, wantLen: 0, wantVersion: 99},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("from_%d", tc.fromVersion), func(t *testing.T) {
			stream, err := svc.GetEventStream(ctx, "driver-1", tc.fromVersion)
			require.NoError(t, err)
			require.Len(t, stream.Events, tc.wantLen)
			require.Equal(t, tc.wantVersion, stream.Version)
			for i, e := range stream.Events {
				require.Equal(t, tc.fromVersion+i+1, e.Metadata.Version)
			}
		})
	}
}

func TestService_GetEventStream_UnknownAggregate(t *testing.T) {
	svc := NewService(storage.NewMemoryLog())

	stream, err := svc.GetEventStream(context.Background(), "ghost", 0)
	require.NoError(t, err)
	require.Empty(t, stream.Events)
	require.Equal(t, 0, stream.Version)
}

func TestService_SubscriberReceivesEventsInOrder(t *testing.T) {
	sub := &recordingSubscriber{}
	svc := NewService(storage.NewMemoryLog(), sub)
	ctx := context.Background()

	_, err := svc.AppendEvents(ctx, "driver-1", 0, []v1.NewEvent{newInput("A"), newInput("B")})
	require.NoError(t, err)
	_, err = svc.AppendEvents(ctx, "driver-1", 2, []v1.NewEvent{newInput("C")})
	require.NoError(t, err)

	require.Len(t, sub.events, 3)
	require.Equal(t, "A", sub.events[0].EventType)
	require.Equal(t, "B", sub.events[1].EventType)
	require.Equal(t, "C", sub.events[2].EventType)
	for i, e := range sub.events {
		require.Equal(t, i+1, e.Metadata.Version)
	}
}

func TestService_ConcurrentAppends_RetryLoop(t *testing.T) {
	svc := NewService(storage.NewMemoryLog())
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			for {
				version, err := svc.GetAggregateVersion(ctx, "driver-1")
				if err != nil {
					t.Error(err)
					return
				}
				_, err = svc.AppendEvents(ctx, "driver-1", version, []v1.NewEvent{newInput("CheatDetected")})
				if err == nil {
					return
				}
				var conflict *ConflictError
				if !errors.As(err, &conflict) {
					t.Error(err)
					return
				}
				// Lost the race; re-read and retry.
			}
		}()
	}
	wg.Wait()

	stream, err := svc.GetEventStream(ctx, "driver-1", 0)
	require.NoError(t, err)
	require.Len(t, stream.Events, writers)
	for i, e := range stream.Events {
		require.Equal(t, i+1, e.Metadata.Version)
	}
}

func TestService_ConcurrentAppends_DistinctAggregates(t *testing.T) {
	svc := NewService(storage.NewMemoryLog())
	ctx := context.Background()

	const aggregates = 16
	var wg sync.WaitGroup
	wg.Add(aggregates)
	for i := 0; i < aggregates; i++ {
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("driver-%d", n)
			if _, err := svc.AppendEvents(ctx, id, 0, []v1.NewEvent{newInput("CheatDetected")}); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < aggregates; i++ {
		version, err := svc.GetAggregateVersion(ctx, fmt.Sprintf("driver-%d", i))
		require.NoError(t, err)
		require.Equal(t, 1, version)
	}
}
