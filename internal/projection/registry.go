// Package projection maintains read-optimized views derived from the
// event log. The event store feeds every appended event to the Registry,
// which routes it to the handlers registered for its type.
package projection

import (
	"context"
	"log/slog"

	v1 "github.com/convoylab/roadguard/internal/api/v1"
)

// Handler applies one domain event to a read model. Handlers absorb their
// own failures; a read model falling behind must not fail the append that
// already committed.
type Handler interface {
	// EventTypes lists the event types the handler consumes.
	EventTypes() []string

	Apply(ctx context.Context, event *v1.DomainEvent)
}

// Registry dispatches appended events to read-model handlers. It
// implements the event store's Subscriber contract: events for one
// aggregate arrive in version order, each exactly once.
type Registry struct {
	handlers map[string][]Handler
}

// NewRegistry builds a registry over the given handlers.
func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[string][]Handler)}
	for _, h := range handlers {
		for _, t := range h.EventTypes() {
			r.handlers[t] = append(r.handlers[t], h)
		}
	}
	return r
}

func (r *Registry) HandleEvent(ctx context.Context, event *v1.DomainEvent) {
	matched := r.handlers[event.EventType]
	if len(matched) == 0 {
		return
	}

	slog.Debug("Updating projections",
		"event_type", event.EventType,
		"aggregate_id", event.AggregateID,
		"handlers", len(matched))

	for _, h := range matched {
		h.Apply(ctx, event)
	}
}
