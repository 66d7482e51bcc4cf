package projection

import (
	"context"
	"log/slog"
	"sync"
	"time"

	v1 "github.com/convoylab/roadguard/internal/api/v1"
)

// EventDriverLocationUpdated carries a driver's position in event data
// under "x"/"y"/"z" keys.
const EventDriverLocationUpdated = "DriverLocationUpdated"

// DriverLocation is the read model's view of a driver's last position.
type DriverLocation struct {
	DriverID  string      `json:"driver_id"`
	Position  v1.Position `json:"position"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// DriverLocationModel projects DriverLocationUpdated events into a
// last-known-position view per driver.
type DriverLocationModel struct {
	mu        sync.RWMutex
	locations map[string]DriverLocation
}

func NewDriverLocationModel() *DriverLocationModel {
	return &DriverLocationModel{locations: make(map[string]DriverLocation)}
}

func (m *DriverLocationModel) EventTypes() []string {
	return []string{EventDriverLocationUpdated}
}

func (m *DriverLocationModel) Apply(ctx context.Context, event *v1.DomainEvent) {
	pos, ok := positionFromEventData(event.EventData)
	if !ok {
		slog.Warn("Driver location event missing position data",
			"event_id", event.ID,
			"aggregate_id", event.AggregateID)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[event.AggregateID] = DriverLocation{
		DriverID:  event.AggregateID,
		Position:  pos,
		UpdatedAt: event.Metadata.Timestamp,
	}
}

// Location returns the driver's last projected position.
func (m *DriverLocationModel) Location(driverID string) (DriverLocation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.locations[driverID]
	return loc, ok
}

func positionFromEventData(data map[string]any) (v1.Position, bool) {
	x, okX := numberField(data, "x")
	y, okY := numberField(data, "y")
	z, okZ := numberField(data, "z")
	if !okX || !okY || !okZ {
		return v1.Position{}, false
	}
	return v1.Position{X: x, Y: y, Z: z}, true
}

func numberField(data map[string]any, key string) (float64, bool) {
	raw, ok := data[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}
