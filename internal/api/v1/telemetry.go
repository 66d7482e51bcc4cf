package v1

import (
	"fmt"
	"math"
	"time"
)

// Position is a point in the simulated world, in game-world units.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// DistanceTo returns the straight-line distance between two positions.
func (p Position) DistanceTo(other Position) float64 {
	dx := other.X - p.X
	dy := other.Y - p.Y
	dz := other.Z - p.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// TelemetrySample is one point-in-time observation of a driver's truck,
// delivered by the game-integration client at a fixed cadence.
// The engine retains only the latest sample per driver for delta rules.
type TelemetrySample struct {
	// DriverID identifies the driver the sample belongs to. Required.
	DriverID string `json:"driver_id"`

	// JobID is the job the driver is currently hauling, if any.
	// Required for route-deviation checks; other rules ignore it.
	JobID string `json:"job_id,omitempty"`

	// Timestamp is the client-side clock reading for this observation.
	Timestamp time.Time `json:"timestamp"`

	Position Position `json:"position"`

	// Speed in km/h as reported by the simulator.
	Speed float64 `json:"speed"`

	// Fuel is the remaining fuel in liters.
	Fuel float64 `json:"fuel"`

	// Damage is the accumulated truck damage percentage (0-100).
	Damage float64 `json:"damage"`

	Cargo string `json:"cargo,omitempty"`
	Route string `json:"route,omitempty"`
}

// Validate ensures the sample carries the fields rule evaluation depends on.
func (s *TelemetrySample) Validate() error {
	if s.DriverID == "" {
		return fmt.Errorf("driver_id is required")
	}
	if s.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	if s.Speed < 0 {
		return fmt.Errorf("speed must not be negative")
	}
	if s.Fuel < 0 {
		return fmt.Errorf("fuel must not be negative")
	}
	if s.Damage < 0 || s.Damage > 100 {
		return fmt.Errorf("damage must be between 0 and 100")
	}
	return nil
}
