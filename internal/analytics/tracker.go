// Package analytics accumulates deterministic per-driver rollups from the
// telemetry stream: distance covered, speed statistics and fuel burned.
package analytics

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	v1 "github.com/convoylab/roadguard/internal/api/v1"
)

// DriverStats is the rollup for one driver over the process lifetime.
// Decimal keeps the running sums exact; floating-point drift compounds
// over a 1 Hz telemetry stream.
type DriverStats struct {
	DriverID     string          `json:"driver_id"`
	Samples      int64           `json:"samples"`
	Distance     decimal.Decimal `json:"distance"`
	AvgSpeed     decimal.Decimal `json:"avg_speed"`
	MaxSpeed     decimal.Decimal `json:"max_speed"`
	FuelConsumed decimal.Decimal `json:"fuel_consumed"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type driverAccum struct {
	samples      int64
	speedSum     decimal.Decimal
	maxSpeed     decimal.Decimal
	distance     decimal.Decimal
	fuelConsumed decimal.Decimal
	last         v1.TelemetrySample
	hasLast      bool
	updatedAt    time.Time
}

// Tracker folds telemetry samples into per-driver rollups.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*driverAccum
}

func NewTracker() *Tracker {
	return &Tracker{stats: make(map[string]*driverAccum)}
}

// Record folds one sample into the driver's rollup. Fuel consumption only
// counts decreases; refuels reset the baseline without going negative.
func (t *Tracker) Record(sample *v1.TelemetrySample) {
	t.mu.Lock()
	defer t.mu.Unlock()

	acc, ok := t.stats[sample.DriverID]
	if !ok {
		acc = &driverAccum{}
		t.stats[sample.DriverID] = acc
	}

	speed := decimal.NewFromFloat(sample.Speed)
	acc.samples++
	acc.speedSum = acc.speedSum.Add(speed)
	if speed.GreaterThan(acc.maxSpeed) {
		acc.maxSpeed = speed
	}

	if acc.hasLast {
		dist := acc.last.Position.DistanceTo(sample.Position)
		acc.distance = acc.distance.Add(decimal.NewFromFloat(dist))

		if burned := acc.last.Fuel - sample.Fuel; burned > 0 {
			acc.fuelConsumed = acc.fuelConsumed.Add(decimal.NewFromFloat(burned))
		}
	}

	acc.last = *sample
	acc.hasLast = true
	acc.updatedAt = sample.Timestamp
}

// Stats returns the rollup for driverID.
func (t *Tracker) Stats(driverID string) (DriverStats, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	acc, ok := t.stats[driverID]
	if !ok {
		return DriverStats{}, false
	}

	avg := decimal.Zero
	if acc.samples > 0 {
		avg = acc.speedSum.DivRound(decimal.NewFromInt(acc.samples), 4)
	}
	return DriverStats{
		DriverID:     driverID,
		Samples:      acc.samples,
		Distance:     acc.distance,
		AvgSpeed:     avg,
		MaxSpeed:     acc.maxSpeed,
		FuelConsumed: acc.fuelConsumed,
		UpdatedAt:    acc.updatedAt,
	}, true
}
