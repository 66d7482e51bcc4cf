package anticheat

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Thresholds holds the trigger limits for every detection rule.
// All rules fire independently; one sample can trip several at once.
type Thresholds struct {
	// MaxSpeed is the realistic truck speed ceiling in km/h.
	MaxSpeed float64 `yaml:"max_speed"`

	// TeleportDistance is the maximum plausible straight-line distance
	// between two consecutive samples, in position units.
	TeleportDistance float64 `yaml:"teleport_distance"`

	// FuelJump is the largest fuel increase tolerated without a recorded
	// refuel event.
	FuelJump float64 `yaml:"fuel_jump"`

	// DamageDrop is the largest damage decrease tolerated without a
	// recorded repair event.
	DamageDrop float64 `yaml:"damage_drop"`

	// RouteDeviation is how far off the job's expected route a position
	// may drift before the deviation rule fires.
	RouteDeviation float64 `yaml:"route_deviation"`
}

// DefaultThresholds returns the built-in rule limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxSpeed:         150,
		TeleportDistance: 1000,
		FuelJump:         10,
		DamageDrop:       5,
		RouteDeviation:   500,
	}
}

const thresholdsFileName = "thresholds.yaml"

// LoadThresholds reads rule limits from dir/thresholds.yaml, overlaying the
// defaults. A missing directory or file is valid and yields the defaults
// unchanged; a malformed file or a non-positive limit is a startup error.
func LoadThresholds(dir string) (Thresholds, error) {
	t := DefaultThresholds()
	if dir == "" {
		return t, nil
	}

	path := filepath.Join(dir, thresholdsFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return t, fmt.Errorf("reading thresholds file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("parsing thresholds file %s: %w", path, err)
	}
	if err := t.validate(); err != nil {
		return t, fmt.Errorf("thresholds file %s: %w", path, err)
	}
	return t, nil
}

func (t Thresholds) validate() error {
	limits := map[string]float64{
		"max_speed":         t.MaxSpeed,
		"teleport_distance": t.TeleportDistance,
		"fuel_jump":         t.FuelJump,
		"damage_drop":       t.DamageDrop,
		"route_deviation":   t.RouteDeviation,
	}
	for name, v := range limits {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, v)
		}
	}
	return nil
}
