// Package penalty defines the outbound hand-off for confirmed cheats.
package penalty

import (
	"context"
	"log/slog"

	v1 "github.com/convoylab/roadguard/internal/api/v1"
)

// Applier receives exactly one hand-off per confirmed detection.
// Implementations own delivery (driver suspension, notification fan-out);
// the engine's contract ends at the call.
type Applier interface {
	Apply(ctx context.Context, driverID string, action v1.PenaltyAction, detection *v1.Detection) error
}

// LogApplier records penalty hand-offs to the structured log. It stands in
// until a real disciplinary backend is attached.
type LogApplier struct{}

func (LogApplier) Apply(ctx context.Context, driverID string, action v1.PenaltyAction, detection *v1.Detection) error {
	slog.Info("Applying penalty",
		"driver_id", driverID,
		"action", string(action),
		"detection_id", detection.ID,
		"cheat_type", string(detection.CheatType))
	return nil
}
