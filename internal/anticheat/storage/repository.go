package storage

import (
	"context"
	"errors"

	v1 "github.com/convoylab/roadguard/internal/api/v1"
)

// ErrNotFound is returned when a detection or profile does not exist.
// The engine absorbs it into its soft no-op policy; it never reaches
// API callers as a hard failure.
var ErrNotFound = errors.New("not found")

// DetectionRepository holds the append-only detection history.
// Detections are never deleted; only their status advances.
type DetectionRepository interface {
	Insert(ctx context.Context, detections []*v1.Detection) error
	Get(ctx context.Context, id string) (*v1.Detection, error)
	UpdateStatus(ctx context.Context, id string, status v1.DetectionStatus) error

	// List returns detections in insertion order, filtered by driver when
	// driverID is non-empty.
	List(ctx context.Context, driverID string) ([]*v1.Detection, error)
}

// ProfileRepository holds the per-driver risk profiles.
type ProfileRepository interface {
	Get(ctx context.Context, driverID string) (*v1.DriverRiskProfile, error)
	Save(ctx context.Context, profile *v1.DriverRiskProfile) error
}
