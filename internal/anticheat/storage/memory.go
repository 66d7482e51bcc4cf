package storage

import (
	"context"
	"sync"

	v1 "github.com/convoylab/roadguard/internal/api/v1"
)

// MemoryDetectionRepository is an in-memory DetectionRepository.
type MemoryDetectionRepository struct {
	mu         sync.RWMutex
	order      []string
	detections map[string]*v1.Detection
}

func NewMemoryDetectionRepository() *MemoryDetectionRepository {
	return &MemoryDetectionRepository{detections: make(map[string]*v1.Detection)}
}

func (r *MemoryDetectionRepository) Insert(ctx context.Context, detections []*v1.Detection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range detections {
		copy := *d
		r.detections[d.ID] = &copy
		r.order = append(r.order, d.ID)
	}
	return nil
}

func (r *MemoryDetectionRepository) Get(ctx context.Context, id string) (*v1.Detection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.detections[id]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *d
	return &copy, nil
}

func (r *MemoryDetectionRepository) UpdateStatus(ctx context.Context, id string, status v1.DetectionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.detections[id]
	if !ok {
		return ErrNotFound
	}
	d.Status = status
	return nil
}

func (r *MemoryDetectionRepository) List(ctx context.Context, driverID string) ([]*v1.Detection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*v1.Detection
	for _, id := range r.order {
		d := r.detections[id]
		if driverID != "" && d.DriverID != driverID {
			continue
		}
		copy := *d
		result = append(result, &copy)
	}
	return result, nil
}

// MemoryProfileRepository is an in-memory ProfileRepository.
type MemoryProfileRepository struct {
	mu       sync.RWMutex
	profiles map[string]*v1.DriverRiskProfile
}

func NewMemoryProfileRepository() *MemoryProfileRepository {
	return &MemoryProfileRepository{profiles: make(map[string]*v1.DriverRiskProfile)}
}

func (r *MemoryProfileRepository) Get(ctx context.Context, driverID string) (*v1.DriverRiskProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[driverID]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *p
	copy.Violations = append([]v1.Detection(nil), p.Violations...)
	return &copy, nil
}

func (r *MemoryProfileRepository) Save(ctx context.Context, profile *v1.DriverRiskProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copy := *profile
	copy.Violations = append([]v1.Detection(nil), profile.Violations...)
	r.profiles[profile.DriverID] = &copy
	return nil
}
