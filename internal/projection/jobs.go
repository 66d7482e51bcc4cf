package projection

import (
	"context"
	"log/slog"
	"sync"
	"time"

	v1 "github.com/convoylab/roadguard/internal/api/v1"
)

// Job lifecycle event types consumed by the job read model.
const (
	EventJobCreated       = "JobCreated"
	EventJobStatusChanged = "JobStatusChanged"
)

// JobView is the read model's record for one job.
type JobView struct {
	JobID     string    `json:"job_id"`
	DriverID  string    `json:"driver_id,omitempty"`
	Status    string    `json:"status"`
	Cargo     string    `json:"cargo,omitempty"`
	Route     string    `json:"route,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobModel projects job lifecycle events into a per-job status view.
type JobModel struct {
	mu   sync.RWMutex
	jobs map[string]JobView
}

func NewJobModel() *JobModel {
	return &JobModel{jobs: make(map[string]JobView)}
}

func (m *JobModel) EventTypes() []string {
	return []string{EventJobCreated, EventJobStatusChanged}
}

func (m *JobModel) Apply(ctx context.Context, event *v1.DomainEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	view, exists := m.jobs[event.AggregateID]
	if !exists {
		view = JobView{JobID: event.AggregateID}
	}

	switch event.EventType {
	case EventJobCreated:
		view.Status = "created"
		view.DriverID = stringField(event.EventData, "driver_id")
		view.Cargo = stringField(event.EventData, "cargo")
		view.Route = stringField(event.EventData, "route")
	case EventJobStatusChanged:
		status := stringField(event.EventData, "status")
		if status == "" {
			slog.Warn("Job status event missing status field",
				"event_id", event.ID,
				"aggregate_id", event.AggregateID)
			return
		}
		view.Status = status
	}

	view.UpdatedAt = event.Metadata.Timestamp
	m.jobs[event.AggregateID] = view
}

// Job returns the projected view for jobID.
func (m *JobModel) Job(jobID string) (JobView, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	view, ok := m.jobs[jobID]
	return view, ok
}

func stringField(data map[string]any, key string) string {
	if raw, ok := data[key]; ok {
		if s, ok := raw.(string); ok {
			return s
		}
	}
	return ""
}
