package projection

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	v1 "github.com/convoylab/roadguard/internal/api/v1"
)

var projTime = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func event(aggregateID, eventType string, version int, data map[string]any) *v1.DomainEvent {
	return &v1.DomainEvent{
		ID:            "evt-" + aggregateID,
		AggregateID:   aggregateID,
		AggregateType: "driver",
		EventType:     eventType,
		EventData:     data,
		Metadata: v1.EventMetadata{
			Timestamp: projTime,
			Version:   version,
		},
	}
}

type countingHandler struct {
	types   []string
	applied []*v1.DomainEvent
}

func (h *countingHandler) EventTypes() []string { return h.types }

func (h *countingHandler) Apply(ctx context.Context, e *v1.DomainEvent) {
	h.applied = append(h.applied, e)
}

func TestRegistry_RoutesByEventType(t *testing.T) {
	a := &countingHandler{types: []string{"A"}}
	b := &countingHandler{types: []string{"B"}}
	both := &countingHandler{types: []string{"A", "B"}}
	registry := NewRegistry(a, b, both)
	ctx := context.Background()

	registry.HandleEvent(ctx, event("agg-1", "A", 1, nil))
	registry.HandleEvent(ctx, event("agg-1", "B", 2, nil))
	registry.HandleEvent(ctx, event("agg-1", "C", 3, nil))

	require.Len(t, a.applied, 1)
	require.Equal(t, "A", a.applied[0].EventType)
	require.Len(t, b.applied, 1)
	require.Equal(t, "B", b.applied[0].EventType)
	require.Len(t, both.applied, 2)
}

func TestDriverLocationModel(t *testing.T) {
	model := NewDriverLocationModel()
	ctx := context.Background()

	_, ok := model.Location("driver-1")
	require.False(t, ok)

	model.Apply(ctx, event("driver-1", EventDriverLocationUpdated, 1, map[string]any{
		"x": 10.0, "y": 20.0, "z": 30.0,
	}))

	loc, ok := model.Location("driver-1")
	require.True(t, ok)
	require.Equal(t, v1.Position{X: 10, Y: 20, Z: 30}, loc.Position)
	require.Equal(t, projTime, loc.UpdatedAt)

	// Later events replace the view.
	model.Apply(ctx, event("driver-1", EventDriverLocationUpdated, 2, map[string]any{
		"x": 11.0, "y": 20.0, "z": 30.0,
	}))
	loc, _ = model.Location("driver-1")
	require.Equal(t, 11.0, loc.Position.X)
}

func TestDriverLocationModel_IgnoresMalformedData(t *testing.T) {
	model := NewDriverLocationModel()
	ctx := context.Background()

	model.Apply(ctx, event("driver-1", EventDriverLocationUpdated, 1, map[string]any{
		"x": 10.0, "y": "north", "z": 30.0,
	}))
	_, ok := model.Location("driver-1")
	require.False(t, ok)

	model.Apply(ctx, event("driver-2", EventDriverLocationUpdated, 1, map[string]any{"x": 1.0}))
	_, ok = model.Location("driver-2")
	require.False(t, ok)
}

func TestJobModel_Lifecycle(t *testing.T) {
	model := NewJobModel()
	ctx := context.Background()

	model.Apply(ctx, event("job-1", EventJobCreated, 1, map[string]any{
		"driver_id": "driver-1",
		"cargo":     "steel",
		"route":     "A1-A2",
	}))

	view, ok := model.Job("job-1")
	require.True(t, ok)
	require.Equal(t, "created", view.Status)
	require.Equal(t, "driver-1", view.DriverID)
	require.Equal(t, "steel", view.Cargo)
	require.Equal(t, "A1-A2", view.Route)

	model.Apply(ctx, event("job-1", EventJobStatusChanged, 2, map[string]any{"status": "in_transit"}))
	view, _ = model.Job("job-1")
	require.Equal(t, "in_transit", view.Status)
	require.Equal(t, "driver-1", view.DriverID)

	// A status event with no status leaves the view untouched.
	model.Apply(ctx, event("job-1", EventJobStatusChanged, 3, nil))
	view, _ = model.Job("job-1")
	require.Equal(t, "in_transit", view.Status)
}

func newProjectionRouter(t *testing.T) (*gin.Engine, *DriverLocationModel, *JobModel) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	locations := NewDriverLocationModel()
	jobs := NewJobModel()
	svc := NewService(locations, jobs)

	router := gin.New()
	svc.RegisterRoutes(router)
	return router, locations, jobs
}

func TestDriverLocationHandler(t *testing.T) {
	router, locations, _ := newProjectionRouter(t)
	locations.Apply(context.Background(), event("driver-1", EventDriverLocationUpdated, 1, map[string]any{
		"x": 1.0, "y": 2.0, "z": 3.0,
	}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/projections/drivers/driver-1/location", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"driver_id":"driver-1"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/projections/drivers/ghost/location", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "not_found")
}

func TestJobHandler(t *testing.T) {
	router, _, jobs := newProjectionRouter(t)
	jobs.Apply(context.Background(), event("job-1", EventJobCreated, 1, map[string]any{"cargo": "steel"}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/projections/jobs/job-1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"created"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/projections/jobs/ghost", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}
