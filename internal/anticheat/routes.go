package anticheat

import (
	"context"
	"math"
	"sync"

	v1 "github.com/convoylab/roadguard/internal/api/v1"
)

// Route is the expected path for a job, as an ordered list of waypoints.
type Route struct {
	ID        string        `json:"id"`
	Waypoints []v1.Position `json:"waypoints"`
}

// RouteProvider resolves the expected route for a job. A job with no known
// route skips the route-deviation rule entirely.
type RouteProvider interface {
	ExpectedRoute(ctx context.Context, jobID string) (*Route, bool)
}

// MemoryRouteProvider is an in-memory RouteProvider, populated by whatever
// assigns jobs to drivers.
type MemoryRouteProvider struct {
	mu     sync.RWMutex
	routes map[string]Route
}

func NewMemoryRouteProvider() *MemoryRouteProvider {
	return &MemoryRouteProvider{routes: make(map[string]Route)}
}

// SetRoute registers or replaces the expected route for a job.
func (p *MemoryRouteProvider) SetRoute(jobID string, route Route) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[jobID] = route
}

func (p *MemoryRouteProvider) ExpectedRoute(ctx context.Context, jobID string) (*Route, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	route, ok := p.routes[jobID]
	if !ok {
		return nil, false
	}
	return &route, true
}

// routeDeviation returns the shortest distance from pos to the route's
// polyline. A single-waypoint route degenerates to point distance.
func routeDeviation(pos v1.Position, route *Route) float64 {
	if len(route.Waypoints) == 0 {
		return 0
	}
	if len(route.Waypoints) == 1 {
		return pos.DistanceTo(route.Waypoints[0])
	}

	min := math.Inf(1)
	for i := 0; i < len(route.Waypoints)-1; i++ {
		d := distanceToSegment(pos, route.Waypoints[i], route.Waypoints[i+1])
		if d < min {
			min = d
		}
	}
	return min
}

// distanceToSegment computes the distance from p to the segment ab by
// projecting p onto the segment and clamping to its endpoints.
func distanceToSegment(p, a, b v1.Position) float64 {
	abx, aby, abz := b.X-a.X, b.Y-a.Y, b.Z-a.Z
	lenSq := abx*abx + aby*aby + abz*abz
	if lenSq == 0 {
		return p.DistanceTo(a)
	}

	apx, apy, apz := p.X-a.X, p.Y-a.Y, p.Z-a.Z
	t := (apx*abx + apy*aby + apz*abz) / lenSq
	t = math.Max(0, math.Min(1, t))

	closest := v1.Position{
		X: a.X + t*abx,
		Y: a.Y + t*aby,
		Z: a.Z + t*abz,
	}
	return p.DistanceTo(closest)
}
