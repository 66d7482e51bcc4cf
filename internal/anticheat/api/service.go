// Package api exposes the anti-cheat engine over HTTP: telemetry
// ingestion, risk profiles and the detection investigation lifecycle.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/convoylab/roadguard/internal/analytics"
	"github.com/convoylab/roadguard/internal/anticheat"
	"github.com/convoylab/roadguard/internal/audit"
)

type Service struct {
	engine           *anticheat.Engine
	tracker          *analytics.Tracker
	audit            *audit.Logger
	maxBodySizeBytes int
}

// NewService wires the anti-cheat HTTP surface. tracker may be nil to
// disable analytics rollups; audit may be nil to disable the trail.
func NewService(engine *anticheat.Engine, tracker *analytics.Tracker, auditLog *audit.Logger, maxBodySizeMB int) *Service {
	if engine == nil {
		panic("anticheat api: engine must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		engine:           engine,
		tracker:          tracker,
		audit:            auditLog,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
	}
}

// RegisterRoutes registers the anti-cheat routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/telemetry", s.AnalyzeHandler)
	r.GET("/v1/drivers/:driver_id/risk", s.RiskProfileHandler)
	r.POST("/v1/drivers/:driver_id/service-events", s.ServiceEventHandler)
	r.GET("/v1/detections", s.ListDetectionsHandler)
	r.POST("/v1/detections/:id/investigate", s.InvestigateHandler)
	r.POST("/v1/detections/:id/confirm", s.ConfirmHandler)
	r.POST("/v1/detections/:id/false-positive", s.FalsePositiveHandler)
}
