package analytics

import (
	"net/http"

	"github.com/gin-gonic/gin"

	httperr "github.com/convoylab/roadguard/internal/core/errors"
)

// Service exposes driver rollups over HTTP.
type Service struct {
	tracker *Tracker
}

func NewService(tracker *Tracker) *Service {
	if tracker == nil {
		panic("analytics: tracker must not be nil")
	}
	return &Service{tracker: tracker}
}

// RegisterRoutes registers the analytics query routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/analytics/drivers/:driver_id", s.DriverStatsHandler)
}

func (s *Service) DriverStatsHandler(c *gin.Context) {
	driverID := c.Param("driver_id")
	stats, ok := s.tracker.Stats(driverID)
	if !ok {
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpNotFound,
			Message:   "no telemetry recorded for driver",
		})
		return
	}
	c.JSON(http.StatusOK, stats)
}
