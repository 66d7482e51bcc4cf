package projection

import (
	"net/http"

	"github.com/gin-gonic/gin"

	httperr "github.com/convoylab/roadguard/internal/core/errors"
)

// Service exposes the read models over HTTP.
type Service struct {
	locations *DriverLocationModel
	jobs      *JobModel
}

func NewService(locations *DriverLocationModel, jobs *JobModel) *Service {
	if locations == nil {
		panic("projection: driver location model must not be nil")
	}
	if jobs == nil {
		panic("projection: job model must not be nil")
	}
	return &Service{locations: locations, jobs: jobs}
}

// RegisterRoutes registers the projection query routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/projections/drivers/:driver_id/location", s.DriverLocationHandler)
	r.GET("/v1/projections/jobs/:job_id", s.JobHandler)
}

func (s *Service) DriverLocationHandler(c *gin.Context) {
	driverID := c.Param("driver_id")
	loc, ok := s.locations.Location(driverID)
	if !ok {
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpNotFound,
			Message:   "no location recorded for driver",
		})
		return
	}
	c.JSON(http.StatusOK, loc)
}

func (s *Service) JobHandler(c *gin.Context) {
	jobID := c.Param("job_id")
	view, ok := s.jobs.Job(jobID)
	if !ok {
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpNotFound,
			Message:   "unknown job",
		})
		return
	}
	c.JSON(http.StatusOK, view)
}
