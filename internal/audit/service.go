package audit

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	httperr "github.com/convoylab/roadguard/internal/core/errors"
)

// Service exposes the audit trail over HTTP.
type Service struct {
	logger *Logger
}

func NewService(logger *Logger) *Service {
	if logger == nil {
		panic("audit: logger must not be nil")
	}
	return &Service{logger: logger}
}

// RegisterRoutes registers the audit query route.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/audit", s.ListHandler)
}

func (s *Service) ListHandler(c *gin.Context) {
	filter := Filter{
		UserID:   c.Query("user_id"),
		Action:   c.Query("action"),
		Resource: c.Query("resource"),
	}

	if raw := c.Query("start"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
				ErrorType: httperr.HttpValidationError,
				Message:   "start must be RFC 3339",
			})
			return
		}
		filter.Start = t
	}
	if raw := c.Query("end"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
				ErrorType: httperr.HttpValidationError,
				Message:   "end must be RFC 3339",
			})
			return
		}
		filter.End = t
	}

	entries, err := s.logger.List(c.Request.Context(), filter)
	if err != nil {
		slog.Error("Failed to list audit entries", "error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to list audit entries",
		})
		return
	}
	if entries == nil {
		entries = []*Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
