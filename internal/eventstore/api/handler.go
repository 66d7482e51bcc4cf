// Package api exposes the event store over HTTP: appending domain events
// with optimistic concurrency and reading aggregate streams.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	v1 "github.com/convoylab/roadguard/internal/api/v1"
	httperr "github.com/convoylab/roadguard/internal/core/errors"
	"github.com/convoylab/roadguard/internal/eventstore"
)

const (
	msgInvalidJSON   = "Invalid JSON body"
	msgAppendFailed  = "Failed to append events"
	msgStreamFailed  = "Failed to read event stream"
	msgVersionFailed = "Failed to read aggregate version"
)

type Service struct {
	store *eventstore.Service
}

func NewService(store *eventstore.Service) *Service {
	if store == nil {
		panic("eventstore api: store must not be nil")
	}
	return &Service{store: store}
}

// RegisterRoutes registers the event store routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/events", s.AppendHandler)
	r.GET("/v1/events/:aggregate_id", s.StreamHandler)
	r.GET("/v1/events/:aggregate_id/version", s.VersionHandler)
}

type appendRequest struct {
	AggregateID     string        `json:"aggregate_id"`
	ExpectedVersion int           `json:"expected_version"`
	Events          []v1.NewEvent `json:"events"`
}

type appendResponse struct {
	Events  []*v1.DomainEvent `json:"events"`
	Version int               `json:"version"`
}

func (s *Service) AppendHandler(c *gin.Context) {
	var req appendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("Invalid JSON body received", "error", err)
		writeError(c, http.StatusBadRequest, httperr.HttpInvalidJsonError, msgInvalidJSON, nil)
		return
	}

	events, err := s.store.AppendEvents(c.Request.Context(), req.AggregateID, req.ExpectedVersion, req.Events)
	if err != nil {
		var conflict *eventstore.ConflictError
		switch {
		case errors.Is(err, eventstore.ErrValidation):
			writeError(c, http.StatusBadRequest, httperr.HttpValidationError, err.Error(), nil)
		case errors.As(err, &conflict):
			writeError(c, http.StatusConflict, httperr.HttpConcurrencyConflict, conflict.Error(), map[string]any{
				"aggregate_id":     conflict.AggregateID,
				"expected_version": conflict.ExpectedVersion,
				"actual_version":   conflict.ActualVersion,
			})
		default:
			slog.Error("Event append failed", "aggregate_id", req.AggregateID, "error", err)
			writeError(c, http.StatusInternalServerError, httperr.HttpInternalError, msgAppendFailed, nil)
		}
		return
	}

	c.JSON(http.StatusCreated, appendResponse{
		Events:  events,
		Version: req.ExpectedVersion + len(events),
	})
}

func (s *Service) StreamHandler(c *gin.Context) {
	fromVersion := 0
	if raw := c.Query("from_version"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(c, http.StatusBadRequest, httperr.HttpValidationError, "from_version must be an integer", nil)
			return
		}
		fromVersion = parsed
	}

	stream, err := s.store.GetEventStream(c.Request.Context(), c.Param("aggregate_id"), fromVersion)
	if err != nil {
		if errors.Is(err, eventstore.ErrValidation) {
			writeError(c, http.StatusBadRequest, httperr.HttpValidationError, err.Error(), nil)
			return
		}
		slog.Error("Event stream read failed", "aggregate_id", c.Param("aggregate_id"), "error", err)
		writeError(c, http.StatusInternalServerError, httperr.HttpInternalError, msgStreamFailed, nil)
		return
	}
	if stream.Events == nil {
		stream.Events = []*v1.DomainEvent{}
	}
	c.JSON(http.StatusOK, stream)
}

func (s *Service) VersionHandler(c *gin.Context) {
	aggregateID := c.Param("aggregate_id")
	version, err := s.store.GetAggregateVersion(c.Request.Context(), aggregateID)
	if err != nil {
		if errors.Is(err, eventstore.ErrValidation) {
			writeError(c, http.StatusBadRequest, httperr.HttpValidationError, err.Error(), nil)
			return
		}
		slog.Error("Aggregate version read failed", "aggregate_id", aggregateID, "error", err)
		writeError(c, http.StatusInternalServerError, httperr.HttpInternalError, msgVersionFailed, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"aggregate_id": aggregateID,
		"version":      version,
	})
}

func writeError(c *gin.Context, statusCode int, errorType, message string, details any) {
	c.JSON(statusCode, httperr.ErrorResponse{
		ErrorType: errorType,
		Message:   message,
		Details:   details,
	})
}
