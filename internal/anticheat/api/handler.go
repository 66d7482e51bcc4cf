package api

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/convoylab/roadguard/internal/anticheat"
	v1 "github.com/convoylab/roadguard/internal/api/v1"
	httperr "github.com/convoylab/roadguard/internal/core/errors"
)

const (
	msgInvalidJSON      = "Invalid JSON body"
	msgAnalysisFailed   = "Failed to analyze telemetry"
	msgOperationFailed  = "Failed to process detection action"
	msgBodyTooLarge     = "Request body exceeds maximum allowed size"
	msgListFailed       = "Failed to list detections"
	msgProfileLoadError = "Failed to load risk profile"
)

// AnalyzeHandler accepts one telemetry sample and returns the detections
// it produced plus a coarse risk level for the sample.
func (s *Service) AnalyzeHandler(c *gin.Context) {
	var sample v1.TelemetrySample
	if !s.bindJSON(c, &sample) {
		return
	}

	detections, err := s.engine.AnalyzeTelemetry(c.Request.Context(), &sample)
	if err != nil {
		if errors.Is(err, anticheat.ErrValidation) {
			writeError(c, http.StatusBadRequest, httperr.HttpValidationError, err.Error(), nil)
			return
		}
		slog.Error("Telemetry analysis failed", "driver_id", sample.DriverID, "error", err)
		writeError(c, http.StatusInternalServerError, httperr.HttpInternalError, msgAnalysisFailed, nil)
		return
	}

	if s.tracker != nil {
		s.tracker.Record(&sample)
	}

	riskLevel := "low"
	if len(detections) > 0 {
		riskLevel = "high"
	}
	if detections == nil {
		detections = []*v1.Detection{}
	}

	slog.Info("Received Telemetry",
		"driver_id", sample.DriverID,
		"job_id", sample.JobID,
		"speed", sample.Speed,
		"detections", len(detections))

	c.JSON(http.StatusOK, gin.H{
		"detections": detections,
		"risk_level": riskLevel,
	})
}

func (s *Service) RiskProfileHandler(c *gin.Context) {
	profile, err := s.engine.GetDriverRiskProfile(c.Request.Context(), c.Param("driver_id"))
	if err != nil {
		if errors.Is(err, anticheat.ErrValidation) {
			writeError(c, http.StatusBadRequest, httperr.HttpValidationError, err.Error(), nil)
			return
		}
		slog.Error("Risk profile lookup failed", "error", err)
		writeError(c, http.StatusInternalServerError, httperr.HttpInternalError, msgProfileLoadError, nil)
		return
	}
	c.JSON(http.StatusOK, profile)
}

type serviceEventRequest struct {
	Kind string `json:"kind"`
}

func (s *Service) ServiceEventHandler(c *gin.Context) {
	var req serviceEventRequest
	if !s.bindJSON(c, &req) {
		return
	}

	err := s.engine.RecordServiceEvent(c.Request.Context(), c.Param("driver_id"), req.Kind)
	if err != nil {
		if errors.Is(err, anticheat.ErrValidation) {
			writeError(c, http.StatusBadRequest, httperr.HttpValidationError, err.Error(), nil)
			return
		}
		slog.Error("Service event recording failed", "error", err)
		writeError(c, http.StatusInternalServerError, httperr.HttpInternalError, msgOperationFailed, nil)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "recorded"})
}

func (s *Service) ListDetectionsHandler(c *gin.Context) {
	detections, err := s.engine.ListDetections(c.Request.Context(), c.Query("driver_id"))
	if err != nil {
		slog.Error("Detection listing failed", "error", err)
		writeError(c, http.StatusInternalServerError, httperr.HttpInternalError, msgListFailed, nil)
		return
	}
	if detections == nil {
		detections = []*v1.Detection{}
	}
	c.JSON(http.StatusOK, gin.H{"detections": detections})
}

type investigateRequest struct {
	InvestigatorID string `json:"investigator_id"`
}

func (s *Service) InvestigateHandler(c *gin.Context) {
	var req investigateRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if req.InvestigatorID == "" {
		writeError(c, http.StatusBadRequest, httperr.HttpValidationError, "investigator_id is required", nil)
		return
	}

	detectionID := c.Param("id")
	if err := s.engine.InvestigateDetection(c.Request.Context(), detectionID, req.InvestigatorID); err != nil {
		s.writeEngineError(c, err)
		return
	}

	s.recordAudit(c, req.InvestigatorID, "detection.investigate", detectionID, nil)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type confirmRequest struct {
	Action         v1.PenaltyAction `json:"action"`
	InvestigatorID string           `json:"investigator_id"`
}

func (s *Service) ConfirmHandler(c *gin.Context) {
	var req confirmRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if !v1.ValidPenaltyAction(req.Action) {
		writeError(c, http.StatusBadRequest, httperr.HttpUnknownPenaltyAction, "Unknown penalty action", map[string]any{
			"action": string(req.Action),
		})
		return
	}

	detectionID := c.Param("id")
	if err := s.engine.ConfirmCheat(c.Request.Context(), detectionID, req.Action); err != nil {
		s.writeEngineError(c, err)
		return
	}

	s.recordAudit(c, req.InvestigatorID, "detection.confirm", detectionID, map[string]any{
		"action": string(req.Action),
	})
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Service) FalsePositiveHandler(c *gin.Context) {
	var req investigateRequest
	if !s.bindJSON(c, &req) {
		return
	}

	detectionID := c.Param("id")
	if err := s.engine.MarkFalsePositive(c.Request.Context(), detectionID); err != nil {
		s.writeEngineError(c, err)
		return
	}

	s.recordAudit(c, req.InvestigatorID, "detection.false_positive", detectionID, nil)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// bindJSON reads the body under the configured size limit and unmarshals
// into out. On failure it writes the error response and returns false.
func (s *Service) bindJSON(c *gin.Context, out any) bool {
	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		writeError(c, http.StatusInternalServerError, httperr.HttpInternalError, "Failed to read request body", nil)
		return false
	}
	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		writeError(c, http.StatusRequestEntityTooLarge, httperr.HttpInvalidJsonError, msgBodyTooLarge, map[string]any{
			"max_size_mb": maxBytes / (1024 * 1024),
		})
		return false
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	if err := c.ShouldBindJSON(out); err != nil {
		slog.Warn("Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		writeError(c, http.StatusBadRequest, httperr.HttpInvalidJsonError, msgInvalidJSON, nil)
		return false
	}
	return true
}

func (s *Service) writeEngineError(c *gin.Context, err error) {
	if errors.Is(err, anticheat.ErrValidation) {
		writeError(c, http.StatusBadRequest, httperr.HttpValidationError, err.Error(), nil)
		return
	}
	slog.Error("Detection action failed", "error", err)
	writeError(c, http.StatusInternalServerError, httperr.HttpInternalError, msgOperationFailed, nil)
}

func (s *Service) recordAudit(c *gin.Context, userID, action, detectionID string, details map[string]any) {
	if s.audit == nil {
		return
	}
	if userID == "" {
		userID = "unknown"
	}
	if err := s.audit.Record(c.Request.Context(), userID, action, "detection", detectionID, details); err != nil {
		slog.Warn("Failed to record audit entry", "action", action, "error", err)
	}
}

func writeError(c *gin.Context, statusCode int, errorType, message string, details any) {
	c.JSON(statusCode, httperr.ErrorResponse{
		ErrorType: errorType,
		Message:   message,
		Details:   details,
	})
}
