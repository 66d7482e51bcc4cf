// Package anticheat evaluates driver telemetry against a fixed rule set
// and maintains per-driver risk profiles derived from accumulated
// detections.
package anticheat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/convoylab/roadguard/internal/alerts"
	v1 "github.com/convoylab/roadguard/internal/api/v1"
	"github.com/convoylab/roadguard/internal/anticheat/storage"
	"github.com/convoylab/roadguard/internal/core/keylock"
	"github.com/convoylab/roadguard/internal/eventstore"
	"github.com/convoylab/roadguard/internal/penalty"
)

// ErrValidation marks malformed engine input. Business conditions (missing
// prior sample, unknown detection id) never produce it; those degrade to
// skips and no-ops instead.
var ErrValidation = errors.New("invalid anti-cheat request")

// Service-event kinds a client can record to excuse the next fuel or
// damage delta.
const (
	ServiceRefuel = "refuel"
	ServiceRepair = "repair"
)

// Aggregate naming for detection events appended to the event store.
const (
	driverAggregateType = "driver"
	cheatDetectedEvent  = "CheatDetected"
)

// Config wires an Engine. Detections, Profiles and Penalties are required;
// the rest are optional collaborators.
type Config struct {
	Detections storage.DetectionRepository
	Profiles   storage.ProfileRepository
	Penalties  penalty.Applier
	Thresholds Thresholds

	// Routes resolves expected job routes for the deviation rule.
	// Nil disables the rule.
	Routes RouteProvider

	// Alerts receives high and critical detections plus confirmations.
	// Nil disables publishing.
	Alerts alerts.Publisher

	// Events, when set, gets a CheatDetected domain event appended to the
	// driver's aggregate for every detection batch.
	Events *eventstore.Service
}

// serviceFlags track recorded refuel/repair events not yet consumed by a
// telemetry sample.
type serviceFlags struct {
	refueled bool
	repaired bool
}

// Engine is the anti-cheat rule evaluator. Per-driver state (last sample,
// pending service events, profile updates) is serialized by a key lock;
// samples for distinct drivers are processed in parallel.
type Engine struct {
	detections storage.DetectionRepository
	profiles   storage.ProfileRepository
	penalties  penalty.Applier
	thresholds Thresholds
	routes     RouteProvider
	alerts     alerts.Publisher
	events     *eventstore.Service

	locks *keylock.KeyLock

	mu          sync.Mutex
	lastSamples map[string]v1.TelemetrySample
	pending     map[string]serviceFlags

	nowFn func() time.Time
	idFn  func() string
}

// NewEngine creates an engine from cfg. Zero-valued thresholds fall back
// to the defaults.
func NewEngine(cfg Config) *Engine {
	if cfg.Detections == nil {
		panic("anticheat: detection repository must not be nil")
	}
	if cfg.Profiles == nil {
		panic("anticheat: profile repository must not be nil")
	}
	if cfg.Penalties == nil {
		panic("anticheat: penalty applier must not be nil")
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	return &Engine{
		detections:  cfg.Detections,
		profiles:    cfg.Profiles,
		penalties:   cfg.Penalties,
		thresholds:  cfg.Thresholds,
		routes:      cfg.Routes,
		alerts:      cfg.Alerts,
		events:      cfg.Events,
		locks:       keylock.New(),
		lastSamples: make(map[string]v1.TelemetrySample),
		pending:     make(map[string]serviceFlags),
		nowFn:       func() time.Time { return time.Now().UTC() },
		idFn:        uuid.NewString,
	}
}

// AnalyzeTelemetry evaluates one sample against the rule set and the
// driver's previous sample. It returns the detections produced (possibly
// none), records them, folds them into the driver's risk profile and
// replaces the driver's last-known sample. Delta rules are skipped, not
// failed, when no prior sample exists.
func (e *Engine) AnalyzeTelemetry(ctx context.Context, sample *v1.TelemetrySample) ([]*v1.Detection, error) {
	if sample == nil {
		return nil, fmt.Errorf("%w: sample is required", ErrValidation)
	}
	if err := sample.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	e.locks.Lock(sample.DriverID)
	defer e.locks.Unlock(sample.DriverID)

	e.mu.Lock()
	prev, hasPrev := e.lastSamples[sample.DriverID]
	flags := e.pending[sample.DriverID]
	e.mu.Unlock()

	detections := e.evaluateRules(ctx, sample, prev, hasPrev, flags)

	if len(detections) > 0 {
		if err := e.detections.Insert(ctx, detections); err != nil {
			return nil, fmt.Errorf("record detections: %w", err)
		}
		if err := e.updateRiskProfile(ctx, sample.DriverID, detections); err != nil {
			return nil, fmt.Errorf("update risk profile: %w", err)
		}
		e.appendDetectionEvents(ctx, sample.DriverID, detections)
		e.publishDetections(ctx, detections)
	}

	e.mu.Lock()
	e.lastSamples[sample.DriverID] = *sample
	delete(e.pending, sample.DriverID)
	e.mu.Unlock()

	return detections, nil
}

func (e *Engine) evaluateRules(ctx context.Context, sample *v1.TelemetrySample, prev v1.TelemetrySample, hasPrev bool, flags serviceFlags) []*v1.Detection {
	var detections []*v1.Detection

	if sample.Speed > e.thresholds.MaxSpeed {
		detections = append(detections, e.newDetection(sample, v1.CheatSpeedHack, v1.SeverityHigh, map[string]any{
			"reported_speed":    sample.Speed,
			"max_allowed_speed": e.thresholds.MaxSpeed,
		}))
	}

	if hasPrev {
		if distance := prev.Position.DistanceTo(sample.Position); distance > e.thresholds.TeleportDistance {
			detections = append(detections, e.newDetection(sample, v1.CheatTeleport, v1.SeverityCritical, map[string]any{
				"last_position":    prev.Position,
				"current_position": sample.Position,
				"distance":         distance,
			}))
		}

		if !flags.refueled && sample.Fuel > prev.Fuel+e.thresholds.FuelJump {
			detections = append(detections, e.newDetection(sample, v1.CheatFuelHack, v1.SeverityMedium, map[string]any{
				"last_fuel":    prev.Fuel,
				"current_fuel": sample.Fuel,
				"increase":     sample.Fuel - prev.Fuel,
			}))
		}

		if !flags.repaired && sample.Damage < prev.Damage-e.thresholds.DamageDrop {
			detections = append(detections, e.newDetection(sample, v1.CheatDamageReset, v1.SeverityMedium, map[string]any{
				"last_damage":    prev.Damage,
				"current_damage": sample.Damage,
				"decrease":       prev.Damage - sample.Damage,
			}))
		}
	}

	if e.routes != nil && sample.JobID != "" {
		if route, ok := e.routes.ExpectedRoute(ctx, sample.JobID); ok {
			if deviation := routeDeviation(sample.Position, route); deviation > e.thresholds.RouteDeviation {
				detections = append(detections, e.newDetection(sample, v1.CheatRouteDeviation, v1.SeverityLow, map[string]any{
					"expected_route":   route.ID,
					"current_position": sample.Position,
					"deviation":        deviation,
				}))
			}
		}
	}

	return detections
}

func (e *Engine) newDetection(sample *v1.TelemetrySample, cheatType v1.CheatType, severity v1.Severity, evidence map[string]any) *v1.Detection {
	return &v1.Detection{
		ID:        e.idFn(),
		DriverID:  sample.DriverID,
		JobID:     sample.JobID,
		CheatType: cheatType,
		Severity:  severity,
		Evidence:  evidence,
		Timestamp: sample.Timestamp,
		Status:    v1.StatusDetected,
	}
}

func (e *Engine) updateRiskProfile(ctx context.Context, driverID string, detections []*v1.Detection) error {
	profile, err := e.profiles.Get(ctx, driverID)
	if errors.Is(err, storage.ErrNotFound) {
		profile = &v1.DriverRiskProfile{
			DriverID: driverID,
			Status:   v1.RiskClean,
		}
	} else if err != nil {
		return err
	}

	for _, d := range detections {
		profile.Violations = append(profile.Violations, *d)
	}
	profile.RiskScore = scoreViolations(profile.Violations)
	profile.Status = statusForScore(profile.RiskScore)
	profile.LastAssessment = e.nowFn()

	if err := e.profiles.Save(ctx, profile); err != nil {
		return err
	}

	slog.Info("Risk profile updated",
		"driver_id", driverID,
		"new_detections", len(detections),
		"risk_score", profile.RiskScore,
		"status", string(profile.Status))
	return nil
}

// appendDetectionEvents records the batch on the driver's aggregate.
// A concurrency conflict here means another writer advanced the aggregate
// between read and append; the detections themselves are already durable,
// so this is logged and absorbed rather than failing the analysis.
func (e *Engine) appendDetectionEvents(ctx context.Context, driverID string, detections []*v1.Detection) {
	if e.events == nil {
		return
	}

	version, err := e.events.GetAggregateVersion(ctx, driverID)
	if err != nil {
		slog.Error("Failed to read driver aggregate version", "driver_id", driverID, "error", err)
		return
	}

	batch := make([]v1.NewEvent, len(detections))
	for i, d := range detections {
		batch[i] = v1.NewEvent{
			AggregateType: driverAggregateType,
			EventType:     cheatDetectedEvent,
			EventData: map[string]any{
				"detection_id": d.ID,
				"job_id":       d.JobID,
				"cheat_type":   string(d.CheatType),
				"severity":     string(d.Severity),
				"evidence":     d.Evidence,
			},
			CausationID: d.ID,
		}
	}

	if _, err := e.events.AppendEvents(ctx, driverID, version, batch); err != nil {
		slog.Warn("Failed to append detection events", "driver_id", driverID, "error", err)
	}
}

func (e *Engine) publishDetections(ctx context.Context, detections []*v1.Detection) {
	if e.alerts == nil {
		return
	}
	for _, d := range detections {
		if d.Severity != v1.SeverityHigh && d.Severity != v1.SeverityCritical {
			continue
		}
		alert := alerts.Alert{
			Kind:      "detection",
			Detection: d,
			EmittedAt: e.nowFn(),
		}
		if err := e.alerts.Publish(ctx, alert); err != nil {
			slog.Warn("Failed to publish detection alert", "detection_id", d.ID, "error", err)
		}
	}
}

// RecordServiceEvent registers a refuel or repair for the driver, excusing
// the matching delta in the next analyzed sample.
func (e *Engine) RecordServiceEvent(ctx context.Context, driverID, kind string) error {
	if driverID == "" {
		return fmt.Errorf("%w: driver_id is required", ErrValidation)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	flags := e.pending[driverID]
	switch kind {
	case ServiceRefuel:
		flags.refueled = true
	case ServiceRepair:
		flags.repaired = true
	default:
		return fmt.Errorf("%w: unknown service event kind %q", ErrValidation, kind)
	}
	e.pending[driverID] = flags
	return nil
}

// GetDriverRiskProfile returns the driver's profile, or a fresh clean
// profile when the driver has no recorded detections. Unknown drivers are
// not an error.
func (e *Engine) GetDriverRiskProfile(ctx context.Context, driverID string) (*v1.DriverRiskProfile, error) {
	if driverID == "" {
		return nil, fmt.Errorf("%w: driver_id is required", ErrValidation)
	}

	profile, err := e.profiles.Get(ctx, driverID)
	if errors.Is(err, storage.ErrNotFound) {
		return &v1.DriverRiskProfile{
			DriverID:       driverID,
			Violations:     []v1.Detection{},
			LastAssessment: e.nowFn(),
			Status:         v1.RiskClean,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load risk profile: %w", err)
	}
	return profile, nil
}

// ListDetections returns recorded detections in insertion order, filtered
// by driver when driverID is non-empty.
func (e *Engine) ListDetections(ctx context.Context, driverID string) ([]*v1.Detection, error) {
	return e.detections.List(ctx, driverID)
}

// InvestigateDetection moves a detected finding into investigation.
// A missing detection or one already past "detected" is a logged no-op.
func (e *Engine) InvestigateDetection(ctx context.Context, detectionID, investigatorID string) error {
	if detectionID == "" {
		return fmt.Errorf("%w: detection_id is required", ErrValidation)
	}

	d, err := e.detections.Get(ctx, detectionID)
	if errors.Is(err, storage.ErrNotFound) {
		slog.Warn("Investigation requested for unknown detection", "detection_id", detectionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load detection: %w", err)
	}
	if d.Status != v1.StatusDetected {
		slog.Info("Investigation skipped, detection already progressed",
			"detection_id", detectionID,
			"status", string(d.Status))
		return nil
	}

	if err := e.detections.UpdateStatus(ctx, detectionID, v1.StatusInvestigating); err != nil {
		return fmt.Errorf("update detection status: %w", err)
	}

	slog.Info("Investigation started",
		"detection_id", detectionID,
		"investigator_id", investigatorID)
	return nil
}

// ConfirmCheat marks the detection confirmed and hands the chosen penalty
// off exactly once. Confirming a detection already in a terminal state is
// a logged no-op with no penalty hand-off.
func (e *Engine) ConfirmCheat(ctx context.Context, detectionID string, action v1.PenaltyAction) error {
	if detectionID == "" {
		return fmt.Errorf("%w: detection_id is required", ErrValidation)
	}
	if !v1.ValidPenaltyAction(action) {
		return fmt.Errorf("%w: unknown penalty action %q", ErrValidation, action)
	}

	d, err := e.detections.Get(ctx, detectionID)
	if errors.Is(err, storage.ErrNotFound) {
		slog.Warn("Confirmation requested for unknown detection", "detection_id", detectionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load detection: %w", err)
	}
	if d.Status.Terminal() {
		slog.Info("Confirmation skipped, detection already resolved",
			"detection_id", detectionID,
			"status", string(d.Status))
		return nil
	}

	if err := e.detections.UpdateStatus(ctx, detectionID, v1.StatusConfirmed); err != nil {
		return fmt.Errorf("update detection status: %w", err)
	}
	d.Status = v1.StatusConfirmed

	if err := e.penalties.Apply(ctx, d.DriverID, action, d); err != nil {
		return fmt.Errorf("apply penalty: %w", err)
	}

	if e.alerts != nil {
		alert := alerts.Alert{
			Kind:      "confirmation",
			Detection: d,
			Action:    string(action),
			EmittedAt: e.nowFn(),
		}
		if err := e.alerts.Publish(ctx, alert); err != nil {
			slog.Warn("Failed to publish confirmation alert", "detection_id", d.ID, "error", err)
		}
	}
	return nil
}

// MarkFalsePositive resolves the detection as a false positive. The
// already-accumulated risk score is intentionally left unchanged; the
// score is a lifetime hazard counter, only additive.
func (e *Engine) MarkFalsePositive(ctx context.Context, detectionID string) error {
	if detectionID == "" {
		return fmt.Errorf("%w: detection_id is required", ErrValidation)
	}

	d, err := e.detections.Get(ctx, detectionID)
	if errors.Is(err, storage.ErrNotFound) {
		slog.Warn("False-positive requested for unknown detection", "detection_id", detectionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load detection: %w", err)
	}
	if d.Status.Terminal() {
		slog.Info("False-positive skipped, detection already resolved",
			"detection_id", detectionID,
			"status", string(d.Status))
		return nil
	}

	if err := e.detections.UpdateStatus(ctx, detectionID, v1.StatusFalsePositive); err != nil {
		return fmt.Errorf("update detection status: %w", err)
	}

	slog.Info("Detection marked as false positive", "detection_id", detectionID)
	return nil
}
