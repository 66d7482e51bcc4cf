package v1

import "time"

// CheatType enumerates the rule violations the engine can flag.
type CheatType string

const (
	CheatSpeedHack      CheatType = "speed_hack"
	CheatTeleport       CheatType = "teleport"
	CheatFuelHack       CheatType = "fuel_hack"
	CheatDamageReset    CheatType = "damage_reset"
	CheatRouteDeviation CheatType = "route_deviation"

	// CheatImpossibleTime is reserved for job-duration plausibility checks.
	// No rule emits it yet; it participates in risk weighting so historical
	// detections of this type keep counting.
	CheatImpossibleTime CheatType = "impossible_time"
)

// Severity classifies how strong a single piece of evidence is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// DetectionStatus tracks the investigation lifecycle of a detection.
// Transitions only move forward: detected -> investigating -> {confirmed, false_positive}.
type DetectionStatus string

const (
	StatusDetected      DetectionStatus = "detected"
	StatusInvestigating DetectionStatus = "investigating"
	StatusConfirmed     DetectionStatus = "confirmed"
	StatusFalsePositive DetectionStatus = "false_positive"
)

// Terminal reports whether the status admits no further transitions.
func (s DetectionStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusFalsePositive
}

// Detection is a single rule-violation finding. Detections are append-only:
// once created they are never deleted, only advanced through their status
// lifecycle by an explicit investigator action.
type Detection struct {
	ID        string          `json:"id"`
	DriverID  string          `json:"driver_id"`
	JobID     string          `json:"job_id,omitempty"`
	CheatType CheatType       `json:"cheat_type"`
	Severity  Severity        `json:"severity"`
	Evidence  map[string]any  `json:"evidence"`
	Timestamp time.Time       `json:"timestamp"`
	Status    DetectionStatus `json:"status"`
}

// PenaltyAction is the disciplinary outcome chosen when confirming a cheat.
type PenaltyAction string

const (
	ActionWarn    PenaltyAction = "warn"
	ActionSuspend PenaltyAction = "suspend"
	ActionBan     PenaltyAction = "ban"
)

// ValidPenaltyAction reports whether a is one of the known actions.
func ValidPenaltyAction(a PenaltyAction) bool {
	switch a {
	case ActionWarn, ActionSuspend, ActionBan:
		return true
	}
	return false
}
