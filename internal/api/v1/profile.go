package v1

import "time"

// RiskStatus is the derived standing of a driver, a pure function of the
// risk score against fixed thresholds.
type RiskStatus string

const (
	RiskClean      RiskStatus = "clean"
	RiskSuspicious RiskStatus = "suspicious"
	RiskFlagged    RiskStatus = "flagged"
	RiskBanned     RiskStatus = "banned"
)

// DriverRiskProfile is the rolling per-driver aggregate of accumulated
// detections. RiskScore is recomputed from Violations on every update and
// is never settable directly; it only ever grows (false positives do not
// subtract from an already-accumulated score).
type DriverRiskProfile struct {
	DriverID       string      `json:"driver_id"`
	RiskScore      int         `json:"risk_score"`
	Violations     []Detection `json:"violations"`
	LastAssessment time.Time   `json:"last_assessment"`
	Status         RiskStatus  `json:"status"`
}
