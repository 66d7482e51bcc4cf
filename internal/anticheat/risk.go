package anticheat

import (
	v1 "github.com/convoylab/roadguard/internal/api/v1"
)

// riskWeights assigns each violation type its contribution to the risk
// score. Unknown types count a flat 10 so a future rule type degrades
// to "still counts" rather than "silently free".
var riskWeights = map[v1.CheatType]int{
	v1.CheatSpeedHack:      20,
	v1.CheatTeleport:       30,
	v1.CheatFuelHack:       15,
	v1.CheatDamageReset:    15,
	v1.CheatRouteDeviation: 5,
	v1.CheatImpossibleTime: 25,
}

const defaultRiskWeight = 10

// Risk status thresholds, exclusive lower bounds evaluated in descending
// order so the highest matching band wins.
const (
	bannedThreshold     = 80
	flaggedThreshold    = 60
	suspiciousThreshold = 30
)

// scoreViolations computes the risk score as the weighted sum over all
// violations ever recorded, regardless of their investigation outcome.
// The score is deliberately monotonic: confirming or clearing a detection
// does not subtract from it.
func scoreViolations(violations []v1.Detection) int {
	score := 0
	for _, violation := range violations {
		w, ok := riskWeights[violation.CheatType]
		if !ok {
			w = defaultRiskWeight
		}
		score += w
	}
	return score
}

// statusForScore maps a risk score to the driver's standing.
func statusForScore(score int) v1.RiskStatus {
	switch {
	case score > bannedThreshold:
		return v1.RiskBanned
	case score > flaggedThreshold:
		return v1.RiskFlagged
	case score > suspiciousThreshold:
		return v1.RiskSuspicious
	default:
		return v1.RiskClean
	}
}
