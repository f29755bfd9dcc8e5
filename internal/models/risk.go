package models

import "time"

// RiskLevel represents the assessed market risk for a cycle.
type RiskLevel string

const (
	RiskLow     RiskLevel = "LOW"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskHigh    RiskLevel = "HIGH"
	RiskExtreme RiskLevel = "EXTREME"
)

// VerdictKind is the risk guard's ruling on a Decision.
type VerdictKind string

const (
	VerdictApproved VerdictKind = "approved"
	VerdictAdjusted VerdictKind = "approved-with-adjustment"
	VerdictVetoed   VerdictKind = "vetoed"
)

// RiskVerdict is the risk layer's approval, adjustment, or veto of a
// Decision. Exactly one verdict is produced per decision.
type RiskVerdict struct {
	DecisionID  string
	Verdict     VerdictKind
	MarketRisk  RiskLevel
	SizeScale   float64 // fraction of nominal size allowed, 0-1
	StopLoss    float64 // adjusted stop-loss price, 0 if unchanged
	TakeProfit  float64 // adjusted take-profit price, 0 if unchanged
	SizeCap     float64 // max notional for this trade, 0 = policy default
	Reason      string
	Violations  []string
	Timestamp   time.Time
}

// Approved reports whether the verdict permits an order this cycle.
func (v *RiskVerdict) Approved() bool {
	return v.Verdict == VerdictApproved || v.Verdict == VerdictAdjusted
}
