package models

import (
	"fmt"
	"time"
)

// AnalystSignal is one analyst's opinion for one decision cycle.
// It is never mutated after creation.
type AnalystSignal struct {
	Analyst    string
	Symbol     string
	Action     Action
	Confidence float64 // 0-100
	Rationale  string
	Metrics    map[string]float64 // optional structured sub-metrics
	Timestamp  time.Time
}

// Validate checks the signal contract: known action, confidence in range.
func (s *AnalystSignal) Validate() error {
	if s.Analyst == "" {
		return fmt.Errorf("analyst name is required")
	}
	switch s.Action {
	case Buy, Sell, Hold:
	default:
		return fmt.Errorf("invalid action %q", s.Action)
	}
	if s.Confidence < 0 || s.Confidence > 100 {
		return fmt.Errorf("confidence must be between 0 and 100, got %f", s.Confidence)
	}
	if s.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	return nil
}

// AnalystFailure records an analyst that produced no signal this cycle.
type AnalystFailure struct {
	Analyst string
	Reason  string
}
