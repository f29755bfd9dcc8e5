package models

import "time"

// Resolution describes how a Decision was reached.
type Resolution string

const (
	ResolutionSingleSource Resolution = "single-source"
	ResolutionWeightedVote Resolution = "weighted-vote"
	ResolutionLLMTiebreak  Resolution = "llm-tiebreak"
	ResolutionFallbackHold Resolution = "fallback-hold"
)

// Decision is the engine's single merged trading opinion for one cycle.
// Immutable once emitted.
type Decision struct {
	ID          string
	Symbol      string
	Action      Action
	Confidence  float64 // 0-100
	Resolution  Resolution
	Signals     []AnalystSignal // contributing signals, collection order
	Unavailable []AnalystFailure
	Reasoning   string
	Scores      map[Action]float64 // weighted score per side
	Timestamp   time.Time
}

// Directional reports whether the decision proposes opening a position.
func (d *Decision) Directional() bool {
	return d.Action == Buy || d.Action == Sell
}
