package models

import "time"

// PositionStatus represents the lifecycle state of a Position.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "open"
	PositionClosed PositionStatus = "closed"
)

// ExitReason records why a Position was closed.
type ExitReason string

const (
	ExitStopLoss     ExitReason = "stop-loss"
	ExitTakeProfit   ExitReason = "take-profit"
	ExitTrailingStop ExitReason = "trailing-stop"
	ExitManual       ExitReason = "manual"
	ExitEndOfRun     ExitReason = "end-of-backtest"
)

// Position is an open simulated holding in one symbol. Stop and take levels
// are live: the trailing-stop ratchet tightens StopLoss as price moves
// favorably, and never loosens it.
type Position struct {
	ID              string
	OrderID         string
	Symbol          string
	Side            Side
	Quantity        float64
	EntryPrice      float64
	StopLoss        float64
	TakeProfit      float64
	TrailingStop    bool
	TrailingPercent float64
	HighWaterMark   float64 // best favorable price seen since entry
	Status          PositionStatus
	OpenedAt        time.Time
}

// CostBasis returns the cash consumed when the position was opened.
func (p *Position) CostBasis() float64 {
	return p.EntryPrice * p.Quantity
}

// Trade is the closed, realized record of a Position. Append-only.
type Trade struct {
	ID         string
	PositionID string
	DecisionID string
	Symbol     string
	Side       Side
	Quantity   float64
	EntryPrice float64
	ExitPrice  float64
	PnL        float64
	PnLPercent float64
	ExitReason ExitReason
	OpenedAt   time.Time
	ClosedAt   time.Time
}
