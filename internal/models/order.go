package models

import "time"

// Order is a simulated order derived from an approved RiskVerdict.
type Order struct {
	ID              string
	DecisionID      string
	Symbol          string
	Side            Side
	Quantity        float64
	Price           float64 // requested entry price
	StopLoss        float64
	TakeProfit      float64
	TrailingStop    bool
	TrailingPercent float64
	PlacedAt        time.Time
}
