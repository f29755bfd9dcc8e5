package models

import "time"

// DirectionStats is the per-direction (long/short) performance breakdown.
type DirectionStats struct {
	Trades   int
	Wins     int
	Losses   int
	WinRate  float64
	TotalPnL float64
	AvgPnL   float64
}

// PerformanceReport is a pure projection over the trade list and equity
// curve. It is always recomputable and never a source of truth.
type PerformanceReport struct {
	InitialEquity    float64
	FinalEquity      float64
	TotalReturn      float64 // percent
	AnnualizedReturn float64 // percent
	TotalTrades      int
	WinningTrades    int
	LosingTrades     int
	WinRate          float64 // percent
	ProfitFactor     float64 // +Inf when no losses and at least one win
	MaxDrawdown      float64 // percent, peak to trough
	SharpeRatio      float64
	AvgWin           float64
	AvgLoss          float64
	Long             DirectionStats
	Short            DirectionStats
	PeriodStart      time.Time
	PeriodEnd        time.Time
}
