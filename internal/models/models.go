// Package models provides domain models shared across the decision engine.
package models

import "time"

// Action represents a directional trading action.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
	Hold Action = "HOLD"
)

// Side represents the direction of an open position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// SideForAction maps a directional action to a position side.
// Hold has no side and returns "".
func SideForAction(a Action) Side {
	switch a {
	case Buy:
		return SideLong
	case Sell:
		return SideShort
	}
	return ""
}

// Candle represents OHLCV data for a time period.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// MarketSnapshot is the immutable market view handed to every analyst for
// one decision cycle. Candles are ordered oldest to newest.
type MarketSnapshot struct {
	Symbol     string
	Interval   string
	Timestamp  time.Time
	Candles    []Candle
	Indicators map[string]float64 // optional precomputed values
}

// LastClose returns the most recent close price, or 0 for an empty window.
func (s *MarketSnapshot) LastClose() float64 {
	if len(s.Candles) == 0 {
		return 0
	}
	return s.Candles[len(s.Candles)-1].Close
}

// Closes returns the close series of the snapshot window.
func (s *MarketSnapshot) Closes() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Close
	}
	return out
}

// Volumes returns the volume series of the snapshot window.
func (s *MarketSnapshot) Volumes() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Volume
	}
	return out
}

// ClampConfidence ensures a confidence value stays within [0, 100].
func ClampConfidence(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 100 {
		return 100
	}
	return confidence
}
