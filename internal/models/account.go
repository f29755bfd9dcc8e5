package models

import "time"

// EquityPoint is one sample of the account equity curve.
type EquityPoint struct {
	Timestamp time.Time
	Equity    float64
}

// AccountSnapshot is a read-only copy of the ledger account state taken at
// a point in time. The mutable account itself is owned by the ledger.
type AccountSnapshot struct {
	Cash          float64
	RealizedPnL   float64
	Equity        float64
	OpenPositions []Position
	DailyPnL      float64
	PeakEquity    float64
	Timestamp     time.Time
}

// OpenPositionCount returns the number of open positions in the snapshot.
func (a *AccountSnapshot) OpenPositionCount() int {
	return len(a.OpenPositions)
}

// HasPosition reports whether a position is open for the symbol.
func (a *AccountSnapshot) HasPosition(symbol string) bool {
	for _, p := range a.OpenPositions {
		if p.Symbol == symbol {
			return true
		}
	}
	return false
}

// DailyDrawdownPercent returns today's realized loss as a positive
// percentage of peak equity, or 0 when the day is flat or profitable.
func (a *AccountSnapshot) DailyDrawdownPercent() float64 {
	if a.DailyPnL >= 0 || a.PeakEquity <= 0 {
		return 0
	}
	return -a.DailyPnL / a.PeakEquity * 100
}
