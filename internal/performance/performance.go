// Package performance derives aggregate statistics from the fill and trade
// history. Everything here is a pure projection: the same inputs always
// produce an identical report, and no state survives between derivations.
package performance

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/ProjectTradeAI/agentrader/internal/models"
)

const riskFreeRate = 0.05 // annual, used by the Sharpe calculation

// Derive computes the performance report from the equity curve and trade
// list. It never mutates its inputs.
func Derive(initialEquity float64, equityCurve []models.EquityPoint, trades []models.Trade) *models.PerformanceReport {
	report := &models.PerformanceReport{
		InitialEquity: initialEquity,
		FinalEquity:   initialEquity,
		TotalTrades:   len(trades),
	}

	if len(equityCurve) > 0 {
		report.PeriodStart = equityCurve[0].Timestamp
		report.PeriodEnd = equityCurve[len(equityCurve)-1].Timestamp
		report.FinalEquity = equityCurve[len(equityCurve)-1].Equity
	}

	tallyTrades(report, trades)
	if initialEquity > 0 {
		report.TotalReturn = (report.FinalEquity - initialEquity) / initialEquity * 100
	}
	report.AnnualizedReturn = annualizedReturn(initialEquity, report.FinalEquity, report.PeriodStart, report.PeriodEnd)
	report.MaxDrawdown = maxDrawdown(equityCurve)
	report.SharpeRatio = sharpe(equityCurve)
	return report
}

func tallyTrades(report *models.PerformanceReport, trades []models.Trade) {
	var grossWins, grossLosses float64
	for _, t := range trades {
		dir := &report.Long
		if t.Side == models.SideShort {
			dir = &report.Short
		}
		dir.Trades++
		dir.TotalPnL += t.PnL

		if t.PnL > 0 {
			report.WinningTrades++
			dir.Wins++
			grossWins += t.PnL
			report.AvgWin += t.PnL
		} else {
			report.LosingTrades++
			dir.Losses++
			grossLosses += -t.PnL
			report.AvgLoss += t.PnL
		}
	}

	if report.WinningTrades > 0 {
		report.AvgWin /= float64(report.WinningTrades)
	}
	if report.LosingTrades > 0 {
		report.AvgLoss /= float64(report.LosingTrades)
	}
	if report.TotalTrades > 0 {
		report.WinRate = float64(report.WinningTrades) / float64(report.TotalTrades) * 100
	}
	finishDirection(&report.Long)
	finishDirection(&report.Short)

	// Profit factor is +Inf when there are wins and no losses; 0 when
	// there are no trades at all.
	switch {
	case grossLosses > 0:
		report.ProfitFactor = grossWins / grossLosses
	case grossWins > 0:
		report.ProfitFactor = math.Inf(1)
	}
}

func finishDirection(d *models.DirectionStats) {
	if d.Trades == 0 {
		return
	}
	d.WinRate = float64(d.Wins) / float64(d.Trades) * 100
	d.AvgPnL = d.TotalPnL / float64(d.Trades)
}

func annualizedReturn(initial, final float64, start, end time.Time) float64 {
	if initial <= 0 || final <= 0 || start.IsZero() || !end.After(start) {
		return 0
	}
	years := end.Sub(start).Hours() / 24 / 365
	if years <= 0 {
		return 0
	}
	return (math.Pow(final/initial, 1/years) - 1) * 100
}

// maxDrawdown is the largest peak-to-trough equity decline, in percent.
func maxDrawdown(curve []models.EquityPoint) float64 {
	var peak, worst float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst * 100
}

// sharpe computes an annualized Sharpe-like ratio over per-sample equity
// returns, inferring the sampling frequency from the curve's timestamps.
func sharpe(curve []models.EquityPoint) float64 {
	if len(curve) < 3 {
		return 0
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if curve[i-1].Equity > 0 {
			returns = append(returns, (curve[i].Equity-curve[i-1].Equity)/curve[i-1].Equity)
		}
	}
	if len(returns) < 2 {
		return 0
	}

	mean := stat.Mean(returns, nil)
	stdDev := stat.StdDev(returns, nil)
	if stdDev == 0 {
		return 0
	}

	perYear := samplesPerYear(curve)
	excess := mean - riskFreeRate/perYear
	return excess / stdDev * math.Sqrt(perYear)
}

func samplesPerYear(curve []models.EquityPoint) float64 {
	span := curve[len(curve)-1].Timestamp.Sub(curve[0].Timestamp)
	if span <= 0 {
		return 252 // daily fallback
	}
	avgInterval := span / time.Duration(len(curve)-1)
	if avgInterval <= 0 {
		return 252
	}
	return float64(365 * 24 * time.Hour / avgInterval)
}
