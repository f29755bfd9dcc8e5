package performance

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProjectTradeAI/agentrader/internal/models"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func trade(side models.Side, pnl float64, closedAt time.Time) models.Trade {
	return models.Trade{
		ID:         "t",
		Symbol:     "BTCUSDT",
		Side:       side,
		Quantity:   1,
		EntryPrice: 100,
		ExitPrice:  100 + pnl,
		PnL:        pnl,
		ExitReason: models.ExitTakeProfit,
		OpenedAt:   closedAt.Add(-time.Hour),
		ClosedAt:   closedAt,
	}
}

func curveOf(equities ...float64) []models.EquityPoint {
	out := make([]models.EquityPoint, len(equities))
	for i, e := range equities {
		out[i] = models.EquityPoint{Timestamp: t0.Add(time.Duration(i) * 24 * time.Hour), Equity: e}
	}
	return out
}

func TestDeriveEmptyInputs(t *testing.T) {
	r := Derive(10000, nil, nil)

	assert.Equal(t, 10000.0, r.InitialEquity)
	assert.Equal(t, 10000.0, r.FinalEquity)
	assert.Zero(t, r.TotalTrades)
	assert.Zero(t, r.WinRate)
	assert.Zero(t, r.ProfitFactor)
	assert.Zero(t, r.MaxDrawdown)
}

func TestDeriveBasicStats(t *testing.T) {
	trades := []models.Trade{
		trade(models.SideLong, 200, t0.Add(24*time.Hour)),
		trade(models.SideLong, -100, t0.Add(48*time.Hour)),
		trade(models.SideShort, 50, t0.Add(72*time.Hour)),
		trade(models.SideLong, -50, t0.Add(96*time.Hour)),
	}
	curve := curveOf(10000, 10200, 10100, 10150, 10100)

	r := Derive(10000, curve, trades)

	assert.Equal(t, 4, r.TotalTrades)
	assert.Equal(t, 2, r.WinningTrades)
	assert.Equal(t, 2, r.LosingTrades)
	assert.InDelta(t, 50.0, r.WinRate, 1e-9)
	assert.InDelta(t, (200.0+50.0)/(100.0+50.0), r.ProfitFactor, 1e-9)
	assert.InDelta(t, 125.0, r.AvgWin, 1e-9)
	assert.InDelta(t, -75.0, r.AvgLoss, 1e-9)
	assert.InDelta(t, 1.0, r.TotalReturn, 1e-9)

	assert.Equal(t, 3, r.Long.Trades)
	assert.Equal(t, 1, r.Short.Trades)
	assert.InDelta(t, 100.0, r.Short.WinRate, 1e-9)
}

func TestDeriveProfitFactorInfiniteWithNoLosses(t *testing.T) {
	trades := []models.Trade{
		trade(models.SideLong, 100, t0.Add(24*time.Hour)),
		trade(models.SideLong, 200, t0.Add(48*time.Hour)),
	}
	r := Derive(10000, curveOf(10000, 10100, 10300), trades)

	assert.True(t, math.IsInf(r.ProfitFactor, 1))
	assert.InDelta(t, 100.0, r.WinRate, 1e-9)
}

func TestDeriveMaxDrawdown(t *testing.T) {
	// Peak 12000, trough 9000: 25% drawdown.
	curve := curveOf(10000, 12000, 9000, 11000)
	r := Derive(10000, curve, nil)

	assert.InDelta(t, 25.0, r.MaxDrawdown, 1e-9)
}

func TestDeriveIsIdempotent(t *testing.T) {
	trades := []models.Trade{
		trade(models.SideLong, 200, t0.Add(24*time.Hour)),
		trade(models.SideShort, -80, t0.Add(48*time.Hour)),
	}
	curve := curveOf(10000, 10200, 10120)

	first := Derive(10000, curve, trades)
	second := Derive(10000, curve, trades)

	require.True(t, reflect.DeepEqual(first, second),
		"deriving twice from the same history must yield identical reports")
}

func TestDeriveNeverMutatesInputs(t *testing.T) {
	trades := []models.Trade{trade(models.SideLong, 100, t0.Add(24*time.Hour))}
	curve := curveOf(10000, 10100)

	tradesBefore := make([]models.Trade, len(trades))
	copy(tradesBefore, trades)
	curveBefore := make([]models.EquityPoint, len(curve))
	copy(curveBefore, curve)

	_ = Derive(10000, curve, trades)

	assert.Equal(t, tradesBefore, trades)
	assert.Equal(t, curveBefore, curve)
}

func TestSharpeZeroForFlatCurve(t *testing.T) {
	r := Derive(10000, curveOf(10000, 10000, 10000, 10000), nil)
	assert.Zero(t, r.SharpeRatio)
}

func TestAnnualizedReturnOverOneYear(t *testing.T) {
	curve := []models.EquityPoint{
		{Timestamp: t0, Equity: 10000},
		{Timestamp: t0.AddDate(1, 0, 0), Equity: 11000},
	}
	r := Derive(10000, curve, nil)

	assert.InDelta(t, 10.0, r.AnnualizedReturn, 0.1)
}
