package risk

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/ProjectTradeAI/agentrader/internal/config"
	"github.com/ProjectTradeAI/agentrader/internal/models"
)

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		RiskPerTradePercent:  2.0,
		MaxDailyDrawdownPct:  5.0,
		MaxPositionPercent:   25.0,
		MaxPositions:         1,
		VolatilityMultiplier: 1.0,
		SizeScaleMedium:      0.75,
		SizeScaleHigh:        0.5,
		MinViableNotional:    10.0,
	}
}

func testLedgerConfig() config.LedgerConfig {
	return config.LedgerConfig{
		InitialBalance:  10000,
		StopLossPercent: 5.0,
		TakeProfitPct:   10.0,
	}
}

func buyDecision() *models.Decision {
	return &models.Decision{
		ID:         "dec-1",
		Symbol:     "BTCUSDT",
		Action:     models.Buy,
		Confidence: 70,
		Resolution: models.ResolutionWeightedVote,
		Timestamp:  time.Now().UTC(),
	}
}

func holdDecision() *models.Decision {
	d := buyDecision()
	d.Action = models.Hold
	return d
}

func flatAccount() *models.AccountSnapshot {
	return &models.AccountSnapshot{
		Cash:       10000,
		Equity:     10000,
		PeakEquity: 10000,
		Timestamp:  time.Now().UTC(),
	}
}

// snapshotWithVol builds a candle window whose per-candle return magnitude
// is close to the given fraction, alternating direction so the drift stays
// near zero and the sampled volatility near the target.
func snapshotWithVol(vol float64) *models.MarketSnapshot {
	candles := make([]models.Candle, 60)
	price := 100.0
	ts := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := range candles {
		move := price * vol
		if i%2 == 0 {
			price += move
		} else {
			price -= move
		}
		candles[i] = models.Candle{
			Timestamp: ts.Add(time.Duration(i) * time.Hour),
			Open:      price,
			High:      price * 1.001,
			Low:       price * 0.999,
			Close:     price,
			Volume:    1000,
		}
	}
	return &models.MarketSnapshot{
		Symbol:    "BTCUSDT",
		Interval:  "1h",
		Timestamp: ts.Add(60 * time.Hour),
		Candles:   candles,
	}
}

func TestEvaluateDailyDrawdownVetoes(t *testing.T) {
	g := NewGuard(testRiskConfig(), testLedgerConfig(), zerolog.Nop())

	account := flatAccount()
	account.DailyPnL = -600 // 6% of 10k peak, above the 5% limit
	account.Equity = 9400

	v := g.Evaluate(buyDecision(), account, snapshotWithVol(0.001))

	assert.Equal(t, models.VerdictVetoed, v.Verdict)
	assert.False(t, v.Approved())
	assert.Zero(t, v.SizeScale)
	assert.NotEmpty(t, v.Violations)
}

func TestEvaluateDrawdownVetoAppliesEvenToHold(t *testing.T) {
	g := NewGuard(testRiskConfig(), testLedgerConfig(), zerolog.Nop())

	account := flatAccount()
	account.DailyPnL = -600
	account.Equity = 9400

	v := g.Evaluate(holdDecision(), account, snapshotWithVol(0.001))
	assert.Equal(t, models.VerdictVetoed, v.Verdict)
}

func TestEvaluateHoldPassesThrough(t *testing.T) {
	g := NewGuard(testRiskConfig(), testLedgerConfig(), zerolog.Nop())

	v := g.Evaluate(holdDecision(), flatAccount(), snapshotWithVol(0.001))

	assert.Equal(t, models.VerdictApproved, v.Verdict)
	assert.Zero(t, v.StopLoss)
	assert.Zero(t, v.SizeCap)
}

func TestEvaluateLowRiskFullSize(t *testing.T) {
	g := NewGuard(testRiskConfig(), testLedgerConfig(), zerolog.Nop())

	v := g.Evaluate(buyDecision(), flatAccount(), snapshotWithVol(0.001))

	assert.Equal(t, models.VerdictApproved, v.Verdict)
	assert.Equal(t, models.RiskLow, v.MarketRisk)
	assert.Equal(t, 1.0, v.SizeScale)
	assert.InDelta(t, 2500.0, v.SizeCap, 1e-6) // 25% of 10k equity
	assert.Greater(t, v.StopLoss, 0.0)
	assert.Greater(t, v.TakeProfit, v.StopLoss)
}

func TestEvaluateHighRiskScalesAndTightensStop(t *testing.T) {
	g := NewGuard(testRiskConfig(), testLedgerConfig(), zerolog.Nop())

	snapLow := snapshotWithVol(0.001)
	snapHigh := snapshotWithVol(0.02)

	full := g.Evaluate(buyDecision(), flatAccount(), snapLow)
	scaled := g.Evaluate(buyDecision(), flatAccount(), snapHigh)

	assert.Equal(t, models.RiskHigh, scaled.MarketRisk)
	assert.Equal(t, models.VerdictAdjusted, scaled.Verdict)
	assert.True(t, scaled.Approved())
	assert.Equal(t, 0.5, scaled.SizeScale)
	assert.InDelta(t, 1250.0, scaled.SizeCap, 1e-6)

	// A scaled stop percent means the stop sits closer to entry. Entries
	// differ between the two snapshots, so compare distances relatively.
	fullDist := (full.TakeProfit/1.10 - full.StopLoss) / (full.TakeProfit / 1.10)
	scaledDist := (scaled.TakeProfit/1.10 - scaled.StopLoss) / (scaled.TakeProfit / 1.10)
	assert.Less(t, scaledDist, fullDist)
}

func TestEvaluateExtremeRiskVetoesDirectional(t *testing.T) {
	g := NewGuard(testRiskConfig(), testLedgerConfig(), zerolog.Nop())

	v := g.Evaluate(buyDecision(), flatAccount(), snapshotWithVol(0.04))

	assert.Equal(t, models.RiskExtreme, v.MarketRisk)
	assert.Equal(t, models.VerdictVetoed, v.Verdict)
	assert.Zero(t, v.SizeScale)
}

func TestEvaluateExtremeRiskStillApprovesHold(t *testing.T) {
	g := NewGuard(testRiskConfig(), testLedgerConfig(), zerolog.Nop())

	v := g.Evaluate(holdDecision(), flatAccount(), snapshotWithVol(0.04))
	assert.Equal(t, models.VerdictApproved, v.Verdict)
}

func TestEvaluateMinViableSizeVetoes(t *testing.T) {
	g := NewGuard(testRiskConfig(), testLedgerConfig(), zerolog.Nop())

	account := flatAccount()
	account.Cash = 30
	account.Equity = 30

	v := g.Evaluate(buyDecision(), account, snapshotWithVol(0.001))

	// 25% of 30 equity is 7.50, below the minimum viable notional of 10.
	assert.Equal(t, models.VerdictVetoed, v.Verdict)
	assert.Zero(t, v.SizeScale)
}

func TestEvaluateShortExitLevelsMirror(t *testing.T) {
	g := NewGuard(testRiskConfig(), testLedgerConfig(), zerolog.Nop())

	d := buyDecision()
	d.Action = models.Sell
	v := g.Evaluate(d, flatAccount(), snapshotWithVol(0.001))

	assert.True(t, v.Approved())
	assert.Greater(t, v.StopLoss, v.TakeProfit) // short: stop above, take below
}

func TestReturnVolatility(t *testing.T) {
	assert.Zero(t, ReturnVolatility(nil))
	assert.Zero(t, ReturnVolatility([]float64{100}))
	assert.Zero(t, ReturnVolatility([]float64{100, 100, 100}))

	vol := ReturnVolatility([]float64{100, 102, 100, 102, 100})
	assert.Greater(t, vol, 0.0)
}
