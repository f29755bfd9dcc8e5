package analyst

import (
	"context"
	"fmt"

	talib "github.com/markcheno/go-talib"

	"github.com/ProjectTradeAI/agentrader/internal/errors"
	"github.com/ProjectTradeAI/agentrader/internal/models"
)

const liquidityWindow = 20

// LiquidityAnalyst reads volume depth and range spread. Thin or erratic
// liquidity is a reason to stand aside; deep liquidity behind a directional
// move is a reason to follow it.
type LiquidityAnalyst struct {
	base
	obvPeriod int
}

// NewLiquidityAnalyst creates a liquidity analyst.
func NewLiquidityAnalyst() *LiquidityAnalyst {
	return &LiquidityAnalyst{base: base{name: "liquidity"}, obvPeriod: 10}
}

// Analyze votes with on-balance volume direction when liquidity is deep
// enough, and HOLDs with high confidence when the book looks thin.
func (a *LiquidityAnalyst) Analyze(ctx context.Context, snapshot *models.MarketSnapshot) (*models.AnalystSignal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	candles := snapshot.Candles
	if len(candles) < liquidityWindow {
		return nil, fmt.Errorf("%w: need %d candles, have %d", errors.ErrInsufficientData, liquidityWindow, len(candles))
	}

	window := candles[len(candles)-liquidityWindow:]

	// Average relative spread of each candle's range.
	var spreadSum float64
	for _, c := range window {
		if c.Close > 0 {
			spreadSum += (c.High - c.Low) / c.Close
		}
	}
	avgSpread := spreadSum / float64(len(window))

	// Current volume against the window average.
	var volSum float64
	for _, c := range window {
		volSum += c.Volume
	}
	avgVol := volSum / float64(len(window))
	lastVol := window[len(window)-1].Volume
	volRatio := 1.0
	if avgVol > 0 {
		volRatio = lastVol / avgVol
	}

	obv := talib.Obv(snapshot.Closes(), snapshot.Volumes())
	obvNow := last(obv)
	obvThen := 0.0
	if len(obv) > a.obvPeriod {
		obvThen = obv[len(obv)-1-a.obvPeriod]
	}

	// Wide spreads with vanishing volume: stand aside.
	if volRatio < 0.5 && avgSpread > 0.02 {
		sig := a.signal(snapshot, models.Hold, 70,
			fmt.Sprintf("thin liquidity: volume at %.0f%% of average with %.2f%% avg spread", volRatio*100, avgSpread*100))
		sig.Metrics["volume_ratio"] = volRatio
		sig.Metrics["avg_spread"] = avgSpread
		return sig, nil
	}

	action := models.Hold
	confidence := 50.0
	switch {
	case obvNow > obvThen && volRatio >= 1.0:
		action = models.Buy
		confidence = 55 + 10*minF(volRatio-1, 2)
	case obvNow < obvThen && volRatio >= 1.0:
		action = models.Sell
		confidence = 55 + 10*minF(volRatio-1, 2)
	}

	sig := a.signal(snapshot, action, confidence,
		fmt.Sprintf("OBV %s over %d candles, volume ratio %.2f, avg spread %.2f%%",
			obvDirection(obvNow, obvThen), a.obvPeriod, volRatio, avgSpread*100))
	sig.Metrics["obv"] = obvNow
	sig.Metrics["volume_ratio"] = volRatio
	sig.Metrics["avg_spread"] = avgSpread
	return sig, nil
}

func obvDirection(now, then float64) string {
	switch {
	case now > then:
		return "rising"
	case now < then:
		return "falling"
	}
	return "flat"
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
