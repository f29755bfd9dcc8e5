package analyst

import (
	"context"
	"fmt"

	talib "github.com/markcheno/go-talib"

	"github.com/ProjectTradeAI/agentrader/internal/errors"
	"github.com/ProjectTradeAI/agentrader/internal/models"
)

const technicalWarmup = 35 // slow MACD period + signal period

// TechnicalAnalyst votes from RSI, MACD and EMA trend alignment.
type TechnicalAnalyst struct {
	base
	rsiPeriod  int
	emaFast    int
	emaSlow    int
	overbought float64
	oversold   float64
}

// NewTechnicalAnalyst creates a technical analyst with standard periods.
func NewTechnicalAnalyst() *TechnicalAnalyst {
	return &TechnicalAnalyst{
		base:       base{name: "technical"},
		rsiPeriod:  14,
		emaFast:    9,
		emaSlow:    21,
		overbought: 70,
		oversold:   30,
	}
}

// Analyze scores the snapshot on three indicator checks and votes with the
// majority of them; each agreeing check adds confidence.
func (a *TechnicalAnalyst) Analyze(ctx context.Context, snapshot *models.MarketSnapshot) (*models.AnalystSignal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	closes := snapshot.Closes()
	if len(closes) < technicalWarmup {
		return nil, fmt.Errorf("%w: need %d candles, have %d", errors.ErrInsufficientData, technicalWarmup, len(closes))
	}

	rsi := last(talib.Rsi(closes, a.rsiPeriod))
	macd, macdSignal, _ := talib.Macd(closes, 12, 26, 9)
	macdNow, sigNow := last(macd), last(macdSignal)
	macdPrev, sigPrev := prev(macd), prev(macdSignal)
	emaFast := last(talib.Ema(closes, a.emaFast))
	emaSlow := last(talib.Ema(closes, a.emaSlow))

	var bull, bear int
	if rsi <= a.oversold {
		bull++
	} else if rsi >= a.overbought {
		bear++
	}
	if macdPrev <= sigPrev && macdNow > sigNow {
		bull++
	} else if macdPrev >= sigPrev && macdNow < sigNow {
		bear++
	}
	if emaFast > emaSlow {
		bull++
	} else if emaFast < emaSlow {
		bear++
	}

	action := models.Hold
	votes := 0
	switch {
	case bull > bear:
		action, votes = models.Buy, bull
	case bear > bull:
		action, votes = models.Sell, bear
	}

	confidence := 40.0 + 20.0*float64(votes)
	if action == models.Hold {
		confidence = 50
	}

	sig := a.signal(snapshot, action, confidence,
		fmt.Sprintf("RSI %.1f, MACD %.4f vs signal %.4f, EMA%d/%d %s",
			rsi, macdNow, sigNow, a.emaFast, a.emaSlow, trendWord(emaFast, emaSlow)))
	sig.Metrics["rsi"] = rsi
	sig.Metrics["macd"] = macdNow
	sig.Metrics["macd_signal"] = sigNow
	sig.Metrics["ema_fast"] = emaFast
	sig.Metrics["ema_slow"] = emaSlow
	return sig, nil
}

func trendWord(fast, slow float64) string {
	switch {
	case fast > slow:
		return "bullish"
	case fast < slow:
		return "bearish"
	}
	return "flat"
}

func last(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

func prev(series []float64) float64 {
	if len(series) < 2 {
		return 0
	}
	return series[len(series)-2]
}
