package analyst

import (
	"context"
	"fmt"

	"github.com/ProjectTradeAI/agentrader/internal/errors"
	"github.com/ProjectTradeAI/agentrader/internal/models"
)

const sentimentWindow = 20

// SentimentAnalyst derives a fear/greed reading from price momentum and
// volume expansion over the recent window. Deterministic over the snapshot.
type SentimentAnalyst struct {
	base
}

// NewSentimentAnalyst creates a sentiment analyst.
func NewSentimentAnalyst() *SentimentAnalyst {
	return &SentimentAnalyst{base: base{name: "sentiment"}}
}

// Analyze maps a 0-100 sentiment score (50 = neutral) onto an action.
// Extreme greed or fear reads as momentum to follow; a mild reading is HOLD.
func (a *SentimentAnalyst) Analyze(ctx context.Context, snapshot *models.MarketSnapshot) (*models.AnalystSignal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	candles := snapshot.Candles
	if len(candles) < sentimentWindow {
		return nil, fmt.Errorf("%w: need %d candles, have %d", errors.ErrInsufficientData, sentimentWindow, len(candles))
	}

	window := candles[len(candles)-sentimentWindow:]
	first, lastC := window[0], window[len(window)-1]

	momentum := 0.0
	if first.Close > 0 {
		momentum = (lastC.Close - first.Close) / first.Close
	}

	// Volume expansion: last quarter of the window vs the rest.
	quarter := len(window) / 4
	var recentVol, baseVol float64
	for i, c := range window {
		if i >= len(window)-quarter {
			recentVol += c.Volume
		} else {
			baseVol += c.Volume
		}
	}
	volRatio := 1.0
	if baseVol > 0 && quarter > 0 {
		volRatio = (recentVol / float64(quarter)) / (baseVol / float64(len(window)-quarter))
	}

	// Momentum centred at 50, amplified when volume confirms the move.
	score := 50 + momentum*500
	if volRatio > 1.2 {
		score = 50 + (score-50)*1.25
	}
	score = models.ClampConfidence(score)

	action := models.Hold
	confidence := 50.0
	switch {
	case score >= 60:
		action = models.Buy
		confidence = 40 + (score-50)*1.2
	case score <= 40:
		action = models.Sell
		confidence = 40 + (50-score)*1.2
	}

	sig := a.signal(snapshot, action, confidence,
		fmt.Sprintf("sentiment score %.0f/100 (momentum %+.2f%%, volume ratio %.2f)", score, momentum*100, volRatio))
	sig.Metrics["sentiment_score"] = score
	sig.Metrics["momentum"] = momentum
	sig.Metrics["volume_ratio"] = volRatio
	return sig, nil
}
