// Package decision merges analyst signals into one trading decision per
// cycle under a weighted-consensus policy with LLM-assisted tie-breaking.
package decision

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ProjectTradeAI/agentrader/internal/config"
	"github.com/ProjectTradeAI/agentrader/internal/llm"
	"github.com/ProjectTradeAI/agentrader/internal/models"
)

// Completer is the single completion contract the aggregator needs for
// tie-breaking. *llm.Chain satisfies it.
type Completer interface {
	Available() bool
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Aggregator merges collected signals into one Decision.
type Aggregator struct {
	cfg      config.DecisionConfig
	analysts config.AnalystConfig
	tiebreak Completer
	logger   zerolog.Logger
}

// NewAggregator creates a decision aggregator. The tie-break completer may
// be nil; aggregation then never escalates.
func NewAggregator(cfg config.DecisionConfig, analysts config.AnalystConfig, tiebreak *llm.Chain, logger zerolog.Logger) *Aggregator {
	a := &Aggregator{cfg: cfg, analysts: analysts, logger: logger}
	if tiebreak != nil {
		a.tiebreak = tiebreak
	}
	return a
}

// Aggregate produces the cycle Decision from whatever signals arrived.
//
// Zero signals fall back to HOLD at zero confidence. A single signal passes
// through. Multiple signals are scored per side as the sum of
// confidence x weight; the winning score is normalized by the total weight
// present. A genuinely contested vote escalates to the LLM tie-break, whose
// failure keeps the weighted result. Exact ties without an LLM resolve to
// HOLD.
func (a *Aggregator) Aggregate(ctx context.Context, symbol string, signals []models.AnalystSignal, unavailable []models.AnalystFailure) *models.Decision {
	d := &models.Decision{
		ID:          uuid.NewString(),
		Symbol:      symbol,
		Signals:     signals,
		Unavailable: unavailable,
		Timestamp:   time.Now().UTC(),
	}

	switch len(signals) {
	case 0:
		d.Action = models.Hold
		d.Confidence = 0
		d.Resolution = models.ResolutionFallbackHold
		d.Reasoning = "no analyst signals available this cycle"
		return d
	case 1:
		sig := signals[0]
		d.Action = sig.Action
		d.Confidence = models.ClampConfidence(sig.Confidence * a.analysts.Weight(sig.Analyst))
		d.Resolution = models.ResolutionSingleSource
		d.Reasoning = fmt.Sprintf("%s: %s", sig.Analyst, sig.Rationale)
		return d
	}

	scores, totalWeight := a.score(signals)
	d.Scores = scores

	winner, gap, tied := rank(scores)
	contested := gap < a.cfg.ConflictThreshold
	weightedConfidence := 0.0
	if totalWeight > 0 {
		weightedConfidence = models.ClampConfidence(scores[winner] / totalWeight)
	}

	d.Action = winner
	d.Confidence = weightedConfidence
	d.Resolution = models.ResolutionWeightedVote
	d.Reasoning = a.voteSummary(scores, signals)

	if tied {
		// Safety-biased default: a dead heat is not a trade.
		d.Action = models.Hold
		d.Confidence = models.ClampConfidence(scores[models.Hold] / maxF(totalWeight, 1))
	}

	escalate := contested && a.cfg.TiebreakEnabled && a.tiebreak != nil && a.tiebreak.Available()
	if !escalate {
		return d
	}

	verdict, err := a.escalate(ctx, symbol, signals, scores)
	if err != nil {
		// Graceful degradation: the tie-break is an enhancement, never a
		// hard dependency.
		a.logger.Warn().Err(err).Str("symbol", symbol).Msg("tie-break failed, keeping weighted vote")
		return d
	}

	d.Action = verdict.Action
	d.Resolution = models.ResolutionLLMTiebreak
	if verdict.Confidence > 0 {
		d.Confidence = models.ClampConfidence(verdict.Confidence)
	} else {
		d.Confidence = weightedConfidence
	}
	if verdict.Rationale != "" {
		d.Reasoning = verdict.Rationale
	}
	return d
}

// score computes the weighted score per side and the total weight present.
func (a *Aggregator) score(signals []models.AnalystSignal) (map[models.Action]float64, float64) {
	scores := map[models.Action]float64{models.Buy: 0, models.Sell: 0, models.Hold: 0}
	var totalWeight float64
	for _, sig := range signals {
		w := a.analysts.Weight(sig.Analyst)
		totalWeight += w
		scores[sig.Action] += sig.Confidence * w
	}
	return scores, totalWeight
}

// rank finds the winning side, the gap between the top two scores, and
// whether those scores are exactly equal.
func rank(scores map[models.Action]float64) (winner models.Action, gap float64, tied bool) {
	type entry struct {
		action models.Action
		score  float64
	}
	order := []models.Action{models.Buy, models.Sell, models.Hold}
	entries := make([]entry, 0, len(order))
	for _, act := range order {
		entries = append(entries, entry{act, scores[act]})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].score > entries[j].score })

	winner = entries[0].action
	gap = entries[0].score - entries[1].score
	tied = entries[0].score == entries[1].score
	return winner, gap, tied
}

func (a *Aggregator) voteSummary(scores map[models.Action]float64, signals []models.AnalystSignal) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("weighted vote BUY %.1f / SELL %.1f / HOLD %.1f from %d signals: ",
		scores[models.Buy], scores[models.Sell], scores[models.Hold], len(signals)))
	parts := make([]string, 0, len(signals))
	for _, sig := range signals {
		parts = append(parts, fmt.Sprintf("%s %s@%.0f", sig.Analyst, sig.Action, sig.Confidence))
	}
	sb.WriteString(strings.Join(parts, ", "))
	return sb.String()
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
