// Package risk validates proposed decisions against position, exposure and
// drawdown policy. A veto always degrades to "no new order this cycle",
// never to an error.
package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/ProjectTradeAI/agentrader/internal/config"
	"github.com/ProjectTradeAI/agentrader/internal/models"
)

// Guard applies the risk policy to each Decision.
type Guard struct {
	cfg    config.RiskConfig
	ledger config.LedgerConfig
	logger zerolog.Logger
}

// NewGuard creates a risk guard from static policy. The scale factors are
// preserved source heuristics, configurable rather than derived.
func NewGuard(cfg config.RiskConfig, ledger config.LedgerConfig, logger zerolog.Logger) *Guard {
	return &Guard{cfg: cfg, ledger: ledger, logger: logger}
}

// Evaluate produces the RiskVerdict for a Decision. Rules apply in order:
// daily drawdown veto, extreme-market veto for directional actions,
// risk-proportional size scaling with stop tightening, then the minimum
// viable size check.
func (g *Guard) Evaluate(decision *models.Decision, account *models.AccountSnapshot, snapshot *models.MarketSnapshot) *models.RiskVerdict {
	v := &models.RiskVerdict{
		DecisionID: decision.ID,
		Verdict:    models.VerdictApproved,
		SizeScale:  1.0,
		Timestamp:  time.Now().UTC(),
	}
	v.MarketRisk = g.marketRisk(snapshot)

	drawdown := account.DailyDrawdownPercent()
	if drawdown >= g.cfg.MaxDailyDrawdownPct {
		v.Verdict = models.VerdictVetoed
		v.SizeScale = 0
		v.Reason = fmt.Sprintf("daily drawdown %.2f%% >= limit %.2f%%", drawdown, g.cfg.MaxDailyDrawdownPct)
		v.Violations = append(v.Violations, v.Reason)
		return v
	}

	if !decision.Directional() {
		v.Reason = "no directional action proposed"
		return v
	}

	if v.MarketRisk == models.RiskExtreme {
		v.Verdict = models.VerdictVetoed
		v.SizeScale = 0
		v.Reason = "market risk EXTREME, directional entries suspended"
		v.Violations = append(v.Violations, v.Reason)
		return v
	}

	scale := g.scaleFor(v.MarketRisk)
	entry := snapshot.LastClose()
	side := models.SideForAction(decision.Action)

	// Tighten the stop distance by the same factor that shrinks the size.
	stopPct := g.ledger.StopLossPercent * scale
	takePct := g.ledger.TakeProfitPct
	v.StopLoss, v.TakeProfit = exitLevels(side, entry, stopPct, takePct)

	equity := account.Equity
	nominal := equity * g.cfg.MaxPositionPercent / 100
	v.SizeCap = nominal * scale

	if scale < 1.0 {
		v.Verdict = models.VerdictAdjusted
		v.Reason = fmt.Sprintf("market risk %s, size scaled to %.0f%% with tightened stop", v.MarketRisk, scale*100)
	} else {
		v.Reason = fmt.Sprintf("market risk %s, policy checks passed", v.MarketRisk)
	}
	v.SizeScale = scale

	if v.SizeCap < g.cfg.MinViableNotional {
		v.Verdict = models.VerdictVetoed
		v.SizeScale = 0
		v.Reason = fmt.Sprintf("adjusted size cap %.2f below minimum viable %.2f", v.SizeCap, g.cfg.MinViableNotional)
		v.Violations = append(v.Violations, v.Reason)
	}
	return v
}

// scaleFor maps a risk level to the allowed fraction of nominal size.
func (g *Guard) scaleFor(level models.RiskLevel) float64 {
	switch level {
	case models.RiskMedium:
		return g.cfg.SizeScaleMedium
	case models.RiskHigh:
		return g.cfg.SizeScaleHigh
	case models.RiskExtreme:
		return 0
	}
	return 1.0
}

const riskWindow = 20

// marketRisk grades recent volatility and volume into a risk level. The
// thresholds are per-candle return volatility, stretched by the configured
// multiplier; a strong volume spike bumps the level one notch.
func (g *Guard) marketRisk(snapshot *models.MarketSnapshot) models.RiskLevel {
	if snapshot == nil || len(snapshot.Candles) < riskWindow {
		return models.RiskMedium
	}

	closes := snapshot.Closes()
	window := closes[len(closes)-riskWindow:]
	vol := ReturnVolatility(window)

	mult := g.cfg.VolatilityMultiplier
	if mult <= 0 {
		mult = 1.0
	}

	level := models.RiskLow
	switch {
	case vol >= 0.03*mult:
		level = models.RiskExtreme
	case vol >= 0.015*mult:
		level = models.RiskHigh
	case vol >= 0.005*mult:
		level = models.RiskMedium
	}

	if volumeSpike(snapshot) && level != models.RiskExtreme {
		level = bump(level)
	}
	return level
}

// ReturnVolatility is the standard deviation of simple per-candle returns.
func ReturnVolatility(closes []float64) float64 {
	if len(closes) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] > 0 {
			returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
		}
	}
	if len(returns) == 0 {
		return 0
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	return math.Sqrt(variance)
}

func volumeSpike(snapshot *models.MarketSnapshot) bool {
	vols := snapshot.Volumes()
	if len(vols) < riskWindow {
		return false
	}
	window := vols[len(vols)-riskWindow:]
	var sum float64
	for _, v := range window[:len(window)-1] {
		sum += v
	}
	avg := sum / float64(len(window)-1)
	return avg > 0 && window[len(window)-1] > 3*avg
}

func bump(level models.RiskLevel) models.RiskLevel {
	switch level {
	case models.RiskLow:
		return models.RiskMedium
	case models.RiskMedium:
		return models.RiskHigh
	}
	return models.RiskExtreme
}

// exitLevels computes stop and take prices from entry and percent distances.
func exitLevels(side models.Side, entry, stopPct, takePct float64) (stop, take float64) {
	if entry <= 0 {
		return 0, 0
	}
	if side == models.SideLong {
		if stopPct > 0 {
			stop = entry * (1 - stopPct/100)
		}
		if takePct > 0 {
			take = entry * (1 + takePct/100)
		}
		return stop, take
	}
	if stopPct > 0 {
		stop = entry * (1 + stopPct/100)
	}
	if takePct > 0 {
		take = entry * (1 - takePct/100)
	}
	return stop, take
}
