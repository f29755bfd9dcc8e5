// Package sizing converts an approved decision and account state into a
// concrete order quantity.
package sizing

import (
	"math"

	"github.com/ProjectTradeAI/agentrader/internal/config"
	"github.com/ProjectTradeAI/agentrader/internal/models"
)

// Sizing method names recognized in configuration.
const (
	MethodFixedFractional    = "fixed_fractional"
	MethodVolatilityAdjusted = "volatility_adjusted"
)

// Sizer is a deterministic position sizer. The same inputs always produce
// the same quantity.
type Sizer struct {
	cfg  config.SizingConfig
	risk config.RiskConfig
}

// NewSizer creates a position sizer.
func NewSizer(cfg config.SizingConfig, risk config.RiskConfig) *Sizer {
	return &Sizer{cfg: cfg, risk: risk}
}

// Input carries everything a sizing method may consult.
type Input struct {
	Verdict    *models.RiskVerdict
	Account    *models.AccountSnapshot
	EntryPrice float64
	StopLoss   float64
	Volatility float64 // realized per-candle return volatility
}

// Quantity computes the order quantity: the blend of the configured
// methods, scaled by the risk verdict, capped so the notional never
// exceeds available cash or the per-asset exposure cap.
func (s *Sizer) Quantity(in Input) float64 {
	if in.EntryPrice <= 0 || in.Account == nil || in.Verdict == nil || !in.Verdict.Approved() {
		return 0
	}

	notional := s.blend(in)
	notional *= in.Verdict.SizeScale

	if in.Verdict.SizeCap > 0 && notional > in.Verdict.SizeCap {
		notional = in.Verdict.SizeCap
	}
	if notional > in.Account.Cash {
		notional = in.Account.Cash
	}
	maxExposure := in.Account.Equity * s.risk.MaxPositionPercent / 100
	if maxExposure > 0 && notional > maxExposure {
		notional = maxExposure
	}
	if notional <= 0 {
		return 0
	}
	return notional / in.EntryPrice
}

// blend returns the weighted mean notional across the configured methods.
// An empty or unknown configuration falls back to fixed fractional.
func (s *Sizer) blend(in Input) float64 {
	weights := s.cfg.MethodWeights
	if len(weights) == 0 {
		weights = map[string]float64{MethodFixedFractional: 1.0}
	}

	var sum, totalWeight float64
	for method, w := range weights {
		if w <= 0 {
			continue
		}
		var notional float64
		switch method {
		case MethodFixedFractional:
			notional = s.fixedFractional(in)
		case MethodVolatilityAdjusted:
			notional = s.volatilityAdjusted(in)
		default:
			continue
		}
		sum += notional * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return s.fixedFractional(in)
	}
	return sum / totalWeight
}

// fixedFractional risks a fixed percentage of equity against the stop
// distance. With no usable stop it falls back to the plain trade-size
// fraction of equity.
func (s *Sizer) fixedFractional(in Input) float64 {
	equity := in.Account.Equity
	if equity <= 0 {
		return 0
	}

	stopDistance := math.Abs(in.EntryPrice - in.StopLoss)
	if in.StopLoss <= 0 || stopDistance <= 0 {
		return equity * s.cfg.TradeSizePercent / 100
	}

	riskBudget := equity * s.risk.RiskPerTradePercent / 100
	qty := riskBudget / stopDistance
	return qty * in.EntryPrice
}

// volatilityAdjusted scales the base trade size toward a target volatility,
// clamped to [0.25, 1.5] of nominal.
func (s *Sizer) volatilityAdjusted(in Input) float64 {
	base := in.Account.Equity * s.cfg.TradeSizePercent / 100
	if in.Volatility <= 0 || s.cfg.TargetVolatility <= 0 {
		return base
	}
	factor := s.cfg.TargetVolatility / in.Volatility
	if factor < 0.25 {
		factor = 0.25
	}
	if factor > 1.5 {
		factor = 1.5
	}
	return base * factor
}
