package sizing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ProjectTradeAI/agentrader/internal/config"
	"github.com/ProjectTradeAI/agentrader/internal/models"
)

func testSizer(methods map[string]float64) *Sizer {
	return NewSizer(
		config.SizingConfig{
			TradeSizePercent: 10.0,
			TargetVolatility: 0.02,
			MethodWeights:    methods,
		},
		config.RiskConfig{
			RiskPerTradePercent: 2.0,
			MaxPositionPercent:  25.0,
		},
	)
}

func approvedVerdict(scale, cap float64) *models.RiskVerdict {
	return &models.RiskVerdict{
		DecisionID: "dec-1",
		Verdict:    models.VerdictApproved,
		SizeScale:  scale,
		SizeCap:    cap,
		Timestamp:  time.Now().UTC(),
	}
}

func account(cash, equity float64) *models.AccountSnapshot {
	return &models.AccountSnapshot{Cash: cash, Equity: equity, PeakEquity: equity}
}

func TestQuantityZeroForVetoedVerdict(t *testing.T) {
	s := testSizer(nil)
	v := approvedVerdict(0, 0)
	v.Verdict = models.VerdictVetoed

	qty := s.Quantity(Input{Verdict: v, Account: account(10000, 10000), EntryPrice: 100, StopLoss: 95})
	assert.Zero(t, qty)
}

func TestQuantityZeroForBadInputs(t *testing.T) {
	s := testSizer(nil)
	assert.Zero(t, s.Quantity(Input{}))
	assert.Zero(t, s.Quantity(Input{Verdict: approvedVerdict(1, 0), EntryPrice: 0}))
	assert.Zero(t, s.Quantity(Input{Verdict: approvedVerdict(1, 0), Account: account(10000, 10000), EntryPrice: -5}))
}

func TestFixedFractionalRiskBudget(t *testing.T) {
	s := testSizer(map[string]float64{MethodFixedFractional: 1.0})

	// Risk budget 2% of 10k = 200; stop distance 5% of entry; notional
	// 200 / 0.05 = 4000, above the 25% exposure cap of 2500.
	qty := s.Quantity(Input{
		Verdict:    approvedVerdict(1.0, 2500),
		Account:    account(10000, 10000),
		EntryPrice: 100,
		StopLoss:   95,
	})
	assert.InDelta(t, 25.0, qty, 1e-9)
}

func TestQuantityHonorsSizeScale(t *testing.T) {
	s := testSizer(map[string]float64{MethodFixedFractional: 1.0})

	// Wide stop keeps the notional well under the cash and exposure caps
	// so the scale is the only thing that differs.
	full := s.Quantity(Input{
		Verdict:    approvedVerdict(1.0, 0),
		Account:    account(10000, 10000),
		EntryPrice: 100,
		StopLoss:   80,
	})
	halved := s.Quantity(Input{
		Verdict:    approvedVerdict(0.5, 0),
		Account:    account(10000, 10000),
		EntryPrice: 100,
		StopLoss:   80,
	})

	assert.Greater(t, full, 0.0)
	assert.InDelta(t, full/2, halved, 1e-9)
}

func TestQuantityCappedByCash(t *testing.T) {
	s := testSizer(map[string]float64{MethodFixedFractional: 1.0})

	qty := s.Quantity(Input{
		Verdict:    approvedVerdict(1.0, 0),
		Account:    account(500, 10000), // most equity is already deployed
		EntryPrice: 100,
		StopLoss:   95,
	})
	assert.LessOrEqual(t, qty*100, 500.0+1e-9)
}

func TestQuantityCappedByVerdictSizeCap(t *testing.T) {
	s := testSizer(map[string]float64{MethodFixedFractional: 1.0})

	qty := s.Quantity(Input{
		Verdict:    approvedVerdict(1.0, 300),
		Account:    account(10000, 10000),
		EntryPrice: 100,
		StopLoss:   95,
	})
	assert.InDelta(t, 3.0, qty, 1e-9)
}

func TestVolatilityAdjustedShrinksInRoughMarkets(t *testing.T) {
	s := testSizer(map[string]float64{MethodVolatilityAdjusted: 1.0})

	calm := s.Quantity(Input{
		Verdict:    approvedVerdict(1.0, 0),
		Account:    account(10000, 10000),
		EntryPrice: 100,
		Volatility: 0.01,
	})
	rough := s.Quantity(Input{
		Verdict:    approvedVerdict(1.0, 0),
		Account:    account(10000, 10000),
		EntryPrice: 100,
		Volatility: 0.08,
	})

	assert.Greater(t, calm, 0.0)
	assert.Greater(t, rough, 0.0)
	assert.Less(t, rough, calm)
}

func TestQuantityIsDeterministic(t *testing.T) {
	s := testSizer(map[string]float64{MethodFixedFractional: 0.7, MethodVolatilityAdjusted: 0.3})
	in := Input{
		Verdict:    approvedVerdict(0.75, 2000),
		Account:    account(8000, 9500),
		EntryPrice: 104.5,
		StopLoss:   99.2,
		Volatility: 0.018,
	}

	first := s.Quantity(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, s.Quantity(in))
	}
}
