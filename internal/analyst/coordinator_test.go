package analyst

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProjectTradeAI/agentrader/internal/config"
	"github.com/ProjectTradeAI/agentrader/internal/models"
)

// fakeAnalyst is a scriptable analyst for coordinator tests.
type fakeAnalyst struct {
	name   string
	action models.Action
	conf   float64
	delay  time.Duration
	err    error
	panics bool
}

func (f *fakeAnalyst) Name() string { return f.name }

func (f *fakeAnalyst) Analyze(ctx context.Context, snapshot *models.MarketSnapshot) (*models.AnalystSignal, error) {
	if f.panics {
		panic("exploded")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.AnalystSignal{
		Analyst:    f.name,
		Symbol:     snapshot.Symbol,
		Action:     f.action,
		Confidence: f.conf,
		Rationale:  "scripted",
		Timestamp:  time.Now().UTC(),
	}, nil
}

func testSnapshot() *models.MarketSnapshot {
	candles := make([]models.Candle, 50)
	ts := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := range candles {
		price := 100.0 + float64(i)
		candles[i] = models.Candle{
			Timestamp: ts.Add(time.Duration(i) * time.Hour),
			Open:      price, High: price + 1, Low: price - 1, Close: price,
			Volume: 1000,
		}
	}
	return &models.MarketSnapshot{
		Symbol:   "BTCUSDT",
		Interval: "1h",
		Candles:  candles,
	}
}

func coordinatorOver(timeout time.Duration, analysts ...Analyst) *Coordinator {
	return NewCoordinator(analysts, config.AnalystConfig{Timeout: timeout}, zerolog.Nop())
}

func TestCollectGathersAllSignals(t *testing.T) {
	c := coordinatorOver(time.Second,
		&fakeAnalyst{name: "technical", action: models.Buy, conf: 70},
		&fakeAnalyst{name: "sentiment", action: models.Sell, conf: 55},
		&fakeAnalyst{name: "liquidity", action: models.Hold, conf: 60},
	)

	out := c.Collect(context.Background(), testSnapshot())

	assert.Len(t, out.Signals, 3)
	assert.Empty(t, out.Unavailable)
}

func TestCollectSlowAnalystBecomesUnavailable(t *testing.T) {
	c := coordinatorOver(50*time.Millisecond,
		&fakeAnalyst{name: "technical", action: models.Buy, conf: 70},
		&fakeAnalyst{name: "sentiment", action: models.Sell, conf: 55, delay: 500 * time.Millisecond},
	)

	start := time.Now()
	out := c.Collect(context.Background(), testSnapshot())

	require.Len(t, out.Signals, 1)
	assert.Equal(t, "technical", out.Signals[0].Analyst)
	require.Len(t, out.Unavailable, 1)
	assert.Equal(t, "sentiment", out.Unavailable[0].Analyst)

	// Bounded by the largest timeout, not by the slow analyst's delay.
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestCollectErrorDoesNotFailSiblings(t *testing.T) {
	c := coordinatorOver(time.Second,
		&fakeAnalyst{name: "technical", err: fmt.Errorf("feed offline")},
		&fakeAnalyst{name: "sentiment", action: models.Buy, conf: 60},
	)

	out := c.Collect(context.Background(), testSnapshot())

	assert.Len(t, out.Signals, 1)
	require.Len(t, out.Unavailable, 1)
	assert.Contains(t, out.Unavailable[0].Reason, "feed offline")
}

func TestCollectRecoversPanickingAnalyst(t *testing.T) {
	c := coordinatorOver(time.Second,
		&fakeAnalyst{name: "technical", panics: true},
		&fakeAnalyst{name: "sentiment", action: models.Buy, conf: 60},
	)

	out := c.Collect(context.Background(), testSnapshot())

	assert.Len(t, out.Signals, 1)
	require.Len(t, out.Unavailable, 1)
	assert.Contains(t, out.Unavailable[0].Reason, "panic")
}

func TestCollectRejectsInvalidSignal(t *testing.T) {
	c := coordinatorOver(time.Second,
		&fakeAnalyst{name: "technical", action: models.Buy, conf: 150}, // out of range
		&fakeAnalyst{name: "sentiment", action: models.Sell, conf: 60},
	)

	out := c.Collect(context.Background(), testSnapshot())

	assert.Len(t, out.Signals, 1)
	assert.Len(t, out.Unavailable, 1)
}

func TestCollectAllUnavailable(t *testing.T) {
	c := coordinatorOver(time.Second,
		&fakeAnalyst{name: "technical", err: fmt.Errorf("down")},
		&fakeAnalyst{name: "sentiment", err: fmt.Errorf("down")},
	)

	out := c.Collect(context.Background(), testSnapshot())

	assert.Empty(t, out.Signals)
	assert.Len(t, out.Unavailable, 2)
}

func TestBuildAnalystsSkipsUnknownNames(t *testing.T) {
	cfg := config.AnalystConfig{Enabled: []string{"technical", "astrology", "liquidity"}}
	analysts := BuildAnalysts(cfg, zerolog.Nop())

	require.Len(t, analysts, 2)
	assert.Equal(t, "technical", analysts[0].Name())
	assert.Equal(t, "liquidity", analysts[1].Name())
}

func TestBuiltinAnalystsProduceValidSignals(t *testing.T) {
	snapshot := testSnapshot()
	for _, a := range []Analyst{NewTechnicalAnalyst(), NewSentimentAnalyst(), NewLiquidityAnalyst()} {
		sig, err := a.Analyze(context.Background(), snapshot)
		require.NoError(t, err, a.Name())
		require.NoError(t, sig.Validate(), a.Name())
		assert.Equal(t, "BTCUSDT", sig.Symbol)
	}
}
