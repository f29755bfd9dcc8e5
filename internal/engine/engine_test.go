package engine

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProjectTradeAI/agentrader/internal/analyst"
	"github.com/ProjectTradeAI/agentrader/internal/audit"
	"github.com/ProjectTradeAI/agentrader/internal/config"
	"github.com/ProjectTradeAI/agentrader/internal/decision"
	"github.com/ProjectTradeAI/agentrader/internal/ledger"
	"github.com/ProjectTradeAI/agentrader/internal/marketdata"
	"github.com/ProjectTradeAI/agentrader/internal/models"
	"github.com/ProjectTradeAI/agentrader/internal/risk"
	"github.com/ProjectTradeAI/agentrader/internal/sizing"
)

var cycleStart = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

type scriptedAnalyst struct {
	name   string
	action models.Action
	conf   float64
}

func (a scriptedAnalyst) Name() string { return a.name }

func (a scriptedAnalyst) Analyze(_ context.Context, snap *models.MarketSnapshot) (*models.AnalystSignal, error) {
	return &models.AnalystSignal{
		Analyst:    a.name,
		Symbol:     snap.Symbol,
		Action:     a.action,
		Confidence: a.conf,
		Timestamp:  time.Now().UTC(),
	}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Engine: config.EngineConfig{
			Symbol:       "BTCUSDT",
			Interval:     "1h",
			CycleTimeout: 5 * time.Second,
		},
		Analysts: config.AnalystConfig{
			Enabled: []string{"technical"},
			Timeout: time.Second,
		},
		Decision: config.DecisionConfig{ConflictThreshold: 15},
		Risk: config.RiskConfig{
			RiskPerTradePercent:  2.0,
			MaxDailyDrawdownPct:  5.0,
			MaxPositionPercent:   25.0,
			MaxPositions:         1,
			VolatilityMultiplier: 1.0,
			SizeScaleMedium:      0.75,
			SizeScaleHigh:        0.5,
			MinViableNotional:    10.0,
		},
		Sizing: config.SizingConfig{TradeSizePercent: 10.0},
		Ledger: config.LedgerConfig{
			InitialBalance:  10000,
			StopLossPercent: 5.0,
			TakeProfitPct:   10.0,
		},
	}
}

// calmCandles builds n hourly candles with barely any movement so market
// risk stays LOW and a directional decision passes the guard untouched.
func calmCandles(n int) []models.Candle {
	out := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		price := 100 + 0.1*math.Sin(float64(i)/5)
		out[i] = models.Candle{
			Timestamp: cycleStart.Add(time.Duration(i) * time.Hour),
			Open:      price,
			High:      price + 0.05,
			Low:       price - 0.05,
			Close:     price,
			Volume:    1000,
		}
	}
	return out
}

func newTestEngine(t *testing.T, candles []models.Candle, analysts ...analyst.Analyst) (*Engine, *audit.MemoryRecorder) {
	t.Helper()
	cfg := testConfig()
	logger := zerolog.Nop()

	provider := marketdata.NewSliceProvider("BTCUSDT", "1h", candles, 60)
	coordinator := analyst.NewCoordinator(analysts, cfg.Analysts, logger)
	aggregator := decision.NewAggregator(cfg.Decision, cfg.Analysts, nil, logger)
	guard := risk.NewGuard(cfg.Risk, cfg.Ledger, logger)
	sizer := sizing.NewSizer(cfg.Sizing, cfg.Risk)
	book := ledger.New(cfg.Ledger, logger)
	recorder := audit.NewMemoryRecorder()

	eng := New(cfg, provider, coordinator, aggregator, guard, sizer, book, recorder, nil, logger)
	return eng, recorder
}

func TestRunCycleBuySubmitsOrder(t *testing.T) {
	candles := calmCandles(80)
	eng, rec := newTestEngine(t, candles,
		scriptedAnalyst{name: "technical", action: models.Buy, conf: 80},
		scriptedAnalyst{name: "sentiment", action: models.Buy, conf: 70},
	)

	boundary := candles[79].Timestamp
	require.NoError(t, eng.RunCycle(context.Background(), boundary))

	assert.Equal(t, []string{
		audit.StageCycleStarted,
		audit.StageSignalsCollected,
		audit.StageDecisionMade,
		audit.StageRiskEvaluated,
		audit.StageOrderSubmitted,
		audit.StageCycleFinished,
	}, rec.Stages())

	snap := eng.Ledger().Snapshot(boundary)
	assert.True(t, snap.HasPosition("BTCUSDT"))
	assert.Less(t, snap.Cash, 10000.0)
}

func TestRunCycleHoldSkipsOrder(t *testing.T) {
	candles := calmCandles(80)
	eng, rec := newTestEngine(t, candles,
		scriptedAnalyst{name: "technical", action: models.Hold, conf: 60},
	)

	require.NoError(t, eng.RunCycle(context.Background(), candles[79].Timestamp))

	assert.Equal(t, []string{
		audit.StageCycleStarted,
		audit.StageSignalsCollected,
		audit.StageDecisionMade,
		audit.StageRiskEvaluated,
		audit.StageOrderSkipped,
		audit.StageCycleFinished,
	}, rec.Stages())

	snap := eng.Ledger().Snapshot(candles[79].Timestamp)
	assert.Zero(t, snap.OpenPositionCount())
	assert.Equal(t, 10000.0, snap.Cash)
}

func TestRunCycleInsufficientDataSkipsGracefully(t *testing.T) {
	candles := calmCandles(marketdata.MinHistory - 5)
	eng, rec := newTestEngine(t, candles,
		scriptedAnalyst{name: "technical", action: models.Buy, conf: 80},
	)

	boundary := cycleStart.Add(100 * time.Hour)
	require.NoError(t, eng.RunCycle(context.Background(), boundary))

	assert.Equal(t, []string{
		audit.StageCycleStarted,
		audit.StageCycleFinished,
	}, rec.Stages())
}

func TestRunCycleSecondBuyRejectedNotFatal(t *testing.T) {
	candles := calmCandles(80)
	eng, rec := newTestEngine(t, candles,
		scriptedAnalyst{name: "technical", action: models.Buy, conf: 80},
	)

	require.NoError(t, eng.RunCycle(context.Background(), candles[78].Timestamp))
	require.NoError(t, eng.RunCycle(context.Background(), candles[79].Timestamp))

	stages := rec.Stages()
	assert.Contains(t, stages, audit.StageOrderSubmitted)
	assert.Equal(t, audit.StageOrderSkipped, stages[len(stages)-2],
		"a duplicate position attempt is a skip, not a failure")
	assert.Equal(t, 1, eng.Ledger().Snapshot(candles[79].Timestamp).OpenPositionCount())
}

func TestRunCycleClosesStoppedPosition(t *testing.T) {
	candles := calmCandles(90)
	// Candle 85 crashes through any plausible stop set near 100.
	for i := 85; i < 90; i++ {
		candles[i].Open = 100
		candles[i].High = 100
		candles[i].Low = 80
		candles[i].Close = 82
	}
	eng, rec := newTestEngine(t, candles,
		scriptedAnalyst{name: "technical", action: models.Buy, conf: 80},
	)

	require.NoError(t, eng.RunCycle(context.Background(), candles[80].Timestamp))
	require.True(t, eng.Ledger().Snapshot(candles[80].Timestamp).HasPosition("BTCUSDT"))

	require.NoError(t, eng.RunCycle(context.Background(), candles[85].Timestamp))

	assert.Contains(t, rec.Stages(), audit.StageTradeClosed)
	trades := eng.Ledger().Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, models.ExitStopLoss, trades[0].ExitReason)
	assert.Negative(t, trades[0].PnL)
}

func TestRunCycleAllAnalystsDownStillCompletes(t *testing.T) {
	candles := calmCandles(80)
	eng, rec := newTestEngine(t, candles)

	require.NoError(t, eng.RunCycle(context.Background(), candles[79].Timestamp))

	stages := rec.Stages()
	assert.Contains(t, stages, audit.StageDecisionMade)
	assert.Equal(t, audit.StageCycleFinished, stages[len(stages)-1])
	assert.Zero(t, eng.Ledger().Snapshot(candles[79].Timestamp).OpenPositionCount())
}
