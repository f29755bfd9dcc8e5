// Package backtest replays historical candles through the full decision
// pipeline against the simulated ledger, then derives a performance report.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ProjectTradeAI/agentrader/internal/engine"
	"github.com/ProjectTradeAI/agentrader/internal/marketdata"
	"github.com/ProjectTradeAI/agentrader/internal/models"
	"github.com/ProjectTradeAI/agentrader/internal/performance"
)

// Result is everything a finished run produced.
type Result struct {
	Report       *models.PerformanceReport
	Trades       []models.Trade
	EquityCurve  []models.EquityPoint
	FinalAccount *models.AccountSnapshot
	Cycles       int
}

// Runner replays a preloaded candle series, one decision cycle per candle.
type Runner struct {
	engine   *engine.Engine
	provider *marketdata.SliceProvider
	initial  float64
	logger   zerolog.Logger
}

// New creates a backtest runner. The engine must have been built over the
// same SliceProvider so each cycle sees history up to its candle only.
func New(eng *engine.Engine, provider *marketdata.SliceProvider, initialBalance float64, logger zerolog.Logger) *Runner {
	return &Runner{
		engine:   eng,
		provider: provider,
		initial:  initialBalance,
		logger:   logger.With().Str("component", "backtest").Logger(),
	}
}

// Run walks the candle series from the end of the warmup window to the end
// of history. Open positions are force-closed at the last seen price, then
// the performance report is derived from the realized history.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	total := r.provider.Len()
	if total < marketdata.MinHistory {
		return nil, fmt.Errorf("insufficient data: need at least %d candles, got %d", marketdata.MinHistory, total)
	}

	start := time.Now()
	r.logger.Info().
		Int("candles", total).
		Int("warmup", marketdata.MinHistory).
		Msg("backtest started")

	cycles := 0
	for i := marketdata.MinHistory; i < total; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		boundary := r.provider.At(i).Timestamp
		if err := r.engine.RunCycle(ctx, boundary); err != nil {
			return nil, fmt.Errorf("cycle at %s: %w", boundary.Format(time.RFC3339), err)
		}
		cycles++
	}

	book := r.engine.Ledger()
	endAt := r.provider.At(total - 1).Timestamp
	if closed := book.CloseAll(endAt); len(closed) > 0 {
		r.logger.Info().Int("positions", len(closed)).Msg("force-closed open positions at end of run")
	}
	book.MarkToMarket(nil, endAt)

	trades := book.Trades()
	curve := book.EquityCurve()
	report := performance.Derive(r.initial, curve, trades)

	r.logger.Info().
		Int("cycles", cycles).
		Int("trades", len(trades)).
		Float64("total_return_pct", report.TotalReturn).
		Dur("elapsed", time.Since(start).Truncate(time.Millisecond)).
		Msg("backtest finished")

	return &Result{
		Report:       report,
		Trades:       trades,
		EquityCurve:  curve,
		FinalAccount: book.Snapshot(endAt),
		Cycles:       cycles,
	}, nil
}
