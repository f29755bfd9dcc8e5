// Package marketdata builds the market snapshots the analysis pipeline
// consumes. A provider returns the most recent candle history for a symbol
// together with a small set of precomputed indicators.
package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/markcheno/go-talib"

	"github.com/ProjectTradeAI/agentrader/internal/config"
	apperrors "github.com/ProjectTradeAI/agentrader/internal/errors"
	"github.com/ProjectTradeAI/agentrader/internal/models"
	"github.com/ProjectTradeAI/agentrader/internal/store"
)

// Provider supplies market snapshots. A snapshot covers history up to and
// including the cycle boundary asOf.
type Provider interface {
	Snapshot(ctx context.Context, symbol, interval string, asOf time.Time) (*models.MarketSnapshot, error)
}

// MinHistory is the smallest candle count a snapshot is useful with. Shorter
// histories cannot warm up the slow indicators.
const MinHistory = 40

// StoreProvider reads candle history from the data store.
type StoreProvider struct {
	store    store.DataStore
	lookback int
}

// NewStoreProvider creates a provider backed by the data store. lookback is
// the number of candles each snapshot carries; values below MinHistory are
// raised to it.
func NewStoreProvider(dataStore store.DataStore, lookback int) *StoreProvider {
	if lookback < MinHistory {
		lookback = MinHistory
	}
	return &StoreProvider{store: dataStore, lookback: lookback}
}

// Snapshot returns the latest snapshot for symbol at asOf. Returns
// ErrInsufficientData when the store holds fewer than MinHistory candles
// in the window.
func (p *StoreProvider) Snapshot(ctx context.Context, symbol, interval string, asOf time.Time) (*models.MarketSnapshot, error) {
	from := asOf.Add(-time.Duration(p.lookback*4) * intervalDuration(interval))
	candles, err := p.store.GetCandles(ctx, symbol, interval, from, asOf)
	if err != nil {
		return nil, fmt.Errorf("loading candles for %s: %w", symbol, err)
	}
	if len(candles) > p.lookback {
		candles = candles[len(candles)-p.lookback:]
	}
	return buildSnapshot(symbol, interval, asOf, candles)
}

// SliceProvider serves snapshots from an in-memory candle series. Used by
// backtests, which walk a preloaded history candle by candle.
type SliceProvider struct {
	symbol   string
	interval string
	candles  []models.Candle
	lookback int
}

// NewSliceProvider wraps a preloaded candle series. Candles must be ordered
// oldest first.
func NewSliceProvider(symbol, interval string, candles []models.Candle, lookback int) *SliceProvider {
	if lookback < MinHistory {
		lookback = MinHistory
	}
	return &SliceProvider{symbol: symbol, interval: interval, candles: candles, lookback: lookback}
}

// Snapshot returns the window of candles at or before asOf.
func (p *SliceProvider) Snapshot(ctx context.Context, symbol, interval string, asOf time.Time) (*models.MarketSnapshot, error) {
	end := 0
	for i, c := range p.candles {
		if c.Timestamp.After(asOf) {
			break
		}
		end = i + 1
	}
	window := p.candles[:end]
	if len(window) > p.lookback {
		window = window[len(window)-p.lookback:]
	}
	return buildSnapshot(p.symbol, p.interval, asOf, window)
}

// Len returns the total number of candles the provider holds.
func (p *SliceProvider) Len() int { return len(p.candles) }

// At returns the i-th candle, oldest first.
func (p *SliceProvider) At(i int) models.Candle { return p.candles[i] }

func buildSnapshot(symbol, interval string, asOf time.Time, candles []models.Candle) (*models.MarketSnapshot, error) {
	if len(candles) < MinHistory {
		return nil, fmt.Errorf("%w: %s has %d candles, need %d", apperrors.ErrInsufficientData, symbol, len(candles), MinHistory)
	}

	snap := &models.MarketSnapshot{
		Symbol:     symbol,
		Interval:   interval,
		Timestamp:  asOf,
		Candles:    candles,
		Indicators: make(map[string]float64),
	}

	closes := snap.Closes()
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
	}

	if rsi := talib.Rsi(closes, 14); len(rsi) > 0 {
		snap.Indicators["rsi"] = rsi[len(rsi)-1]
	}
	if atr := talib.Atr(highs, lows, closes, 14); len(atr) > 0 {
		snap.Indicators["atr"] = atr[len(atr)-1]
	}
	if sma := talib.Sma(closes, 20); len(sma) > 0 {
		snap.Indicators["sma20"] = sma[len(sma)-1]
	}

	return snap, nil
}

func intervalDuration(interval string) time.Duration {
	if d, ok := config.IntervalDuration(interval); ok {
		return d
	}
	// Validation rejects unrecognized intervals before a provider is built,
	// so this fallback only matters for callers constructed by hand.
	return time.Hour
}
