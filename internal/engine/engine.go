// Package engine runs the decision cycle: snapshot, fan-out, aggregation,
// risk, sizing, simulated execution. One cycle per trigger, each stage
// recorded on the audit trail.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ProjectTradeAI/agentrader/internal/analyst"
	"github.com/ProjectTradeAI/agentrader/internal/audit"
	"github.com/ProjectTradeAI/agentrader/internal/config"
	"github.com/ProjectTradeAI/agentrader/internal/decision"
	apperrors "github.com/ProjectTradeAI/agentrader/internal/errors"
	"github.com/ProjectTradeAI/agentrader/internal/ledger"
	"github.com/ProjectTradeAI/agentrader/internal/marketdata"
	"github.com/ProjectTradeAI/agentrader/internal/models"
	"github.com/ProjectTradeAI/agentrader/internal/risk"
	"github.com/ProjectTradeAI/agentrader/internal/sizing"
	"github.com/ProjectTradeAI/agentrader/internal/store"
)

// Engine wires the full pipeline for one symbol. Stores and recorders may
// be nil; persistence failures never fail a cycle.
type Engine struct {
	cfg         *config.Config
	provider    marketdata.Provider
	coordinator *analyst.Coordinator
	aggregator  *decision.Aggregator
	guard       *risk.Guard
	sizer       *sizing.Sizer
	ledger      *ledger.Ledger
	recorder    audit.Recorder
	store       store.DataStore
	logger      zerolog.Logger
}

// New assembles an engine from already-constructed components.
func New(
	cfg *config.Config,
	provider marketdata.Provider,
	coordinator *analyst.Coordinator,
	aggregator *decision.Aggregator,
	guard *risk.Guard,
	sizer *sizing.Sizer,
	book *ledger.Ledger,
	recorder audit.Recorder,
	dataStore store.DataStore,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		cfg:         cfg,
		provider:    provider,
		coordinator: coordinator,
		aggregator:  aggregator,
		guard:       guard,
		sizer:       sizer,
		ledger:      book,
		recorder:    recorder,
		store:       dataStore,
		logger:      logger.With().Str("component", "engine").Logger(),
	}
}

// Ledger exposes the simulated account for reporting.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// RunCycle executes one full decision cycle at the given boundary. A cycle
// that cannot trade (no data, veto, zero size) still completes normally;
// only infrastructure failures return an error.
func (e *Engine) RunCycle(ctx context.Context, boundary time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Engine.CycleTimeout)
	defer cancel()

	cycleID := uuid.NewString()
	symbol := e.cfg.Engine.Symbol
	log := e.logger.With().Str("cycle_id", cycleID).Str("symbol", symbol).Logger()

	e.emit(cycleID, symbol, audit.StageCycleStarted, map[string]interface{}{
		"boundary": boundary,
	})

	snapshot, err := e.provider.Snapshot(ctx, symbol, e.cfg.Engine.Interval, boundary)
	if err != nil {
		if errors.Is(err, apperrors.ErrInsufficientData) {
			log.Warn().Err(err).Msg("insufficient market data, skipping cycle")
			e.emit(cycleID, symbol, audit.StageCycleFinished, map[string]interface{}{
				"skipped": "insufficient market data",
			})
			return nil
		}
		return fmt.Errorf("loading snapshot: %w", err)
	}

	// Manage the open position against the latest candle before any new
	// decision is made.
	latest := snapshot.Candles[len(snapshot.Candles)-1]
	trade, terr := e.ledger.Tick(symbol, latest)
	if terr != nil {
		log.Error().Err(terr).Msg("managing open position")
	} else if trade != nil {
		log.Info().
			Str("exit_reason", string(trade.ExitReason)).
			Float64("pnl", trade.PnL).
			Msg("position closed")
		e.emit(cycleID, symbol, audit.StageTradeClosed, trade)
		e.persistTrade(ctx, trade, log)
	}
	e.ledger.MarkToMarket(map[string]float64{symbol: latest.Close}, boundary)

	fanout := e.coordinator.Collect(ctx, snapshot)
	e.emit(cycleID, symbol, audit.StageSignalsCollected, fanout)
	log.Info().
		Int("signals", len(fanout.Signals)).
		Int("unavailable", len(fanout.Unavailable)).
		Msg("analyst fan-out complete")

	dec := e.aggregator.Aggregate(ctx, symbol, fanout.Signals, fanout.Unavailable)
	e.emit(cycleID, symbol, audit.StageDecisionMade, dec)
	if e.store != nil {
		if serr := e.store.SaveDecision(ctx, dec); serr != nil {
			log.Error().Err(serr).Msg("persisting decision")
		}
	}
	log.Info().
		Str("action", string(dec.Action)).
		Float64("confidence", dec.Confidence).
		Str("resolution", string(dec.Resolution)).
		Msg("decision made")

	account := e.ledger.Snapshot(boundary)
	verdict := e.guard.Evaluate(dec, account, snapshot)
	e.emit(cycleID, symbol, audit.StageRiskEvaluated, verdict)
	if e.store != nil {
		if serr := e.store.SaveVerdict(ctx, verdict); serr != nil {
			log.Error().Err(serr).Msg("persisting verdict")
		}
	}

	if !dec.Directional() || !verdict.Approved() {
		e.skip(cycleID, symbol, verdict.Reason)
		e.finish(cycleID, symbol, boundary)
		return nil
	}

	closes := snapshot.Closes()
	qty := e.sizer.Quantity(sizing.Input{
		Verdict:    verdict,
		Account:    account,
		EntryPrice: latest.Close,
		StopLoss:   verdict.StopLoss,
		Volatility: risk.ReturnVolatility(closes),
	})
	if qty <= 0 {
		e.skip(cycleID, symbol, "position size rounded to zero")
		e.finish(cycleID, symbol, boundary)
		return nil
	}

	order := &models.Order{
		ID:              uuid.NewString(),
		DecisionID:      dec.ID,
		Symbol:          symbol,
		Side:            models.SideForAction(dec.Action),
		Quantity:        qty,
		Price:           latest.Close,
		StopLoss:        verdict.StopLoss,
		TakeProfit:      verdict.TakeProfit,
		TrailingStop:    e.cfg.Ledger.TrailingStop,
		TrailingPercent: e.cfg.Ledger.TrailingPercent,
		PlacedAt:        boundary,
	}

	if _, aerr := e.ledger.Apply(order, e.cfg.Risk.MaxPositions, boundary); aerr != nil {
		if apperrors.IsInvariantViolation(aerr) {
			return fmt.Errorf("applying order: %w", aerr)
		}
		log.Info().Err(aerr).Msg("order rejected by ledger")
		e.skip(cycleID, symbol, aerr.Error())
		e.finish(cycleID, symbol, boundary)
		return nil
	}

	log.Info().
		Str("side", string(order.Side)).
		Float64("quantity", order.Quantity).
		Float64("price", order.Price).
		Float64("stop_loss", order.StopLoss).
		Float64("take_profit", order.TakeProfit).
		Msg("order filled")
	e.emit(cycleID, symbol, audit.StageOrderSubmitted, order)
	if e.store != nil {
		if serr := e.store.SaveOrder(ctx, order); serr != nil {
			log.Error().Err(serr).Msg("persisting order")
		}
	}

	e.finish(cycleID, symbol, boundary)
	return nil
}

func (e *Engine) skip(cycleID, symbol, reason string) {
	e.emit(cycleID, symbol, audit.StageOrderSkipped, map[string]interface{}{
		"reason": reason,
	})
}

func (e *Engine) finish(cycleID, symbol string, boundary time.Time) {
	e.emit(cycleID, symbol, audit.StageCycleFinished, e.ledger.Snapshot(boundary))
}

func (e *Engine) emit(cycleID, symbol, stage string, payload interface{}) {
	if e.recorder == nil {
		return
	}
	err := e.recorder.Emit(audit.Event{
		Timestamp: time.Now().UTC(),
		CycleID:   cycleID,
		Stage:     stage,
		Symbol:    symbol,
		Payload:   payload,
	})
	if err != nil {
		e.logger.Error().Err(err).Str("stage", stage).Msg("emitting audit event")
	}
}

func (e *Engine) persistTrade(ctx context.Context, trade *models.Trade, log zerolog.Logger) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveTrade(ctx, trade); err != nil {
		log.Error().Err(err).Msg("persisting trade")
	}
}
