// Package ledger is the simulated execution engine: an in-memory account
// that applies sized orders, manages open-position lifecycle and produces
// fills. It is the sole owner of mutable account state; every mutation is
// serialized behind one mutex.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ProjectTradeAI/agentrader/internal/config"
	"github.com/ProjectTradeAI/agentrader/internal/errors"
	"github.com/ProjectTradeAI/agentrader/internal/models"
)

// position is the ledger's mutable view of an open holding.
type position struct {
	models.Position
	initialStop float64
	decisionID  string
	lastPrice   float64
}

// Ledger applies orders to the simulated account and tracks open positions,
// realized trades and the equity curve. Money amounts are carried as
// decimals so the cash conservation invariant holds exactly.
type Ledger struct {
	mu sync.Mutex

	cfg config.LedgerConfig

	cash        decimal.Decimal
	realizedPnL decimal.Decimal
	positions   map[string]*position // keyed by symbol
	trades      []models.Trade
	equityCurve []models.EquityPoint

	dailyPnL  decimal.Decimal
	currDay   time.Time
	lastEntry time.Time
	peak      float64

	logger zerolog.Logger
}

// New creates a ledger with the configured initial balance.
func New(cfg config.LedgerConfig, logger zerolog.Logger) *Ledger {
	initial := decimal.NewFromFloat(cfg.InitialBalance)
	return &Ledger{
		cfg:       cfg,
		cash:      initial,
		positions: make(map[string]*position),
		peak:      cfg.InitialBalance,
		logger:    logger,
	}
}

// Apply opens a position from a sized order. It rejects, without queuing,
// orders beyond the max-positions cap, duplicate symbols, and orders whose
// notional exceeds available cash.
func (l *Ledger) Apply(order *models.Order, maxPositions int, now time.Time) (*models.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollDay(now)

	if order.Quantity <= 0 || order.Price <= 0 {
		return nil, errors.NewInvariantViolation("ledger.Apply",
			fmt.Sprintf("non-positive order quantity %f or price %f", order.Quantity, order.Price), nil)
	}
	if _, exists := l.positions[order.Symbol]; exists {
		return nil, fmt.Errorf("%w: %s", errors.ErrPositionExists, order.Symbol)
	}
	if len(l.positions) >= maxPositions {
		return nil, fmt.Errorf("%w: %d open", errors.ErrMaxPositions, len(l.positions))
	}
	if l.cfg.EntryCooldown > 0 && !l.lastEntry.IsZero() && now.Sub(l.lastEntry) < l.cfg.EntryCooldown {
		return nil, fmt.Errorf("entry cooldown active until %s", l.lastEntry.Add(l.cfg.EntryCooldown).Format(time.RFC3339))
	}

	fillPrice := l.entryFill(order)
	cost := decimal.NewFromFloat(fillPrice).Mul(decimal.NewFromFloat(order.Quantity))
	if cost.GreaterThan(l.cash) {
		return nil, fmt.Errorf("%w: need %s, have %s", errors.ErrInsufficientFunds, cost, l.cash)
	}

	l.cash = l.cash.Sub(cost)
	l.lastEntry = now

	pos := &position{
		Position: models.Position{
			ID:              uuid.NewString(),
			OrderID:         order.ID,
			Symbol:          order.Symbol,
			Side:            order.Side,
			Quantity:        order.Quantity,
			EntryPrice:      fillPrice,
			StopLoss:        order.StopLoss,
			TakeProfit:      order.TakeProfit,
			TrailingStop:    order.TrailingStop,
			TrailingPercent: order.TrailingPercent,
			HighWaterMark:   fillPrice,
			Status:          models.PositionOpen,
			OpenedAt:        now,
		},
		initialStop: order.StopLoss,
		decisionID:  order.DecisionID,
		lastPrice:   fillPrice,
	}
	l.positions[order.Symbol] = pos

	l.logger.Info().
		Str("symbol", order.Symbol).
		Str("side", string(order.Side)).
		Float64("qty", order.Quantity).
		Float64("fill", fillPrice).
		Msg("position opened")

	out := pos.Position
	return &out, nil
}

// entryFill applies slippage against the requested price for market entries.
func (l *Ledger) entryFill(order *models.Order) float64 {
	slip := l.cfg.SlippagePercent / 100
	if slip == 0 {
		return order.Price
	}
	if order.Side == models.SideLong {
		return order.Price * (1 + slip)
	}
	return order.Price * (1 - slip)
}

// Tick feeds one price candle to the open position for its symbol, if any.
// The trailing-stop ratchet runs before trigger checks; when both stop and
// take levels fall inside the candle's range, the stop-loss wins. A
// documented conservative policy choice, not tick-ordering knowledge.
func (l *Ledger) Tick(symbol string, candle models.Candle) (*models.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollDay(candle.Timestamp)

	pos, ok := l.positions[symbol]
	if !ok {
		return nil, nil
	}
	pos.lastPrice = candle.Close

	l.ratchet(pos, candle)

	if level, reason, hit := l.exitHit(pos, candle); hit {
		trade := l.closeLocked(pos, level, reason, candle.Timestamp)
		return trade, nil
	}
	return nil, nil
}

// ratchet tightens the trailing stop after a favorable move. The stop level
// only ever moves in the profit-protecting direction.
func (l *Ledger) ratchet(pos *position, candle models.Candle) {
	if !pos.TrailingStop || pos.TrailingPercent <= 0 {
		return
	}
	if pos.Side == models.SideLong {
		if candle.High > pos.HighWaterMark {
			pos.HighWaterMark = candle.High
			newStop := pos.HighWaterMark * (1 - pos.TrailingPercent/100)
			if newStop > pos.StopLoss {
				pos.StopLoss = newStop
			}
		}
		return
	}
	if candle.Low < pos.HighWaterMark {
		pos.HighWaterMark = candle.Low
		newStop := pos.HighWaterMark * (1 + pos.TrailingPercent/100)
		if pos.StopLoss == 0 || newStop < pos.StopLoss {
			pos.StopLoss = newStop
		}
	}
}

// exitHit checks whether the candle's range crosses a live exit level,
// stop-loss before take-profit.
func (l *Ledger) exitHit(pos *position, candle models.Candle) (level float64, reason models.ExitReason, hit bool) {
	if pos.Side == models.SideLong {
		if pos.StopLoss > 0 && candle.Low <= pos.StopLoss {
			return pos.StopLoss, l.stopReason(pos), true
		}
		if pos.TakeProfit > 0 && candle.High >= pos.TakeProfit {
			return pos.TakeProfit, models.ExitTakeProfit, true
		}
		return 0, "", false
	}
	if pos.StopLoss > 0 && candle.High >= pos.StopLoss {
		return pos.StopLoss, l.stopReason(pos), true
	}
	if pos.TakeProfit > 0 && candle.Low <= pos.TakeProfit {
		return pos.TakeProfit, models.ExitTakeProfit, true
	}
	return 0, "", false
}

// stopReason distinguishes a ratcheted trailing stop from the original
// protective stop.
func (l *Ledger) stopReason(pos *position) models.ExitReason {
	if pos.TrailingStop && pos.StopLoss != pos.initialStop {
		return models.ExitTrailingStop
	}
	return models.ExitStopLoss
}

// CloseManual closes the open position for a symbol at the given price.
func (l *Ledger) CloseManual(symbol string, price float64, now time.Time) (*models.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrPositionNotFound, symbol)
	}
	return l.closeLocked(pos, price, models.ExitManual, now), nil
}

// CloseAll closes every open position at its last seen price, used at the
// end of a backtest run.
func (l *Ledger) CloseAll(now time.Time) []models.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.Trade, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, *l.closeLocked(pos, pos.lastPrice, models.ExitEndOfRun, now))
	}
	return out
}

// closeLocked closes a position atomically: one exit reason, one exit
// price, cash and realized P&L updated together. Caller holds the mutex.
func (l *Ledger) closeLocked(pos *position, exitPrice float64, reason models.ExitReason, now time.Time) *models.Trade {
	qty := decimal.NewFromFloat(pos.Quantity)
	entry := decimal.NewFromFloat(pos.EntryPrice)
	exit := decimal.NewFromFloat(exitPrice)

	var pnl decimal.Decimal
	if pos.Side == models.SideLong {
		pnl = exit.Sub(entry).Mul(qty)
	} else {
		pnl = entry.Sub(exit).Mul(qty)
	}

	if l.cfg.CommissionPct > 0 {
		commission := exit.Mul(qty).Mul(decimal.NewFromFloat(l.cfg.CommissionPct / 100))
		pnl = pnl.Sub(commission)
	}

	basis := entry.Mul(qty)
	l.cash = l.cash.Add(basis).Add(pnl)
	l.realizedPnL = l.realizedPnL.Add(pnl)
	l.dailyPnL = l.dailyPnL.Add(pnl)
	delete(l.positions, pos.Symbol)

	pnlF, _ := pnl.Float64()
	pnlPct := 0.0
	if pos.EntryPrice > 0 {
		pnlPct = pnlF / (pos.EntryPrice * pos.Quantity) * 100
	}

	trade := &models.Trade{
		ID:         uuid.NewString(),
		PositionID: pos.ID,
		DecisionID: pos.decisionID,
		Symbol:     pos.Symbol,
		Side:       pos.Side,
		Quantity:   pos.Quantity,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		PnL:        pnlF,
		PnLPercent: pnlPct,
		ExitReason: reason,
		OpenedAt:   pos.OpenedAt,
		ClosedAt:   now,
	}
	l.trades = append(l.trades, *trade)

	l.logger.Info().
		Str("symbol", trade.Symbol).
		Str("reason", string(reason)).
		Float64("exit", exitPrice).
		Float64("pnl", pnlF).
		Msg("position closed")
	return trade
}

// MarkToMarket appends an equity sample at the given prices and updates the
// peak used for drawdown tracking. Symbols without a quote fall back to the
// position's last seen price.
func (l *Ledger) MarkToMarket(prices map[string]float64, now time.Time) models.EquityPoint {
	l.mu.Lock()
	defer l.mu.Unlock()

	equity := l.equityLocked(prices)
	if equity > l.peak {
		l.peak = equity
	}
	point := models.EquityPoint{Timestamp: now, Equity: equity}
	l.equityCurve = append(l.equityCurve, point)
	return point
}

func (l *Ledger) equityLocked(prices map[string]float64) float64 {
	equity, _ := l.cash.Float64()
	for _, pos := range l.positions {
		price, ok := prices[pos.Symbol]
		if !ok || price <= 0 {
			price = pos.lastPrice
		}
		if pos.Side == models.SideLong {
			equity += price * pos.Quantity
		} else {
			equity += pos.CostBasis() + (pos.EntryPrice-price)*pos.Quantity
		}
	}
	return equity
}

// rollDay resets the daily P&L accumulator when the calendar day changes.
func (l *Ledger) rollDay(now time.Time) {
	day := now.UTC().Truncate(24 * time.Hour)
	if l.currDay.IsZero() {
		l.currDay = day
		return
	}
	if day.After(l.currDay) {
		l.currDay = day
		l.dailyPnL = decimal.Zero
	}
}

// Snapshot returns a read-only copy of the account state. It is the only
// view other components ever see.
func (l *Ledger) Snapshot(now time.Time) *models.AccountSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	open := make([]models.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		open = append(open, pos.Position)
	}

	cash, _ := l.cash.Float64()
	realized, _ := l.realizedPnL.Float64()
	daily, _ := l.dailyPnL.Float64()

	return &models.AccountSnapshot{
		Cash:          cash,
		RealizedPnL:   realized,
		Equity:        l.equityLocked(nil),
		OpenPositions: open,
		DailyPnL:      daily,
		PeakEquity:    l.peak,
		Timestamp:     now,
	}
}

// Trades returns a copy of the realized trade history.
func (l *Ledger) Trades() []models.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// EquityCurve returns a copy of the equity samples.
func (l *Ledger) EquityCurve() []models.EquityPoint {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.EquityPoint, len(l.equityCurve))
	copy(out, l.equityCurve)
	return out
}
