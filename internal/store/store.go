// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ProjectTradeAI/agentrader/internal/models"
)

// DataStore defines the persistence surface the engine depends on. Every
// record is append-only from the engine's point of view.
type DataStore interface {
	// Candles
	SaveCandles(ctx context.Context, symbol, interval string, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol, interval string, from, to time.Time) ([]models.Candle, error)

	// Decision pipeline records
	SaveDecision(ctx context.Context, decision *models.Decision) error
	GetDecisions(ctx context.Context, filter DecisionFilter) ([]models.Decision, error)
	SaveVerdict(ctx context.Context, verdict *models.RiskVerdict) error
	SaveOrder(ctx context.Context, order *models.Order) error
	SaveTrade(ctx context.Context, trade *models.Trade) error
	GetTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error)

	// Scheduler checkpoint
	GetCheckpoint(ctx context.Context, name string) (time.Time, error)
	SetCheckpoint(ctx context.Context, name string, t time.Time) error

	// Lifecycle
	Close() error
}

// DecisionFilter represents filters for querying decisions.
type DecisionFilter struct {
	Symbol    string
	StartDate time.Time
	EndDate   time.Time
	Limit     int
}

// TradeFilter represents filters for querying trades.
type TradeFilter struct {
	Symbol    string
	StartDate time.Time
	EndDate   time.Time
	Limit     int
}
