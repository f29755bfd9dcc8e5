// Package analyst provides market analyst implementations and the fan-out
// coordinator that collects their signals for one decision cycle.
package analyst

import (
	"context"
	"time"

	"github.com/ProjectTradeAI/agentrader/internal/models"
)

// Analyst produces one trading opinion per decision cycle. Implementations
// must be safely callable with a timeout and must not share mutable state
// across calls.
type Analyst interface {
	// Name returns the unique name of the analyst.
	Name() string
	// Analyze inspects a market snapshot and returns a typed signal.
	Analyze(ctx context.Context, snapshot *models.MarketSnapshot) (*models.AnalystSignal, error)
}

// base provides the shared signal constructor for the built-in analysts.
type base struct {
	name string
}

func (b base) Name() string {
	return b.name
}

func (b base) signal(snapshot *models.MarketSnapshot, action models.Action, confidence float64, rationale string) *models.AnalystSignal {
	return &models.AnalystSignal{
		Analyst:    b.name,
		Symbol:     snapshot.Symbol,
		Action:     action,
		Confidence: models.ClampConfidence(confidence),
		Rationale:  rationale,
		Metrics:    map[string]float64{},
		Timestamp:  time.Now().UTC(),
	}
}
