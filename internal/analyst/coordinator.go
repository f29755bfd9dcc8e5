package analyst

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ProjectTradeAI/agentrader/internal/config"
	"github.com/ProjectTradeAI/agentrader/internal/models"
)

// FanOutResult is everything the coordinator collected for one cycle.
type FanOutResult struct {
	Signals     []models.AnalystSignal
	Unavailable []models.AnalystFailure
}

// Coordinator invokes all registered analysts concurrently, each with an
// independent timeout, and returns whatever subset answered in time. An
// analyst that times out or errors never blocks or fails the cycle.
type Coordinator struct {
	analysts []Analyst
	cfg      config.AnalystConfig
	logger   zerolog.Logger
}

// NewCoordinator creates a fan-out coordinator over the given analysts.
func NewCoordinator(analysts []Analyst, cfg config.AnalystConfig, logger zerolog.Logger) *Coordinator {
	return &Coordinator{analysts: analysts, cfg: cfg, logger: logger}
}

// Analysts returns the registered analysts.
func (c *Coordinator) Analysts() []Analyst {
	return c.analysts
}

type fanOutItem struct {
	name   string
	signal *models.AnalystSignal
	err    error
}

// Collect fans out to every analyst and blocks until each has answered or
// hit its own deadline; total wait is bounded by the largest timeout, not
// the sum. Results carry no ordering guarantee; they are appended in
// completion order. On parent cancellation in-flight calls are abandoned
// and their late results discarded with the channel buffer.
func (c *Coordinator) Collect(ctx context.Context, snapshot *models.MarketSnapshot) FanOutResult {
	results := make(chan fanOutItem, len(c.analysts))

	var wg sync.WaitGroup
	for _, a := range c.analysts {
		wg.Add(1)
		go func(a Analyst) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results <- fanOutItem{name: a.Name(), err: fmt.Errorf("panic: %v", r)}
				}
			}()

			callCtx, cancel := context.WithTimeout(ctx, c.cfg.TimeoutFor(a.Name()))
			defer cancel()

			sig, err := a.Analyze(callCtx, snapshot)
			if err == nil && sig != nil {
				err = sig.Validate()
			}
			results <- fanOutItem{name: a.Name(), signal: sig, err: err}
		}(a)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var out FanOutResult
	for item := range results {
		if item.err != nil {
			c.logger.Warn().Err(item.err).Str("analyst", item.name).Msg("analyst unavailable this cycle")
			out.Unavailable = append(out.Unavailable, models.AnalystFailure{
				Analyst: item.name,
				Reason:  item.err.Error(),
			})
			continue
		}
		if item.signal == nil {
			out.Unavailable = append(out.Unavailable, models.AnalystFailure{
				Analyst: item.name,
				Reason:  "no signal produced",
			})
			continue
		}
		out.Signals = append(out.Signals, *item.signal)
	}
	return out
}

// BuildAnalysts constructs the built-in analysts named in the configuration.
// Unknown names are skipped with a warning so a config typo degrades rather
// than aborts.
func BuildAnalysts(cfg config.AnalystConfig, logger zerolog.Logger) []Analyst {
	out := make([]Analyst, 0, len(cfg.Enabled))
	for _, name := range cfg.Enabled {
		switch name {
		case "technical":
			out = append(out, NewTechnicalAnalyst())
		case "sentiment":
			out = append(out, NewSentimentAnalyst())
		case "liquidity":
			out = append(out, NewLiquidityAnalyst())
		default:
			logger.Warn().Str("analyst", name).Msg("unknown analyst in config, skipping")
		}
	}
	return out
}
