package llm

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ProjectTradeAI/agentrader/internal/config"
	"github.com/ProjectTradeAI/agentrader/internal/errors"
)

// Chain tries an ordered list of providers until one succeeds. It is the
// single retry/fallback policy shared by every completion consumer; callers
// see one Complete contract and never the individual providers.
type Chain struct {
	providers []Client
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewChain builds a fallback chain from the enabled providers in order.
func NewChain(cfg config.LLMConfig, logger zerolog.Logger) *Chain {
	providers := make([]Client, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}
		providers = append(providers, NewOpenAIClient(pc))
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Chain{providers: providers, timeout: timeout, logger: logger}
}

// NewChainWith builds a chain from explicit clients, in priority order.
func NewChainWith(timeout time.Duration, logger zerolog.Logger, providers ...Client) *Chain {
	return &Chain{providers: providers, timeout: timeout, logger: logger}
}

// Available reports whether at least one provider is configured.
func (c *Chain) Available() bool {
	return c != nil && len(c.providers) > 0
}

// Name returns a summary of the chain's provider order.
func (c *Chain) Name() string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return strings.Join(names, ">")
}

// Complete tries each provider in order with an independent timeout. The
// first success wins; the last error is returned if all fail. A canceled
// parent context stops the chain immediately.
func (c *Chain) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if !c.Available() {
		return "", errors.ErrNoProviders
	}

	var lastErr error
	for _, p := range c.providers {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		text, err := p.Complete(callCtx, systemPrompt, userPrompt)
		cancel()

		if err == nil {
			return text, nil
		}
		lastErr = err
		c.logger.Warn().Err(err).Str("provider", p.Name()).Msg("completion provider failed, trying next")
	}
	return "", lastErr
}
