package llm

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProjectTradeAI/agentrader/internal/config"
	"github.com/ProjectTradeAI/agentrader/internal/errors"
)

type scriptedClient struct {
	name     string
	response string
	err      error
	calls    int
}

func (s *scriptedClient) Name() string { return s.name }

func (s *scriptedClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestChainFirstSuccessWins(t *testing.T) {
	primary := &scriptedClient{name: "primary", response: "ok"}
	backup := &scriptedClient{name: "backup", response: "never"}
	chain := NewChainWith(time.Second, zerolog.Nop(), primary, backup)

	text, err := chain.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, backup.calls)
}

func TestChainFallsThroughOnFailure(t *testing.T) {
	primary := &scriptedClient{name: "primary", err: fmt.Errorf("rate limited")}
	backup := &scriptedClient{name: "backup", response: "recovered"}
	chain := NewChainWith(time.Second, zerolog.Nop(), primary, backup)

	text, err := chain.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, backup.calls)
}

func TestChainReturnsLastErrorWhenAllFail(t *testing.T) {
	first := &scriptedClient{name: "first", err: fmt.Errorf("first down")}
	second := &scriptedClient{name: "second", err: fmt.Errorf("second down")}
	chain := NewChainWith(time.Second, zerolog.Nop(), first, second)

	_, err := chain.Complete(context.Background(), "sys", "user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "second down")
}

func TestChainEmptyIsUnavailable(t *testing.T) {
	chain := NewChainWith(time.Second, zerolog.Nop())
	assert.False(t, chain.Available())

	_, err := chain.Complete(context.Background(), "sys", "user")
	assert.ErrorIs(t, err, errors.ErrNoProviders)
}

func TestChainStopsOnCanceledContext(t *testing.T) {
	first := &scriptedClient{name: "first", err: fmt.Errorf("down")}
	second := &scriptedClient{name: "second", response: "late"}
	chain := NewChainWith(time.Second, zerolog.Nop(), first, second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := chain.Complete(ctx, "sys", "user")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, first.calls)
}

func TestNewChainFiltersDisabledProviders(t *testing.T) {
	cfg := config.LLMConfig{
		Timeout: time.Second,
		Providers: []config.ProviderConfig{
			{Name: "openai", Model: "gpt-4o-mini", APIKey: "k", Enabled: true},
			{Name: "disabled", Model: "x", APIKey: "k", Enabled: false},
		},
	}
	chain := NewChain(cfg, zerolog.Nop())

	assert.True(t, chain.Available())
	assert.Equal(t, "openai", chain.Name())
}
