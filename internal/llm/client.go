// Package llm provides the completion client used for decision tie-breaking.
package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/ProjectTradeAI/agentrader/internal/config"
)

// Client is the single completion capability the engine depends on.
// Implementations must be safe for concurrent use.
type Client interface {
	// Name identifies the provider for logging and audit records.
	Name() string
	// Complete sends a prompt and returns the raw completion text.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// OpenAIClient implements Client against any OpenAI-compatible endpoint.
type OpenAIClient struct {
	name   string
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a completion client from provider configuration.
func NewOpenAIClient(cfg config.ProviderConfig) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{
		name:   cfg.Name,
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

// Name returns the configured provider name.
func (c *OpenAIClient) Name() string {
	return c.name
}

// Complete sends a prompt to the provider and returns the response text.
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleSystem, Content: systemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: userPrompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("%s completion failed: %w", c.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from %s", c.name)
	}
	return resp.Choices[0].Message.Content, nil
}
