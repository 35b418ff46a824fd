// Package llm resolves per-user model configuration into a ready provider
// client, one per agent role.
package llm

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/paperforge/paperforge/internal/config"
	"github.com/paperforge/paperforge/internal/providers"
	"github.com/paperforge/paperforge/internal/store"
)

// Client binds one provider + model for one (user, role) pair.
type Client struct {
	provider providers.Provider
	model    string
	role     string
	options  map[string]interface{}
}

// ForRole loads the (userID, role) model config and builds a client.
// A missing or disabled config fails here, before any LLM traffic.
func ForRole(st *store.Store, cfg config.AgentsConfig, userID, role string) (*Client, error) {
	mc, err := st.GetModelConfig(userID, role)
	if err != nil {
		return nil, err
	}
	p, err := providers.FromConfig(mc.Provider, mc.ModelID, mc.APIKey, mc.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("llm: %s client for user %s: %w", role, userID, err)
	}

	options := map[string]interface{}{}
	if cfg.MaxTokens > 0 {
		options[providers.OptMaxTokens] = cfg.MaxTokens
	}
	if cfg.Temperature > 0 {
		options[providers.OptTemperature] = cfg.Temperature
	}
	return &Client{provider: p, model: mc.ModelID, role: role, options: options}, nil
}

func (c *Client) Model() string { return c.model }
func (c *Client) Role() string  { return c.role }

// Stream drives the provider in streaming mode. Tokens reach onToken in
// arrival order; tool calls come back parsed and repaired, in the order
// the model reported them.
func (c *Client) Stream(ctx context.Context, msgs []providers.Message, tools []providers.ToolDefinition, onToken func(string)) (providers.Message, []providers.ToolCall, error) {
	ctx, span := otel.Tracer("paperforge/llm").Start(ctx, "llm.stream")
	defer span.End()
	span.SetAttributes(
		attribute.String("role", c.role),
		attribute.String("model", c.model),
		attribute.Int("messages", len(msgs)),
	)

	req := providers.ChatRequest{
		Messages: msgs,
		Tools:    tools,
		Model:    c.model,
		Options:  c.options,
	}
	resp, err := c.provider.ChatStream(ctx, req, func(chunk providers.StreamChunk) {
		if chunk.Content != "" && onToken != nil {
			onToken(chunk.Content)
		}
	})
	if err != nil {
		return providers.Message{}, nil, err
	}
	if resp.Usage != nil {
		span.SetAttributes(attribute.Int("tokens.total", resp.Usage.TotalTokens))
	}

	assistant := providers.Message{
		Role:      "assistant",
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	}
	return assistant, resp.ToolCalls, nil
}

// Sync is Stream without token forwarding. Used where progress should not
// surface, like title generation.
func (c *Client) Sync(ctx context.Context, msgs []providers.Message, tools []providers.ToolDefinition) (providers.Message, []providers.ToolCall, error) {
	req := providers.ChatRequest{
		Messages: msgs,
		Tools:    tools,
		Model:    c.model,
		Options:  c.options,
	}
	resp, err := c.provider.Chat(ctx, req)
	if err != nil {
		return providers.Message{}, nil, err
	}
	assistant := providers.Message{
		Role:      "assistant",
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	}
	return assistant, resp.ToolCalls, nil
}
