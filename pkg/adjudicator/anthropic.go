package adjudicator

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/fleetward/remediator/internal/config"
	"github.com/fleetward/remediator/pkg/types"
)

// anthropicBackend is an optional backend, selected when ANTHROPIC_API_KEY is
// configured (spec.md's "operators who run a different model" allowance).
// It satisfies the same Backend contract as the default OpenAI backend, and
// doubles as the Analysis Composer's narrative-writing backend.
type anthropicBackend struct {
	client *anthropic.Client
	model  anthropic.Model
}

// NewAnthropicBackend builds the Anthropic-backed adjudicator/analysis
// backend.
func NewAnthropicBackend(cfg config.LLMConfig) (Backend, error) {
	if cfg.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("anthropic backend requires ANTHROPIC_API_KEY")
	}
	client := anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey))
	model := anthropic.ModelClaude3_5SonnetLatest
	return &anthropicBackend{client: &client, model: model}, nil
}

func (b *anthropicBackend) ChooseTool(ctx context.Context, req types.AdjudicateRequest) (types.ToolCall, error) {
	msg, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     b.model,
		MaxTokens: 512,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(req))),
		},
	})
	if err != nil {
		return types.ToolCall{}, fmt.Errorf("anthropic completion: %w", err)
	}
	if len(msg.Content) == 0 {
		return types.ToolCall{}, fmt.Errorf("anthropic returned an empty response")
	}
	return parseToolCall(msg.Content[0].Text)
}

// Complete satisfies the Analysis Composer's narrative-writing use of the
// same backend stack: a free-form prompt in, free-form text out.
func (b *anthropicBackend) Complete(ctx context.Context, prompt string) (string, error) {
	msg, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     b.model,
		MaxTokens: 2048,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic completion: %w", err)
	}
	if len(msg.Content) == 0 {
		return "", fmt.Errorf("anthropic returned an empty response")
	}
	return msg.Content[0].Text, nil
}
