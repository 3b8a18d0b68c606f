package adjudicator

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/fleetward/remediator/internal/config"
	"github.com/fleetward/remediator/pkg/types"
)

// openAIBackend is the default adjudicator backend, selected when neither
// LLM_PROVIDER, BEDROCK_MODEL_ID nor ANTHROPIC_API_KEY picks another one.
type openAIBackend struct {
	llm *openai.LLM
}

// NewOpenAIBackend builds the default backend from internal/config's LLM
// section.
func NewOpenAIBackend(cfg config.LLMConfig) (Backend, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("openai backend requires OPENAI_API_KEY")
	}
	opts := []openai.Option{openai.WithToken(cfg.OpenAIAPIKey)}
	if cfg.OpenAIModel != "" {
		opts = append(opts, openai.WithModel(cfg.OpenAIModel))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("build openai client: %w", err)
	}
	return &openAIBackend{llm: llm}, nil
}

func (b *openAIBackend) ChooseTool(ctx context.Context, req types.AdjudicateRequest) (types.ToolCall, error) {
	completion, err := llms.GenerateFromSinglePrompt(ctx, b.llm, buildPrompt(req))
	if err != nil {
		return types.ToolCall{}, fmt.Errorf("openai completion: %w", err)
	}
	return parseToolCall(completion)
}
