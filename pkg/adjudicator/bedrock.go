package adjudicator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/fleetward/remediator/internal/config"
	"github.com/fleetward/remediator/pkg/types"
)

// bedrockBackend is an optional backend for operators running a
// Bedrock-hosted model, selected when BEDROCK_MODEL_ID is configured. It
// uses ambient AWS credentials (environment, shared config, instance role)
// the same way aws-sdk-go-v2 resolves them anywhere else.
type bedrockBackend struct {
	client  *bedrockruntime.Client
	modelID string
}

// NewBedrockBackend builds the Bedrock-backed adjudicator backend.
func NewBedrockBackend(ctx context.Context, cfg config.LLMConfig) (Backend, error) {
	if cfg.BedrockModelID == "" {
		return nil, fmt.Errorf("bedrock backend requires BEDROCK_MODEL_ID")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &bedrockBackend{
		client:  bedrockruntime.NewFromConfig(awsCfg),
		modelID: cfg.BedrockModelID,
	}, nil
}

type bedrockMessagesBody struct {
	AnthropicVersion string            `json:"anthropic_version"`
	MaxTokens        int               `json:"max_tokens"`
	Messages         []bedrockMessage  `json:"messages"`
}

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockMessagesResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (b *bedrockBackend) ChooseTool(ctx context.Context, req types.AdjudicateRequest) (types.ToolCall, error) {
	body, err := json.Marshal(bedrockMessagesBody{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        512,
		Messages:         []bedrockMessage{{Role: "user", Content: buildPrompt(req)}},
	})
	if err != nil {
		return types.ToolCall{}, fmt.Errorf("encode bedrock request: %w", err)
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return types.ToolCall{}, fmt.Errorf("bedrock invoke model: %w", err)
	}

	var resp bedrockMessagesResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return types.ToolCall{}, fmt.Errorf("decode bedrock response: %w", err)
	}
	if len(resp.Content) == 0 {
		return types.ToolCall{}, fmt.Errorf("bedrock returned an empty response")
	}
	return parseToolCall(resp.Content[0].Text)
}
