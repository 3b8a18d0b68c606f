// Package adjudicator wraps the LLM call the Workflow Engine makes once per
// runbook step: given the alert, the tool results gathered so far, and the
// step's expected_tool, the backend proposes a tool call. The package never
// trusts the backend for control flow — Adjudicate enforces tool identity
// itself — only for argument extraction.
package adjudicator

import (
	"context"

	"github.com/fleetward/remediator/pkg/types"
)

// Backend is the contract every LLM provider integration satisfies.
type Backend interface {
	ChooseTool(ctx context.Context, req types.AdjudicateRequest) (types.ToolCall, error)
}

// Narrator is the narrower contract the Analysis Composer needs: a
// free-form prompt in, free-form narrative text out. Only backends built
// for long-form writing (currently Anthropic) implement it; the Composer
// requires one be configured rather than falling back to ChooseTool's
// tool-identity-constrained completion.
type Narrator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
