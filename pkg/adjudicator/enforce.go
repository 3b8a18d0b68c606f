package adjudicator

import (
	"context"

	"github.com/fleetward/remediator/pkg/types"
)

// Adjudicate calls backend for one workflow step and enforces tool identity
// (spec.md §4.4): the returned ToolCall.Name is always req.ExpectedTool,
// regardless of what the backend proposed. If the backend names a different
// tool, the engine substitutes expected_tool with label-derived arguments and
// the returned LLMCallRecord records the override. If the backend call fails
// outright, the same label-derived fallback is used and the record captures
// the error.
func Adjudicate(ctx context.Context, backend Backend, req types.AdjudicateRequest) (types.ToolCall, types.LLMCallRecord) {
	record := types.LLMCallRecord{ExpectedTool: req.ExpectedTool}

	call, err := backend.ChooseTool(ctx, req)
	if err != nil {
		record.Error = err.Error()
		record.Overridden = true
		return labelDerivedCall(req), record
	}

	record.ReturnedTool = call.Name
	if call.Name != req.ExpectedTool {
		record.Overridden = true
		return labelDerivedCall(req), record
	}

	return call, record
}

// labelDerivedCall builds the fallback tool call directly from the alert's
// labels, with no LLM involvement — used whenever the adjudicator cannot be
// trusted for this step's arguments.
func labelDerivedCall(req types.AdjudicateRequest) types.ToolCall {
	args := map[string]any{}
	if ns := req.Alert.Namespace(); ns != "" {
		args["namespace"] = ns
	}
	if pod := req.Alert.Pod(); pod != "" {
		args["pod"] = pod
	}
	if container := req.Alert.Container(); container != "" {
		args["container"] = container
	}
	if node := req.Alert.Node(); node != "" {
		args["node"] = node
	}
	args["runbook_id"] = req.Alert.RunbookHint()

	return types.ToolCall{Name: req.ExpectedTool, Arguments: args}
}
