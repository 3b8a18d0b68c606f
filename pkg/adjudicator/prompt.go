package adjudicator

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fleetward/remediator/pkg/types"
)

// promptTemplate asks the model to pick arguments for one already-decided
// tool call. The engine — not the model — decides which tool runs; the
// template exists so every backend builds the same prompt shape.
const promptTemplate = `<|system|>
You are a Kubernetes remediation assistant. A runbook has already selected
the tool to run for this step. Your only job is to extract the correct
arguments for that tool from the alert and the diagnostics gathered so far.

CRITICAL DECISION RULES:
- You MUST respond with exactly one JSON object: {"name": "%s", "arguments": {...}}.
- The "name" field MUST be "%s" — you cannot choose a different tool.
- Only include argument keys relevant to this tool; omit anything you are unsure of.
- Respond with JSON only, no prose, no markdown fences.
<|user|>
Alert: %s
Namespace: %s
Pod: %s
Container: %s
Node: %s
Labels: %s

Diagnostics gathered so far:
%s

Expected tool: %s
<|assistant|>
`

func buildPrompt(req types.AdjudicateRequest) string {
	labels, _ := json.Marshal(req.Alert.Labels)
	return fmt.Sprintf(promptTemplate,
		req.ExpectedTool,
		req.ExpectedTool,
		req.Alert.AlertName,
		req.Alert.Namespace(),
		req.Alert.Pod(),
		req.Alert.Container(),
		req.Alert.Node(),
		string(labels),
		formatToolResults(req.ToolResults),
		req.ExpectedTool,
	)
}

func formatToolResults(results map[string]types.ResultRecord) string {
	if len(results) == 0 {
		return "(none yet)"
	}
	aliases := make([]string, 0, len(results))
	for alias := range results {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	var b strings.Builder
	for _, alias := range aliases {
		r := results[alias]
		fields, _ := json.Marshal(r.Fields)
		fmt.Fprintf(&b, "- %s: ok=%v fields=%s error=%q\n", alias, r.OK, string(fields), r.Error)
	}
	return b.String()
}

// parseToolCall extracts the first {"name":...,"arguments":{...}} JSON object
// from a model completion, tolerating surrounding prose or markdown fences.
func parseToolCall(completion string) (types.ToolCall, error) {
	start := strings.IndexByte(completion, '{')
	end := strings.LastIndexByte(completion, '}')
	if start < 0 || end < start {
		return types.ToolCall{}, fmt.Errorf("no JSON object found in completion")
	}

	var call types.ToolCall
	if err := json.Unmarshal([]byte(completion[start:end+1]), &call); err != nil {
		return types.ToolCall{}, fmt.Errorf("decode tool call: %w", err)
	}
	if call.Name == "" {
		return types.ToolCall{}, fmt.Errorf("tool call missing name")
	}
	return call, nil
}
