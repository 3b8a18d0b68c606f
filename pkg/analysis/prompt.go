package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fleetward/remediator/pkg/types"
)

// promptTemplate is the fixed shape every composed narrative asks the model
// to fill in. Section headings are part of the contract: the incident API
// and any downstream reader can rely on the same seven headings appearing,
// in this order, every time.
const promptTemplate = `<|system|>
You are a Senior Site Reliability Engineer writing the post-incident record
for an automated Kubernetes remediation. Write a markdown document with
exactly these section headings, in this order:

## Summary
## What Happened
## Root Cause Hypothesis
## Action Taken / Recommended
## Why That Action
## Historical Pattern & SRE Recommendation
## Follow-ups

Be concrete and evidence-based. Do not invent diagnostics that were not
gathered. If historical incidents are provided, use them to inform the
Historical Pattern section; if none are provided, say so plainly.
<|user|>
Alert: %s
Namespace: %s
Pod: %s
Severity: %s
Runbook: %s

Execution summary:
%s

Similar past incidents:
%s
<|assistant|>
`

func buildPrompt(incident types.Incident, summary types.ExecutionSummary, past []types.PastIncident) string {
	return fmt.Sprintf(promptTemplate,
		incident.AlertName,
		incident.Namespace,
		incident.Pod,
		incident.Severity,
		incident.RunbookID,
		formatSummary(summary),
		formatPastIncidents(past),
	)
}

func formatSummary(s types.ExecutionSummary) string {
	var b strings.Builder
	if s.ActionTaken != "" {
		fmt.Fprintf(&b, "- action_taken: %s\n", s.ActionTaken)
	}
	if s.ActionRecommended != "" {
		fmt.Fprintf(&b, "- action_recommended: %s\n", s.ActionRecommended)
	}
	if s.ActionError != "" {
		fmt.Fprintf(&b, "- action_error: %s\n", s.ActionError)
	}
	for _, step := range s.StepTraces {
		if step.GatedOut {
			fmt.Fprintf(&b, "- step %s: gated out (%s)\n", step.ActionID, step.Reason)
			continue
		}
		result := "unknown"
		if step.Result != nil {
			if step.Result.OK {
				fields, _ := json.Marshal(step.Result.Fields)
				result = fmt.Sprintf("ok fields=%s", string(fields))
			} else {
				result = fmt.Sprintf("error=%q", step.Result.Error)
			}
		}
		fmt.Fprintf(&b, "- step %s (%s): %s\n", step.ActionID, step.ToolName, result)
	}
	if b.Len() == 0 {
		return "(no steps executed)"
	}
	return b.String()
}

func formatPastIncidents(past []types.PastIncident) string {
	if len(past) == 0 {
		return "(none found)"
	}
	var b strings.Builder
	for _, p := range past {
		fmt.Fprintf(&b, "- %s %s (%s/%s) at %s: taken=%q recommended=%q error=%q\n",
			p.RunbookID, p.ID, p.Namespace, p.Pod, p.CreatedAt.Format("2006-01-02T15:04:05Z"),
			p.ActionTaken, p.ActionRecommended, p.ActionError)
	}
	return b.String()
}
