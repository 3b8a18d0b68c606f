// Package workflow drives one runbook's ordered steps against a single
// alert: gate evaluation, expected-tool resolution, LLM adjudication, tool
// execution, and aggregation into an ExecutionState. It never loops, never
// branches beyond a step's gate, and never retries a step.
package workflow

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/fleetward/remediator/pkg/adjudicator"
	"github.com/fleetward/remediator/pkg/toolset"
	"github.com/fleetward/remediator/pkg/types"
)

// Engine executes a Runbook's workflow against the shared, immutable Tool
// Registry (spec.md §5: "readable by all tasks without synchronization").
type Engine struct {
	registry  *toolset.Registry
	backend   adjudicator.Backend
	tracer    trace.Tracer
	validator *toolset.SchemaValidator
}

// NewEngine builds an Engine over a process-lifetime registry and backend.
// validator may be nil, which disables argument-schema checking entirely.
func NewEngine(registry *toolset.Registry, backend adjudicator.Backend, tracer trace.Tracer, validator *toolset.SchemaValidator) *Engine {
	return &Engine{registry: registry, backend: backend, tracer: tracer, validator: validator}
}

// Run drives rb.Workflow against alert in mode, returning the final
// ExecutionState. It never returns an error: every failure mode (gated-out
// step, adjudicator fallback, tool failure, cancellation) is captured in the
// returned state instead.
func (e *Engine) Run(ctx context.Context, rb *types.Runbook, alert types.Alert, mode types.Mode) *types.ExecutionState {
	state := types.NewExecutionState(alert, mode)

	for _, step := range rb.Workflow {
		select {
		case <-ctx.Done():
			state.ActionError = "cancelled"
			return state
		default:
		}

		if pass, reason := evaluateGate(step, state.ToolResults); !pass {
			state.RBSteps = append(state.RBSteps, types.StepTrace{ActionID: step.ActionID, GatedOut: true, Reason: reason})
			continue
		}

		e.runStep(ctx, rb, alert, mode, step, state)
	}

	return state
}

func (e *Engine) runStep(ctx context.Context, rb *types.Runbook, alert types.Alert, mode types.Mode, step types.Step, state *types.ExecutionState) {
	expectedTool, ok := toolset.ExpectedTool(step.ActionID)
	if !ok {
		// Runbook loading validates every action_id against this same
		// table; reaching here means the table and the loader disagree.
		state.RBSteps = append(state.RBSteps, types.StepTrace{ActionID: step.ActionID, GatedOut: true, Reason: "unknown action_id"})
		return
	}

	stepCtx, span := e.tracer.Start(ctx, step.ActionID)
	defer span.End()

	req := types.AdjudicateRequest{
		Alert:        alert,
		RunbookID:    rb.ID,
		ActionID:     step.ActionID,
		ToolResults:  state.ToolResults,
		ExpectedTool: expectedTool,
	}
	call, record := adjudicator.Adjudicate(stepCtx, e.backend, req)
	state.LLMTrace = append(state.LLMTrace, record)

	args := fillDefaults(call.Arguments, alert)
	setIfMissing(args, "fallback_image", rb.Metadata.FallbackImage)
	args["_mode"] = string(mode)

	var result types.ResultRecord
	if validateErr := e.validateArgs(stepCtx, expectedTool, args); validateErr != nil {
		result = types.ResultRecord{OK: false, Error: validateErr.Error()}
	} else if execResult, err := e.registry.Execute(stepCtx, expectedTool, args); err != nil {
		result = types.ResultRecord{OK: false, Error: err.Error()}
	} else {
		result = execResult
	}

	tool, _ := e.registry.Get(expectedTool)
	alias := expectedTool
	mutating := false
	if tool != nil {
		alias = tool.Alias
		mutating = tool.Mutating
	}

	state.RBSteps = append(state.RBSteps, types.StepTrace{
		ActionID: step.ActionID,
		ToolName: expectedTool,
		Inputs:   args,
		Result:   &result,
	})
	state.ToolResults[alias] = result

	if !mutating {
		return
	}
	if !result.OK {
		state.ActionError = result.Error
		return
	}
	action, _ := result.Fields["action"].(string)
	if mode == types.ModeAuto {
		state.ActionTaken = action
	} else {
		state.ActionRecommended = action
	}
}

// validateArgs checks the adjudicator-extracted (plus label-defaulted)
// arguments against the tool's declared schema before it ever executes. A
// nil validator (no schema set configured) disables this check entirely.
func (e *Engine) validateArgs(ctx context.Context, tool string, args map[string]any) error {
	if e.validator == nil {
		return nil
	}
	return e.validator.Validate(ctx, tool, args)
}
