package types

// ResultRecord is the uniform return shape of every tool. A tool never
// throws outward: failures are captured here with ok=false and Error set.
type ResultRecord struct {
	OK     bool           `json:"ok"`
	Fields map[string]any `json:"fields,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// StepTrace records one workflow step's disposition, gated out or executed.
type StepTrace struct {
	ActionID string       `json:"action_id"`
	ToolName string       `json:"tool_name,omitempty"`
	Inputs   map[string]any `json:"inputs,omitempty"`
	Result   *ResultRecord `json:"result,omitempty"`
	GatedOut bool         `json:"gated_out,omitempty"`
	Reason   string       `json:"reason,omitempty"`
}

// LLMCallRecord traces one adjudicator invocation, including overrides.
type LLMCallRecord struct {
	ExpectedTool string `json:"expected_tool"`
	ReturnedTool string `json:"returned_tool,omitempty"`
	Overridden   bool   `json:"llm_override,omitempty"`
	Error        string `json:"error,omitempty"`
}

// StepContext / ExecutionState is the per-incident, ephemeral state the
// Workflow Engine mutates as it drives a runbook's steps.
type ExecutionState struct {
	Alert             Alert
	Mode              Mode
	ToolResults       map[string]ResultRecord
	RBSteps           []StepTrace
	LLMTrace          []LLMCallRecord
	ActionTaken       string
	ActionRecommended string
	ActionError       string
}

// NewExecutionState builds the zero-value state a workflow run starts from.
func NewExecutionState(alert Alert, mode Mode) *ExecutionState {
	return &ExecutionState{
		Alert:       alert,
		Mode:        mode,
		ToolResults: make(map[string]ResultRecord),
	}
}

// Summary projects the ephemeral state into the durable payload shape.
func (s *ExecutionState) Summary() ExecutionSummary {
	return ExecutionSummary{
		ActionTaken:       s.ActionTaken,
		ActionRecommended: s.ActionRecommended,
		ActionError:       s.ActionError,
		StepTraces:        s.RBSteps,
		LLMTrace:          s.LLMTrace,
	}
}
