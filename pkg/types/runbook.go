package types

// GateExpr is a pre-parsed dotted reference into an ExecutionState's
// tool_results map: "imagepull.imagepull_detected" becomes
// {Alias: "imagepull", Field: "imagepull_detected"}.
type GateExpr struct {
	Alias string
	Field string
	Raw   string
}

// Step is one entry in a Runbook's ordered workflow.
type Step struct {
	ActionID string     `yaml:"action_id"`
	When     *GateExpr  `yaml:"-"`
	WhenAll  []GateExpr `yaml:"-"`
	WhenRaw  string     `yaml:"when,omitempty"`
	WhenAllRaw []string `yaml:"when_all,omitempty"`
}

// RunbookMetadata carries free-form, engine-opaque metadata. fallback_image
// is the one field the Tool Registry actually reads; owner_team/doc_url are
// supplemental (SPEC_FULL §3) and only ever surfaced, never interpreted.
type RunbookMetadata struct {
	FallbackImage string `yaml:"fallback_image,omitempty" json:"fallback_image,omitempty"`
	OwnerTeam     string `yaml:"owner_team,omitempty" json:"owner_team,omitempty"`
	DocURL        string `yaml:"doc_url,omitempty" json:"doc_url,omitempty"`
}

// Runbook is the in-memory, load-once, read-only-thereafter model.
type Runbook struct {
	ID          RunbookID       `yaml:"runbook_id"`
	AlertName   string          `yaml:"alertname"`
	Title       string          `yaml:"title"`
	Description string          `yaml:"description"`
	Workflow    []Step          `yaml:"workflow"`
	Metadata    RunbookMetadata `yaml:"metadata"`
}
