package types

import "time"

// IncidentStatus is never deleted by the engine once an incident exists.
type IncidentStatus string

const (
	IncidentOpen       IncidentStatus = "open"
	IncidentResolved   IncidentStatus = "resolved"
	IncidentSuppressed IncidentStatus = "suppressed"
)

// Incident is the persisted row keyed by a unique fingerprint. ID is a
// string-encoded UUID (google/uuid), minted by the Store on insert.
type Incident struct {
	ID          string         `json:"id" db:"id"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
	Fingerprint string         `json:"fingerprint" db:"fingerprint"`
	AlertName   string         `json:"alertname" db:"alertname"`
	Namespace   string         `json:"namespace" db:"namespace"`
	Pod         string         `json:"pod" db:"pod"`
	Node        string         `json:"node" db:"node"`
	Severity    string         `json:"severity" db:"severity"`
	RunbookID   RunbookID      `json:"runbook_id" db:"runbook_id"`
	Status      IncidentStatus `json:"status" db:"status"`
	AgentMode   Mode           `json:"agent_mode" db:"agent_mode"`
	Summary     string         `json:"summary" db:"summary"`
}

// EventType enumerates the append-only incident_events kinds. "note" is an
// ambient, non-engine-driven addition (SPEC_FULL §3) declared for an
// operator's free-text annotation; neither the engine nor the incident API
// writes it.
type EventType string

const (
	EventWebhookReceived EventType = "webhook_received"
	EventSuppressed      EventType = "suppressed"
	EventFinal           EventType = "final"
	EventAnalysis        EventType = "analysis"
	EventNote            EventType = "note"
)

// IncidentEvent is one row of the append-only, totally ordered event log.
type IncidentEvent struct {
	ID         string    `json:"id" db:"id"`
	IncidentID string    `json:"incident_id" db:"incident_id"`
	Ts         time.Time `json:"ts" db:"ts"`
	EventType  EventType `json:"event_type" db:"event_type"`
	Payload    []byte    `json:"payload" db:"payload"`
}

// FinalEventPayload is the structured body of a "final" event.
type FinalEventPayload struct {
	RunbookID RunbookID        `json:"runbook_id"`
	State     ExecutionSummary `json:"state"`
}

// ExecutionSummary is the durable projection of an ExecutionState.
type ExecutionSummary struct {
	ActionTaken      string          `json:"action_taken,omitempty"`
	ActionRecommended string         `json:"action_recommended,omitempty"`
	ActionError      string          `json:"action_error,omitempty"`
	StepTraces       []StepTrace     `json:"rb_steps"`
	LLMTrace         []LLMCallRecord `json:"llm_trace"`
}

// AnalysisEventPayload is the structured body of an "analysis" event.
type AnalysisEventPayload struct {
	AnalysisMarkdown string    `json:"analysis_markdown"`
	RunbookID        RunbookID `json:"runbook_id"`
	Regenerated      bool      `json:"regenerated"`
}

// SuppressedEventPayload is the structured body of a "suppressed" event.
type SuppressedEventPayload struct {
	Reason string `json:"reason"`
}

// PastIncident is the projection query_similar returns for the composer.
type PastIncident struct {
	ID                string    `json:"id"`
	AlertName         string    `json:"alertname"`
	Namespace         string    `json:"namespace"`
	Pod               string    `json:"pod"`
	RunbookID         RunbookID `json:"runbook_id"`
	ActionTaken       string    `json:"action_taken,omitempty"`
	ActionRecommended string    `json:"action_recommended,omitempty"`
	ActionError       string    `json:"action_error,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
