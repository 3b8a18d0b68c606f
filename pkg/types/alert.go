// Package types holds the data model shared by every component of the
// remediation engine: alerts, incidents, the append-only event log, the
// runbook's in-memory shape, and the per-incident execution state.
package types

import "time"

// RunbookID is one of the fixed runbook identifiers the Router resolves to.
type RunbookID string

const (
	RBImagePull          RunbookID = "RB_IMAGEPULL"
	RBOOM                RunbookID = "RB_OOM"
	RBContainerCreating  RunbookID = "RB_CONTAINERCREATING"
	RBCrashLoop          RunbookID = "RB_CRASHLOOP"
	RBNodeUnschedulable  RunbookID = "RB_NODE_UNSCHEDULABLE"
	RBNodeNotReady       RunbookID = "RB_NODE_NOTREADY"
	RBUnknown            RunbookID = "RB_UNKNOWN"
)

// Mode controls whether mutating tools actually mutate the cluster.
type Mode string

const (
	ModeAuto      Mode = "auto"
	ModeRecommend Mode = "recommend"
)

// AlertStatus mirrors the alert router's firing/resolved status field.
type AlertStatus string

const (
	AlertFiring   AlertStatus = "firing"
	AlertResolved AlertStatus = "resolved"
)

// Alert is the transient, wire-level representation of one fired alert.
type Alert struct {
	AlertName   string            `json:"alertname"`
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
	StartsAt    time.Time         `json:"starts_at"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	GroupKey    string            `json:"group_key,omitempty"`
	Status      AlertStatus       `json:"status"`
}

// Label lookups for the well-known, required-if-present labels.
func (a Alert) Namespace() string  { return a.Labels["namespace"] }
func (a Alert) Pod() string        { return a.Labels["pod"] }
func (a Alert) Container() string  { return a.Labels["container"] }
func (a Alert) Node() string       { return a.Labels["node"] }
func (a Alert) RunbookHint() string { return a.Labels["runbook_id"] }
func (a Alert) Severity() string   { return a.Labels["severity"] }

// ComputeFingerprint returns the upstream fingerprint/group key verbatim if
// present, otherwise composes the alertname:namespace:pod:container key with
// empty segments preserved, per spec.md §3.
func (a Alert) ComputeFingerprint() string {
	if a.Fingerprint != "" {
		return a.Fingerprint
	}
	if a.GroupKey != "" {
		return a.GroupKey
	}
	return a.AlertName + ":" + a.Namespace() + ":" + a.Pod() + ":" + a.Container()
}
