// Package router maps an incoming Alert to a fixed runbook identifier. It
// never fails: an alert it does not recognize resolves to RB_UNKNOWN rather
// than an error.
package router

import "github.com/fleetward/remediator/pkg/types"

var recognized = map[types.RunbookID]bool{
	types.RBImagePull:         true,
	types.RBOOM:               true,
	types.RBContainerCreating: true,
	types.RBCrashLoop:         true,
	types.RBNodeUnschedulable: true,
	types.RBNodeNotReady:      true,
}

var byAlertName = map[string]types.RunbookID{
	"KubePodImagePullBackOff":       types.RBImagePull,
	"KubePodOOMKilled":              types.RBOOM,
	"KubePodMemoryNearLimit":        types.RBOOM,
	"KubePodContainerCreatingStuck": types.RBContainerCreating,
	"KubePodCrashLoopBackOff":       types.RBCrashLoop,
	"KubeNodeUnschedulable":         types.RBNodeUnschedulable,
	"KubeNodeNotReady":              types.RBNodeNotReady,
}

// Resolve returns the runbook id for alert: labels.runbook_id first if it
// names a recognized runbook, then the fixed alertname table, else
// RB_UNKNOWN.
func Resolve(alert types.Alert) types.RunbookID {
	if hint := types.RunbookID(alert.RunbookHint()); hint != "" && recognized[hint] {
		return hint
	}
	if id, ok := byAlertName[alert.AlertName]; ok {
		return id
	}
	return types.RBUnknown
}
