package workflow

import "github.com/fleetward/remediator/pkg/types"

// fillDefaults applies the alert-label default spec.md §4.5 step 3
// describes: the adjudicator is advisory on arguments, so any key it left
// out (or the label-derived fallback already set) falls back to the
// alert's own labels.
func fillDefaults(args map[string]any, alert types.Alert) map[string]any {
	if args == nil {
		args = map[string]any{}
	}
	setIfMissing(args, "namespace", alert.Namespace())
	setIfMissing(args, "pod", alert.Pod())
	setIfMissing(args, "container", alert.Container())
	setIfMissing(args, "node", alert.Node())
	setIfMissing(args, "runbook_id", alert.RunbookHint())
	return args
}

func setIfMissing(args map[string]any, key, val string) {
	if val == "" {
		return
	}
	if _, ok := args[key]; !ok {
		args[key] = val
	}
}
