package toolset

// actionToTool is the small fixed table spec.md §4.5 describes: a runbook
// step's action_id maps to the tool actually invoked. Most action_ids are
// the tool name itself; patch_image and restart_pod are the two aliases
// that rename the underlying tool.
var actionToTool = map[string]string{
	"get_pod_events":         "get_pod_events",
	"check_imagepullbackoff": "check_imagepullbackoff",
	"check_oom":              "check_oom",
	"get_node_ready":         "get_node_ready",
	"get_node_conditions":    "get_node_conditions",
	"get_runbook":            "get_runbook",
	"patch_image":            "fix_imagepullbackoff",
	"fix_imagepullbackoff":   "fix_imagepullbackoff",
	"increase_memory_limit":  "increase_memory_limit",
	"restart_pod":            "delete_pod",
	"delete_pod":             "delete_pod",
	"cordon_node":            "cordon_node",
	"uncordon_node":          "uncordon_node",
	"drain_node":             "drain_node",
}

// ExpectedTool resolves a runbook step's action_id to the tool name the
// engine must invoke, regardless of what the adjudicator returns.
func ExpectedTool(actionID string) (string, bool) {
	tool, ok := actionToTool[actionID]
	return tool, ok
}

// IsKnownAction reports whether actionID has an entry in the fixed table —
// the Runbook Loader's load-time validation hook.
func IsKnownAction(actionID string) bool {
	_, ok := actionToTool[actionID]
	return ok
}
