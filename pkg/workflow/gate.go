package workflow

import (
	"fmt"

	"github.com/fleetward/remediator/pkg/types"
)

// evaluateGate reports whether step should run given the tool results
// gathered by prior steps. A missing alias or field is false, never an
// error — gate evaluation can never abort a workflow (spec.md §4.5 step 1).
func evaluateGate(step types.Step, results map[string]types.ResultRecord) (bool, string) {
	if step.When != nil {
		if !gatePasses(*step.When, results) {
			return false, fmt.Sprintf("gate false: %s", step.When.Raw)
		}
	}
	for _, g := range step.WhenAll {
		if !gatePasses(g, results) {
			return false, fmt.Sprintf("gate false: %s", g.Raw)
		}
	}
	return true, ""
}

func gatePasses(expr types.GateExpr, results map[string]types.ResultRecord) bool {
	record, ok := results[expr.Alias]
	if !ok {
		return false
	}
	val, ok := record.Fields[expr.Field]
	if !ok {
		return false
	}
	return truthy(val)
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	case nil:
		return false
	default:
		return true
	}
}
