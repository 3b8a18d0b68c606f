package runbook

import (
	"fmt"
	"strings"

	"github.com/fleetward/remediator/pkg/types"
)

// parseGate turns "alias.field" into a types.GateExpr. Both segments are
// identifier-like per spec.md §6's gate expression grammar.
func parseGate(raw string) (types.GateExpr, error) {
	parts := strings.SplitN(raw, ".", 2)
	if len(parts) != 2 || !isIdentifier(parts[0]) || !isIdentifier(parts[1]) {
		return types.GateExpr{}, fmt.Errorf("invalid gate expression %q: want <alias>.<field>", raw)
	}
	return types.GateExpr{Alias: parts[0], Field: parts[1], Raw: raw}, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		isDigit := r >= '0' && r <= '9'
		if !isAlpha && !(isDigit && i > 0) {
			return false
		}
	}
	return true
}

// resolveSteps parses each step's WhenRaw/WhenAllRaw into When/WhenAll.
func resolveSteps(steps []types.Step) error {
	for i := range steps {
		if steps[i].WhenRaw != "" {
			gate, err := parseGate(steps[i].WhenRaw)
			if err != nil {
				return fmt.Errorf("step %q: %w", steps[i].ActionID, err)
			}
			steps[i].When = &gate
		}
		if len(steps[i].WhenAllRaw) > 0 {
			gates := make([]types.GateExpr, 0, len(steps[i].WhenAllRaw))
			for _, raw := range steps[i].WhenAllRaw {
				gate, err := parseGate(raw)
				if err != nil {
					return fmt.Errorf("step %q: %w", steps[i].ActionID, err)
				}
				gates = append(gates, gate)
			}
			steps[i].WhenAll = gates
		}
	}
	return nil
}
