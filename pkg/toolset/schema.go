package toolset

import (
	"context"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// argSchema declares the adjudicator-extracted argument shape for a single
// tool, validated before the tool ever sees its arguments.
type argSchema struct {
	tool   string
	schema *openapi3.Schema
}

func stringProp(description string) *openapi3.Schema {
	return &openapi3.Schema{Type: &openapi3.Types{"string"}, Description: description}
}

// Schemas declares the closed set of argument schemas, keyed by tool name,
// grounded on the fixed argument keys the toolset's diagnostics/mutations
// read out of the args bag (namespace, pod, node, container, runbook_id,
// fallback_image).
func Schemas() map[string]*openapi3.Schema {
	podScoped := func(extra map[string]*openapi3.SchemaRef) *openapi3.Schema {
		props := openapi3.Schemas{
			"namespace": openapi3.NewSchemaRef("", stringProp("namespace the target pod lives in")),
			"pod":       openapi3.NewSchemaRef("", stringProp("pod name")),
		}
		for k, v := range extra {
			props[k] = v
		}
		return &openapi3.Schema{
			Type:       &openapi3.Types{"object"},
			Properties: props,
			Required:   []string{"namespace", "pod"},
		}
	}
	nodeScoped := func() *openapi3.Schema {
		return &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"node": openapi3.NewSchemaRef("", stringProp("node name")),
			},
			Required: []string{"node"},
		}
	}

	return map[string]*openapi3.Schema{
		"get_pod_events":         podScoped(nil),
		"check_imagepullbackoff": podScoped(nil),
		"check_oom":              podScoped(nil),
		"get_node_ready":         nodeScoped(),
		"get_node_conditions":    nodeScoped(),
		"get_runbook": {
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"runbook_id": openapi3.NewSchemaRef("", stringProp("runbook identifier")),
			},
			Required: []string{"runbook_id"},
		},
		"fix_imagepullbackoff": podScoped(map[string]*openapi3.SchemaRef{
			"container":      openapi3.NewSchemaRef("", stringProp("container name, if known")),
			"fallback_image": openapi3.NewSchemaRef("", stringProp("image reference to patch to")),
		}),
		"increase_memory_limit": podScoped(map[string]*openapi3.SchemaRef{
			"container": openapi3.NewSchemaRef("", stringProp("container name, if known")),
		}),
		"delete_pod": podScoped(nil),
		"cordon_node":   nodeScoped(),
		"uncordon_node": nodeScoped(),
		"drain_node":    nodeScoped(),
	}
}

// SchemaValidator validates adjudicator-extracted arguments against each
// tool's declared input schema before the tool ever executes.
type SchemaValidator struct {
	schemas map[string]*openapi3.Schema
}

// NewSchemaValidator builds a validator over the fixed schema set.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{schemas: Schemas()}
}

// Validate reports a descriptive error if args does not satisfy tool's
// declared schema, or if tool has no declared schema at all.
func (v *SchemaValidator) Validate(ctx context.Context, tool string, args map[string]any) error {
	schema, ok := v.schemas[tool]
	if !ok {
		return fmt.Errorf("no declared schema for tool %q", tool)
	}
	input := make(map[string]any, len(args))
	for k, val := range args {
		input[k] = val
	}
	if err := schema.VisitJSON(input); err != nil {
		return fmt.Errorf("tool %q: arguments do not satisfy schema: %w", tool, err)
	}
	return nil
}
