package toolset

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/fleetward/remediator/internal/cerrors"
	"github.com/fleetward/remediator/pkg/k8s"
)

// safetyPolicy is evaluated in-process by PolicyAwareClient ahead of the
// DeletePod, PatchNodeUnschedulable (cordon) and DrainNode calls it wraps.
// Recommend-mode tools make no cluster call, so a recommend-mode description
// is not checked against the policy. Denials are
// reported through cerrors.KindPolicyDenied, the same shape a
// ClusterAPIError takes.
const safetyPolicy = `
package remediator.safety

default allow := false

protected_namespaces := {"kube-system", "kube-public"}

deny contains msg if {
	input.action in {"delete_pod", "restart_pod"}
	input.namespace in protected_namespaces
	msg := sprintf("refusing to delete pods in protected namespace %q", [input.namespace])
}

deny contains msg if {
	input.action in {"cordon_node", "drain_node"}
	input.last_ready_node == true
	msg := sprintf("refusing to %s the cluster's last ready node %q", [input.action, input.node])
}

deny contains msg if {
	input.action == "increase_memory_limit"
	input.new_replicas == 0
	msg := "refusing to patch a deployment scaled to zero replicas"
}

allow if {
	count(deny) == 0
}
`

// Policy wraps a compiled Rego safety policy, evaluated once per mutating
// tool call with a small input document describing the action.
type Policy struct {
	query rego.PreparedEvalQuery
}

// PolicyInput is the evaluation context for one mutating tool invocation.
type PolicyInput struct {
	Action         string `json:"action"`
	Namespace      string `json:"namespace"`
	Node           string `json:"node"`
	LastReadyNode  bool   `json:"last_ready_node"`
	NewReplicas    *int32 `json:"new_replicas,omitempty"`
}

// NewPolicy compiles the built-in safety policy.
func NewPolicy(ctx context.Context) (*Policy, error) {
	query, err := rego.New(
		rego.Query("data.remediator.safety"),
		rego.Module("safety.rego", safetyPolicy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile safety policy: %w", err)
	}
	return &Policy{query: query}, nil
}

// Evaluate returns a non-nil error (cerrors.KindPolicyDenied) if input
// violates the safety policy.
func (p *Policy) Evaluate(ctx context.Context, in PolicyInput) error {
	results, err := p.query.Eval(ctx, rego.EvalInput(in))
	if err != nil {
		return fmt.Errorf("evaluate safety policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return fmt.Errorf("safety policy produced no result")
	}
	doc, ok := results[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return fmt.Errorf("safety policy returned unexpected shape")
	}
	if allow, _ := doc["allow"].(bool); allow {
		return nil
	}
	reasons := reasonsFrom(doc["deny"])
	return cerrors.New(cerrors.KindPolicyDenied, in.Action, fmt.Errorf("%v", reasons))
}

func reasonsFrom(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	reasons := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			reasons = append(reasons, s)
		}
	}
	return reasons
}

// PolicyAwareClient evaluates the safety policy before delegating to an
// underlying k8s.Client, independent of the agent's mode.
type PolicyAwareClient struct {
	k8s.Client
	policy         *Policy
	isLastReadyFn  func(ctx context.Context) (bool, error)
}

// NewPolicyAwareClient wraps client so every mutating call it receives is
// first checked against policy. isLastReady reports whether the cluster as
// a whole is down to its last Ready node; it is not told which node the
// call targets.
func NewPolicyAwareClient(client k8s.Client, policy *Policy, isLastReady func(ctx context.Context) (bool, error)) *PolicyAwareClient {
	return &PolicyAwareClient{Client: client, policy: policy, isLastReadyFn: isLastReady}
}

func (c *PolicyAwareClient) checkNodeAction(ctx context.Context, action, node string) error {
	last := false
	if c.isLastReadyFn != nil {
		var err error
		last, err = c.isLastReadyFn(ctx)
		if err != nil {
			return err
		}
	}
	return c.policy.Evaluate(ctx, PolicyInput{Action: action, Node: node, LastReadyNode: last})
}

func (c *PolicyAwareClient) DeletePod(ctx context.Context, namespace, name string) error {
	if err := c.policy.Evaluate(ctx, PolicyInput{Action: "delete_pod", Namespace: namespace}); err != nil {
		return err
	}
	return c.Client.DeletePod(ctx, namespace, name)
}

func (c *PolicyAwareClient) PatchNodeUnschedulable(ctx context.Context, name string, unschedulable bool) error {
	if unschedulable {
		if err := c.checkNodeAction(ctx, "cordon_node", name); err != nil {
			return err
		}
	}
	return c.Client.PatchNodeUnschedulable(ctx, name, unschedulable)
}

func (c *PolicyAwareClient) DrainNode(ctx context.Context, name string) (k8s.DrainResult, error) {
	if err := c.checkNodeAction(ctx, "drain_node", name); err != nil {
		return k8s.DrainResult{}, err
	}
	return c.Client.DrainNode(ctx, name)
}
