package toolset

import (
	"context"
	"fmt"

	"github.com/fleetward/remediator/pkg/k8s"
	"github.com/fleetward/remediator/pkg/runbook"
	"github.com/fleetward/remediator/pkg/types"
)

// NewDiagnosticTools builds the read-only tool set (spec.md §4.3): always
// safe to run in either mode.
func NewDiagnosticTools(client k8s.BasicClient, runbooks runbook.Lookup) []*Tool {
	return []*Tool{
		{Name: "get_pod_events", Alias: "events", Fn: getPodEvents(client)},
		{Name: "check_imagepullbackoff", Alias: "imagepull", Fn: checkImagePullBackoff(client)},
		{Name: "check_oom", Alias: "oom", Fn: checkOOM(client)},
		{Name: "get_node_ready", Alias: "node_ready", Fn: getNodeReady(client)},
		{Name: "get_node_conditions", Alias: "node_conditions", Fn: getNodeConditions(client)},
		{Name: "get_runbook", Alias: "runbook", Fn: getRunbook(runbooks)},
	}
}

func podAndEvents(ctx context.Context, client k8s.BasicClient, namespace, pod string) (k8s.EventClassification, error) {
	p, err := client.GetPod(ctx, namespace, pod)
	if err != nil {
		return k8s.EventClassification{}, err
	}
	events, err := client.ListEvents(ctx, namespace, "involvedObject.name="+pod)
	if err != nil {
		return k8s.EventClassification{}, err
	}
	return k8s.ClassifyPodEvents(p, events), nil
}

func getPodEvents(client k8s.BasicClient) Func {
	return func(ctx context.Context, args map[string]any) types.ResultRecord {
		namespace, pod := stringArg(args, "namespace"), stringArg(args, "pod")
		class, err := podAndEvents(ctx, client, namespace, pod)
		if err != nil {
			return types.ResultRecord{OK: false, Error: fmt.Sprintf("get_pod_events: %s", err)}
		}
		return types.ResultRecord{OK: true, Fields: map[string]any{
			"oom_detected":             class.OOMDetected,
			"sandbox_failure_detected": class.SandboxFailureDetected,
			"imagepull_hint":           class.ImagePullHint,
		}}
	}
}

func checkImagePullBackoff(client k8s.BasicClient) Func {
	return func(ctx context.Context, args map[string]any) types.ResultRecord {
		namespace, pod := stringArg(args, "namespace"), stringArg(args, "pod")
		class, err := podAndEvents(ctx, client, namespace, pod)
		if err != nil {
			return types.ResultRecord{OK: false, Error: fmt.Sprintf("check_imagepullbackoff: %s", err)}
		}
		return types.ResultRecord{OK: true, Fields: map[string]any{
			"imagepull_detected": class.ImagePullHint,
			"reasons":            class.ImagePullReasons,
		}}
	}
}

func checkOOM(client k8s.BasicClient) Func {
	return func(ctx context.Context, args map[string]any) types.ResultRecord {
		namespace, pod := stringArg(args, "namespace"), stringArg(args, "pod")
		class, err := podAndEvents(ctx, client, namespace, pod)
		if err != nil {
			return types.ResultRecord{OK: false, Error: fmt.Sprintf("check_oom: %s", err)}
		}
		fields := map[string]any{
			"oom_detected": class.OOMDetected,
			"reasons":      class.OOMReasons,
		}
		if usage, ok := client.PodMetrics(ctx, namespace, pod); ok {
			fields["observed_memory_usage"] = usage
		}
		return types.ResultRecord{OK: true, Fields: fields}
	}
}

func getNodeReady(client k8s.BasicClient) Func {
	return func(ctx context.Context, args map[string]any) types.ResultRecord {
		node := stringArg(args, "node")
		n, err := client.GetNode(ctx, node)
		if err != nil {
			return types.ResultRecord{OK: false, Error: fmt.Sprintf("get_node_ready: %s", err)}
		}
		report := k8s.EvaluateNodeConditions(n)
		return types.ResultRecord{OK: true, Fields: map[string]any{
			"ready":         report.Ready,
			"not_ready":     report.NotReady,
			"unschedulable": report.Unschedulable,
		}}
	}
}

func getNodeConditions(client k8s.BasicClient) Func {
	return func(ctx context.Context, args map[string]any) types.ResultRecord {
		node := stringArg(args, "node")
		n, err := client.GetNode(ctx, node)
		if err != nil {
			return types.ResultRecord{OK: false, Error: fmt.Sprintf("get_node_conditions: %s", err)}
		}
		report := k8s.EvaluateNodeConditions(n)
		conditions := make([]string, 0, len(n.Status.Conditions))
		for _, c := range n.Status.Conditions {
			conditions = append(conditions, string(c.Type))
		}
		return types.ResultRecord{OK: true, Fields: map[string]any{
			"healthy":    report.Healthy,
			"problems":   report.Problems,
			"conditions": conditions,
		}}
	}
}

func getRunbook(runbooks runbook.Lookup) Func {
	return func(ctx context.Context, args map[string]any) types.ResultRecord {
		id := types.RunbookID(stringArg(args, "runbook_id"))
		rb, ok := runbooks.Get(id)
		if !ok {
			return types.ResultRecord{OK: false, Error: fmt.Sprintf("get_runbook: unknown runbook_id %q", id)}
		}
		return types.ResultRecord{OK: true, Fields: map[string]any{
			"runbook_id":     string(rb.ID),
			"fallback_image": rb.Metadata.FallbackImage,
			"owner_team":     rb.Metadata.OwnerTeam,
			"doc_url":        rb.Metadata.DocURL,
		}}
	}
}
