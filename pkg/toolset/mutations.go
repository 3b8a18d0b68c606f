package toolset

import (
	"context"
	"fmt"

	"github.com/google/go-containerregistry/pkg/name"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/fleetward/remediator/pkg/k8s"
	"github.com/fleetward/remediator/pkg/types"
)

const (
	minMemoryLimit = "256Mi"
	maxMemoryLimit = "4Gi"
)

// NewMutatingTools builds the mode-gated tool set (spec.md §4.3). In
// ModeAuto each tool performs its mutation and reports the change under
// Fields["action"]; in ModeRecommend it computes the identical description
// without touching the cluster. The workflow engine decides whether that
// string lands in action_taken or action_recommended.
func NewMutatingTools(client k8s.Client) []*Tool {
	return []*Tool{
		{Name: "fix_imagepullbackoff", Alias: "fix_imagepullbackoff", Mutating: true, Fn: fixImagePullBackoff(client)},
		{Name: "increase_memory_limit", Alias: "increase_memory_limit", Mutating: true, Fn: increaseMemoryLimit(client)},
		{Name: "delete_pod", Alias: "delete_pod", Mutating: true, Fn: deletePod(client)},
		{Name: "cordon_node", Alias: "cordon_node", Mutating: true, Fn: setNodeSchedulable(client, "cordon_node", true)},
		{Name: "uncordon_node", Alias: "uncordon_node", Mutating: true, Fn: setNodeSchedulable(client, "uncordon_node", false)},
		{Name: "drain_node", Alias: "drain_node", Mutating: true, Fn: drainNode(client)},
	}
}

func isAuto(args map[string]any) bool {
	mode, _ := args["_mode"].(string)
	return mode == string(types.ModeAuto)
}

func fixImagePullBackoff(client k8s.Client) Func {
	return func(ctx context.Context, args map[string]any) types.ResultRecord {
		namespace, pod := stringArg(args, "namespace"), stringArg(args, "pod")
		image := stringArg(args, "fallback_image")

		if _, err := name.ParseReference(image); err != nil {
			return types.ResultRecord{OK: false, Error: fmt.Sprintf("fix_imagepullbackoff: invalid fallback image %q: %s", image, err)}
		}

		deployment, err := client.ResolveOwningDeployment(ctx, namespace, pod)
		if err != nil {
			return types.ResultRecord{OK: false, Error: fmt.Sprintf("fix_imagepullbackoff: %s", err)}
		}
		p, err := client.GetPod(ctx, namespace, pod)
		if err != nil {
			return types.ResultRecord{OK: false, Error: fmt.Sprintf("fix_imagepullbackoff: %s", err)}
		}
		container, err := client.ResolveContainer(p, stringArg(args, "container"))
		if err != nil {
			return types.ResultRecord{OK: false, Error: fmt.Sprintf("fix_imagepullbackoff: %s", err)}
		}

		action := fmt.Sprintf("patch_image:%s/%s/%s:%s", namespace, deployment, container, image)
		if isAuto(args) {
			if err := client.PatchDeploymentImage(ctx, namespace, deployment, container, image); err != nil {
				return types.ResultRecord{OK: false, Error: fmt.Sprintf("fix_imagepullbackoff: %s", err)}
			}
		}
		return types.ResultRecord{OK: true, Fields: map[string]any{"action": action}}
	}
}

func increaseMemoryLimit(client k8s.Client) Func {
	return func(ctx context.Context, args map[string]any) types.ResultRecord {
		namespace, pod := stringArg(args, "namespace"), stringArg(args, "pod")

		deployment, err := client.ResolveOwningDeployment(ctx, namespace, pod)
		if err != nil {
			return types.ResultRecord{OK: false, Error: fmt.Sprintf("increase_memory_limit: %s", err)}
		}
		p, err := client.GetPod(ctx, namespace, pod)
		if err != nil {
			return types.ResultRecord{OK: false, Error: fmt.Sprintf("increase_memory_limit: %s", err)}
		}
		container, err := client.ResolveContainer(p, stringArg(args, "container"))
		if err != nil {
			return types.ResultRecord{OK: false, Error: fmt.Sprintf("increase_memory_limit: %s", err)}
		}

		dep, err := client.GetDeployment(ctx, namespace, deployment)
		if err != nil {
			return types.ResultRecord{OK: false, Error: fmt.Sprintf("increase_memory_limit: %s", err)}
		}

		current := currentMemoryLimit(dep, container)
		newLimit := nextMemoryLimit(current)

		action := fmt.Sprintf("patch_memory_limit:%s/%s/%s:%s→%s", namespace, deployment, container, current.String(), newLimit.String())
		if isAuto(args) {
			if err := client.PatchDeploymentMemoryLimit(ctx, namespace, deployment, container, newLimit.String()); err != nil {
				return types.ResultRecord{OK: false, Error: fmt.Sprintf("increase_memory_limit: %s", err)}
			}
		}
		return types.ResultRecord{OK: true, Fields: map[string]any{"action": action}}
	}
}

// currentMemoryLimit returns the named container's memory limit, or the
// zero Quantity if the container is missing or declares no limit.
func currentMemoryLimit(dep *appsv1.Deployment, container string) resource.Quantity {
	for _, c := range dep.Spec.Template.Spec.Containers {
		if c.Name != container {
			continue
		}
		if limit, ok := c.Resources.Limits[corev1.ResourceMemory]; ok {
			return limit
		}
		break
	}
	return resource.Quantity{}
}

// nextMemoryLimit computes clamp(max(256Mi, current*2), _, 4Gi); an unknown
// current limit starts from 256Mi, per spec.md §4.3's monotonicity rule.
func nextMemoryLimit(current resource.Quantity) resource.Quantity {
	min := resource.MustParse(minMemoryLimit)
	max := resource.MustParse(maxMemoryLimit)

	if current.IsZero() {
		return min
	}

	doubled := current.DeepCopy()
	doubled.Add(current)

	next := doubled
	if next.Cmp(min) < 0 {
		next = min
	}
	if next.Cmp(max) > 0 {
		next = max
	}
	return next
}

func deletePod(client k8s.Client) Func {
	return func(ctx context.Context, args map[string]any) types.ResultRecord {
		namespace, pod := stringArg(args, "namespace"), stringArg(args, "pod")

		p, err := client.GetPod(ctx, namespace, pod)
		if err != nil {
			return types.ResultRecord{OK: false, Error: fmt.Sprintf("delete_pod: %s", err)}
		}
		if len(p.OwnerReferences) == 0 {
			return types.ResultRecord{OK: false, Error: "delete_pod: pod has no controller owner, would not be recreated"}
		}

		action := fmt.Sprintf("delete_pod:%s/%s", namespace, pod)
		if isAuto(args) {
			if err := client.DeletePod(ctx, namespace, pod); err != nil {
				return types.ResultRecord{OK: false, Error: fmt.Sprintf("delete_pod: %s", err)}
			}
		}
		return types.ResultRecord{OK: true, Fields: map[string]any{"action": action}}
	}
}

func setNodeSchedulable(client k8s.Client, name string, unschedulable bool) Func {
	return func(ctx context.Context, args map[string]any) types.ResultRecord {
		node := stringArg(args, "node")
		action := fmt.Sprintf("%s:%s", name, node)
		if isAuto(args) {
			if err := client.PatchNodeUnschedulable(ctx, node, unschedulable); err != nil {
				return types.ResultRecord{OK: false, Error: fmt.Sprintf("%s: %s", name, err)}
			}
		}
		return types.ResultRecord{OK: true, Fields: map[string]any{"action": action}}
	}
}

func drainNode(client k8s.Client) Func {
	return func(ctx context.Context, args map[string]any) types.ResultRecord {
		node := stringArg(args, "node")
		if !isAuto(args) {
			return types.ResultRecord{OK: true, Fields: map[string]any{
				"action": fmt.Sprintf("drain_node:%s", node),
			}}
		}
		result, err := client.DrainNode(ctx, node)
		if err != nil {
			return types.ResultRecord{OK: false, Error: fmt.Sprintf("drain_node: %s", err)}
		}
		return types.ResultRecord{OK: true, Fields: map[string]any{
			"action":    fmt.Sprintf("drain_node:%s:attempted=%d,evicted=%d,skipped=%d,failed=%d", node, result.Attempted, result.Evicted, result.Skipped, result.Failed),
			"attempted": result.Attempted,
			"evicted":   result.Evicted,
			"skipped":   result.Skipped,
			"failed":    result.Failed,
		}}
	}
}
