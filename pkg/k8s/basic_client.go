package k8s

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	metricsv1beta1 "k8s.io/metrics/pkg/client/clientset/versioned"
)

type basicClient struct {
	clientset     kubernetes.Interface
	metricsClient metricsv1beta1.Interface
	namespace     string
	log           logr.Logger
}

func (c *basicClient) ns(namespace string) string {
	if namespace == "" {
		return c.namespace
	}
	return namespace
}

func (c *basicClient) GetPod(ctx context.Context, namespace, name string) (*corev1.Pod, error) {
	pod, err := c.clientset.CoreV1().Pods(c.ns(namespace)).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get pod %s/%s: %w", c.ns(namespace), name, err)
	}
	return pod, nil
}

func (c *basicClient) DeletePod(ctx context.Context, namespace, name string) error {
	if err := c.clientset.CoreV1().Pods(c.ns(namespace)).Delete(ctx, name, metav1.DeleteOptions{}); err != nil {
		return fmt.Errorf("failed to delete pod %s/%s: %w", c.ns(namespace), name, err)
	}
	return nil
}

func (c *basicClient) ListPodsWithLabel(ctx context.Context, namespace, labelSelector string) (*corev1.PodList, error) {
	pods, err := c.clientset.CoreV1().Pods(c.ns(namespace)).List(ctx, metav1.ListOptions{LabelSelector: labelSelector})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods in %s with selector %q: %w", c.ns(namespace), labelSelector, err)
	}
	return pods, nil
}

func (c *basicClient) ListEvents(ctx context.Context, namespace, fieldSelector string) (*corev1.EventList, error) {
	events, err := c.clientset.CoreV1().Events(c.ns(namespace)).List(ctx, metav1.ListOptions{FieldSelector: fieldSelector})
	if err != nil {
		return nil, fmt.Errorf("failed to list events in %s: %w", c.ns(namespace), err)
	}
	return events, nil
}

func (c *basicClient) GetDeployment(ctx context.Context, namespace, name string) (*appsv1.Deployment, error) {
	dep, err := c.clientset.AppsV1().Deployments(c.ns(namespace)).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get deployment %s/%s: %w", c.ns(namespace), name, err)
	}
	return dep, nil
}

func (c *basicClient) GetNode(ctx context.Context, name string) (*corev1.Node, error) {
	node, err := c.clientset.CoreV1().Nodes().Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get node %s: %w", name, err)
	}
	return node, nil
}

// CountReadyNodes returns how many cluster nodes currently carry a Ready=True
// condition, for the safety policy's last-ready-node check.
func (c *basicClient) CountReadyNodes(ctx context.Context) (int, error) {
	nodes, err := c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to list nodes: %w", err)
	}
	ready := 0
	for _, node := range nodes.Items {
		for _, cond := range node.Status.Conditions {
			if cond.Type == corev1.NodeReady && cond.Status == corev1.ConditionTrue {
				ready++
				break
			}
		}
	}
	return ready, nil
}

// PatchDeploymentImage patches the named container's image. Used by
// fix_imagepullbackoff once the owning Deployment has been resolved.
func (c *basicClient) PatchDeploymentImage(ctx context.Context, namespace, name, container, image string) error {
	dep, err := c.GetDeployment(ctx, namespace, name)
	if err != nil {
		return err
	}
	updated := dep.DeepCopy()
	found := false
	for i := range updated.Spec.Template.Spec.Containers {
		if updated.Spec.Template.Spec.Containers[i].Name == container {
			updated.Spec.Template.Spec.Containers[i].Image = image
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("container %s not found in deployment %s/%s", container, c.ns(namespace), name)
	}
	if _, err := c.clientset.AppsV1().Deployments(c.ns(namespace)).Update(ctx, updated, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("failed to patch image on deployment %s/%s: %w", c.ns(namespace), name, err)
	}
	return nil
}

// PatchDeploymentMemoryLimit patches the named container's memory limit
// (and lowers its memory request to the new limit if the request would
// otherwise exceed it). Used by
// increase_memory_limit.
func (c *basicClient) PatchDeploymentMemoryLimit(ctx context.Context, namespace, name, container, limit string) error {
	qty, err := resource.ParseQuantity(limit)
	if err != nil {
		return fmt.Errorf("invalid memory limit %q: %w", limit, err)
	}
	dep, err := c.GetDeployment(ctx, namespace, name)
	if err != nil {
		return err
	}
	updated := dep.DeepCopy()
	found := false
	for i := range updated.Spec.Template.Spec.Containers {
		if updated.Spec.Template.Spec.Containers[i].Name == container {
			cnt := &updated.Spec.Template.Spec.Containers[i]
			if cnt.Resources.Limits == nil {
				cnt.Resources.Limits = corev1.ResourceList{}
			}
			cnt.Resources.Limits[corev1.ResourceMemory] = qty
			if req, ok := cnt.Resources.Requests[corev1.ResourceMemory]; ok && req.Cmp(qty) > 0 {
				cnt.Resources.Requests[corev1.ResourceMemory] = qty
			}
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("container %s not found in deployment %s/%s", container, c.ns(namespace), name)
	}
	if _, err := c.clientset.AppsV1().Deployments(c.ns(namespace)).Update(ctx, updated, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("failed to patch memory limit on deployment %s/%s: %w", c.ns(namespace), name, err)
	}
	return nil
}

func (c *basicClient) PatchNodeUnschedulable(ctx context.Context, name string, unschedulable bool) error {
	node, err := c.GetNode(ctx, name)
	if err != nil {
		return err
	}
	updated := node.DeepCopy()
	updated.Spec.Unschedulable = unschedulable
	if _, err := c.clientset.CoreV1().Nodes().Update(ctx, updated, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("failed to patch node %s unschedulable=%v: %w", name, unschedulable, err)
	}
	return nil
}

// PodMetrics returns a best-effort usage snapshot from the metrics-server
// PodMetrics API: {container: memoryUsage}. ok=false on any failure — the
// caller (check_oom) must degrade gracefully, never fail the step on this.
func (c *basicClient) PodMetrics(ctx context.Context, namespace, name string) (map[string]string, bool) {
	if c.metricsClient == nil {
		return nil, false
	}
	m, err := c.metricsClient.MetricsV1beta1().PodMetricses(c.ns(namespace)).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, false
	}
	usage := make(map[string]string, len(m.Containers))
	for _, cnt := range m.Containers {
		if mem, ok := cnt.Usage[corev1.ResourceMemory]; ok {
			usage[cnt.Name] = mem.String()
		}
	}
	return usage, true
}

func (c *basicClient) IsHealthy() bool {
	_, err := c.clientset.CoreV1().Namespaces().Get(context.Background(), c.namespace, metav1.GetOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return false
	}
	return true
}
