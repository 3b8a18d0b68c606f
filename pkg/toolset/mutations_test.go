package toolset

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/fleetward/remediator/pkg/k8s"
	"github.com/fleetward/remediator/pkg/types"
)

var _ = Describe("nextMemoryLimit", func() {
	It("doubles the current limit when that stays within bounds", func() {
		got := nextMemoryLimit(resource.MustParse("512Mi"))
		Expect(got.Cmp(resource.MustParse("1Gi"))).To(Equal(0))
	})

	It("floors at 256Mi when the current limit is unset", func() {
		got := nextMemoryLimit(resource.Quantity{})
		Expect(got.Cmp(resource.MustParse("256Mi"))).To(Equal(0))
	})

	It("floors at 256Mi when doubling would still be tiny", func() {
		got := nextMemoryLimit(resource.MustParse("64Mi"))
		Expect(got.Cmp(resource.MustParse("256Mi"))).To(Equal(0))
	})

	It("caps at 4Gi", func() {
		got := nextMemoryLimit(resource.MustParse("3Gi"))
		Expect(got.Cmp(resource.MustParse("4Gi"))).To(Equal(0))
	})

	It("never decreases below the current limit", func() {
		current := resource.MustParse("1Gi")
		got := nextMemoryLimit(current)
		Expect(got.Cmp(current)).To(BeNumerically(">=", 0))
	})
})

var _ = Describe("fixImagePullBackoff", func() {
	It("rejects a malformed fallback image without touching the cluster", func() {
		fc := &fakeClient{}
		result := fixImagePullBackoff(fc)(context.Background(), map[string]any{
			"namespace": "default", "pod": "web-1", "fallback_image": "not a valid ref::",
		})
		Expect(result.OK).To(BeFalse())
		Expect(result.Error).To(ContainSubstring("invalid fallback image"))
	})

	It("patches the image in auto mode", func() {
		patched := false
		fc := &fakeClient{
			resolveOwningDeploymentFn: func(ctx context.Context, namespace, pod string) (string, error) { return "web", nil },
			getPodFn:                  func(ctx context.Context, namespace, name string) (*corev1.Pod, error) { return newPodFixture(namespace, name, "app"), nil },
			resolveContainerFn:        func(pod *corev1.Pod, labelContainer string) (string, error) { return "app", nil },
			patchDeploymentImageFn: func(ctx context.Context, namespace, name, container, image string) error {
				patched = true
				return nil
			},
		}
		result := fixImagePullBackoff(fc)(context.Background(), map[string]any{
			"namespace": "default", "pod": "web-1", "fallback_image": "nginx:stable", "_mode": string(types.ModeAuto),
		})
		Expect(result.OK).To(BeTrue())
		Expect(patched).To(BeTrue())
		Expect(result.Fields["action"]).To(Equal("patch_image:default/web/app:nginx:stable"))
	})

	It("computes the same action string without mutating in recommend mode", func() {
		patched := false
		fc := &fakeClient{
			resolveOwningDeploymentFn: func(ctx context.Context, namespace, pod string) (string, error) { return "web", nil },
			getPodFn:                  func(ctx context.Context, namespace, name string) (*corev1.Pod, error) { return newPodFixture(namespace, name, "app"), nil },
			resolveContainerFn:        func(pod *corev1.Pod, labelContainer string) (string, error) { return "app", nil },
			patchDeploymentImageFn: func(ctx context.Context, namespace, name, container, image string) error {
				patched = true
				return nil
			},
		}
		result := fixImagePullBackoff(fc)(context.Background(), map[string]any{
			"namespace": "default", "pod": "web-1", "fallback_image": "nginx:stable", "_mode": string(types.ModeRecommend),
		})
		Expect(result.OK).To(BeTrue())
		Expect(patched).To(BeFalse())
		Expect(result.Fields["action"]).To(Equal("patch_image:default/web/app:nginx:stable"))
	})
})

var _ = Describe("increaseMemoryLimit", func() {
	It("reads the current limit and doubles it", func() {
		var appliedLimit string
		fc := &fakeClient{
			resolveOwningDeploymentFn: func(ctx context.Context, namespace, pod string) (string, error) { return "web", nil },
			getPodFn:                  func(ctx context.Context, namespace, name string) (*corev1.Pod, error) { return newPodFixture(namespace, name, "app"), nil },
			resolveContainerFn:        func(pod *corev1.Pod, labelContainer string) (string, error) { return "app", nil },
			getDeploymentFn: func(ctx context.Context, namespace, name string) (*appsv1.Deployment, error) {
				return &appsv1.Deployment{
					Spec: appsv1.DeploymentSpec{
						Template: corev1.PodTemplateSpec{
							Spec: corev1.PodSpec{
								Containers: []corev1.Container{{
									Name: "app",
									Resources: corev1.ResourceRequirements{
										Limits: corev1.ResourceList{corev1.ResourceMemory: resource.MustParse("512Mi")},
									},
								}},
							},
						},
					},
				}, nil
			},
			patchDeploymentMemoryLimitFn: func(ctx context.Context, namespace, name, container, limit string) error {
				appliedLimit = limit
				return nil
			},
		}
		result := increaseMemoryLimit(fc)(context.Background(), map[string]any{
			"namespace": "default", "pod": "web-1", "_mode": string(types.ModeAuto),
		})
		Expect(result.OK).To(BeTrue())
		Expect(appliedLimit).To(Equal("1Gi"))
	})
})

var _ = Describe("deletePod", func() {
	It("refuses to delete a pod with no controller owner", func() {
		fc := &fakeClient{
			getPodFn: func(ctx context.Context, namespace, name string) (*corev1.Pod, error) {
				return newPodFixture(namespace, name, "app"), nil
			},
		}
		result := deletePod(fc)(context.Background(), map[string]any{
			"namespace": "default", "pod": "web-1", "_mode": string(types.ModeAuto),
		})
		Expect(result.OK).To(BeFalse())
		Expect(result.Error).To(ContainSubstring("no controller owner"))
	})

	It("deletes an owned pod in auto mode", func() {
		deleted := false
		pod := newPodFixture("default", "web-1", "app")
		pod.OwnerReferences = []metav1.OwnerReference{metav1OwnerReference()}
		fc := &fakeClient{
			getPodFn: func(ctx context.Context, namespace, name string) (*corev1.Pod, error) { return pod, nil },
			deletePodFn: func(ctx context.Context, namespace, name string) error {
				deleted = true
				return nil
			},
		}
		result := deletePod(fc)(context.Background(), map[string]any{
			"namespace": "default", "pod": "web-1", "_mode": string(types.ModeAuto),
		})
		Expect(result.OK).To(BeTrue())
		Expect(deleted).To(BeTrue())
	})
})

var _ = Describe("drainNode", func() {
	It("skips the drain in recommend mode", func() {
		called := false
		fc := &fakeClient{
			drainNodeFn: func(ctx context.Context, name string) (k8s.DrainResult, error) {
				called = true
				return k8s.DrainResult{}, nil
			},
		}
		result := drainNode(fc)(context.Background(), map[string]any{"node": "node-1", "_mode": string(types.ModeRecommend)})
		Expect(result.OK).To(BeTrue())
		Expect(called).To(BeFalse())
	})

	It("surfaces a cluster error", func() {
		fc := &fakeClient{
			drainNodeFn: func(ctx context.Context, name string) (k8s.DrainResult, error) {
				return k8s.DrainResult{}, errors.New("boom")
			},
		}
		result := drainNode(fc)(context.Background(), map[string]any{"node": "node-1", "_mode": string(types.ModeAuto)})
		Expect(result.OK).To(BeFalse())
		Expect(result.Error).To(ContainSubstring("boom"))
	})
})

func metav1OwnerReference() metav1.OwnerReference {
	return metav1.OwnerReference{Kind: "ReplicaSet", Name: "web-abc123"}
}
