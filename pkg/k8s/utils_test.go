package k8s

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

var _ = Describe("ClassifyPodEvents", func() {
	It("detects an ImagePullBackOff waiting reason", func() {
		pod := &corev1.Pod{
			Status: corev1.PodStatus{
				ContainerStatuses: []corev1.ContainerStatus{
					{State: corev1.ContainerState{Waiting: &corev1.ContainerStateWaiting{Reason: "ImagePullBackOff"}}},
				},
			},
		}
		result := ClassifyPodEvents(pod, &corev1.EventList{})
		Expect(result.ImagePullHint).To(BeTrue())
		Expect(result.ImagePullReasons).To(ContainElement("ImagePullBackOff"))
	})

	It("detects OOMKilled from the last termination state", func() {
		pod := &corev1.Pod{
			Status: corev1.PodStatus{
				ContainerStatuses: []corev1.ContainerStatus{
					{LastTerminationState: corev1.ContainerState{
						Terminated: &corev1.ContainerStateTerminated{Reason: "OOMKilled"},
					}},
				},
			},
		}
		result := ClassifyPodEvents(pod, &corev1.EventList{})
		Expect(result.OOMDetected).To(BeTrue())
	})

	It("detects OOM from exit code 137 even without an explicit reason", func() {
		pod := &corev1.Pod{
			Status: corev1.PodStatus{
				ContainerStatuses: []corev1.ContainerStatus{
					{LastTerminationState: corev1.ContainerState{
						Terminated: &corev1.ContainerStateTerminated{ExitCode: 137},
					}},
				},
			},
		}
		result := ClassifyPodEvents(pod, &corev1.EventList{})
		Expect(result.OOMDetected).To(BeTrue())
	})

	It("classifies event-stream evidence alongside pod status", func() {
		pod := &corev1.Pod{}
		events := &corev1.EventList{
			Items: []corev1.Event{
				{Reason: "FailedCreatePodSandBox"},
				{Reason: "BackOff", Message: "Back-off pulling image"},
			},
		}
		result := ClassifyPodEvents(pod, events)
		Expect(result.SandboxFailureDetected).To(BeTrue())
		Expect(result.ImagePullHint).To(BeTrue())
	})

	It("reports no detections when nothing is amiss", func() {
		pod := &corev1.Pod{
			Status: corev1.PodStatus{
				ContainerStatuses: []corev1.ContainerStatus{{State: corev1.ContainerState{Running: &corev1.ContainerStateRunning{}}}},
			},
		}
		result := ClassifyPodEvents(pod, &corev1.EventList{})
		Expect(result.OOMDetected).To(BeFalse())
		Expect(result.ImagePullHint).To(BeFalse())
		Expect(result.SandboxFailureDetected).To(BeFalse())
	})
})

var _ = Describe("EvaluateNodeConditions", func() {
	It("is healthy when Ready=True and no pressure conditions are set", func() {
		node := &corev1.Node{
			Status: corev1.NodeStatus{
				Conditions: []corev1.NodeCondition{
					{Type: corev1.NodeReady, Status: corev1.ConditionTrue},
					{Type: corev1.NodeMemoryPressure, Status: corev1.ConditionFalse},
					{Type: corev1.NodeDiskPressure, Status: corev1.ConditionFalse},
				},
			},
		}
		report := EvaluateNodeConditions(node)
		Expect(report.Ready).To(BeTrue())
		Expect(report.Healthy).To(BeTrue())
		Expect(report.Problems).To(BeEmpty())
	})

	It("is unhealthy when MemoryPressure is True, independent of unschedulable", func() {
		node := &corev1.Node{
			ObjectMeta: metav1.ObjectMeta{Name: "node-a"},
			Spec:       corev1.NodeSpec{Unschedulable: true},
			Status: corev1.NodeStatus{
				Conditions: []corev1.NodeCondition{
					{Type: corev1.NodeReady, Status: corev1.ConditionTrue},
					{Type: corev1.NodeMemoryPressure, Status: corev1.ConditionTrue},
				},
			},
		}
		report := EvaluateNodeConditions(node)
		Expect(report.Healthy).To(BeFalse())
		Expect(report.Unschedulable).To(BeTrue())
		Expect(report.Problems).To(ContainElement("MemoryPressure"))
	})

	It("reports NotReady when the Ready condition is False", func() {
		node := &corev1.Node{
			Status: corev1.NodeStatus{
				Conditions: []corev1.NodeCondition{{Type: corev1.NodeReady, Status: corev1.ConditionFalse}},
			},
		}
		report := EvaluateNodeConditions(node)
		Expect(report.NotReady).To(BeTrue())
	})
})
