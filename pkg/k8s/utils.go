package k8s

import (
	"strings"

	corev1 "k8s.io/api/core/v1"
)

// EventClassification is the shared shape get_pod_events, check_imagepullbackoff
// and check_oom all derive from one event/status scan, per spec.md §2.3.
type EventClassification struct {
	OOMDetected           bool
	SandboxFailureDetected bool
	ImagePullHint         bool
	ImagePullReasons      []string
	OOMReasons            []string
}

// ClassifyPodEvents scans a pod's events and container statuses once and
// returns the joint classification get_pod_events/check_imagepullbackoff/
// check_oom each read from, avoiding three independent event scans.
func ClassifyPodEvents(pod *corev1.Pod, events *corev1.EventList) EventClassification {
	var c EventClassification

	for _, cs := range pod.Status.ContainerStatuses {
		if cs.State.Waiting != nil {
			switch cs.State.Waiting.Reason {
			case "ImagePullBackOff", "ErrImagePull":
				c.ImagePullHint = true
				c.ImagePullReasons = append(c.ImagePullReasons, cs.State.Waiting.Reason)
			}
		}
		if cs.LastTerminationState.Terminated != nil {
			t := cs.LastTerminationState.Terminated
			if t.Reason == "OOMKilled" || t.ExitCode == 137 {
				c.OOMDetected = true
				c.OOMReasons = append(c.OOMReasons, "OOMKilled")
			}
		}
	}

	for _, ev := range events.Items {
		reason := ev.Reason
		switch {
		case strings.Contains(reason, "ImagePull") || strings.Contains(reason, "ErrImagePull") || strings.Contains(reason, "BackOff"):
			c.ImagePullHint = true
			c.ImagePullReasons = append(c.ImagePullReasons, reason)
		case strings.Contains(reason, "OOMKilling") || strings.Contains(strings.ToLower(ev.Message), "oom"):
			c.OOMDetected = true
			c.OOMReasons = append(c.OOMReasons, reason)
		case strings.Contains(reason, "FailedCreatePodSandBox"):
			c.SandboxFailureDetected = true
		}
	}

	return c
}

// NodeConditionReport is get_node_ready/get_node_conditions's shared basis.
type NodeConditionReport struct {
	Ready         bool
	NotReady      bool
	Unschedulable bool
	Healthy       bool
	Problems      []string
}

// benign is the non-Ready condition's healthy value; anything else is a problem.
var benign = map[corev1.NodeConditionType]corev1.ConditionStatus{
	corev1.NodeMemoryPressure: corev1.ConditionFalse,
	corev1.NodeDiskPressure:   corev1.ConditionFalse,
	corev1.NodePIDPressure:    corev1.ConditionFalse,
	corev1.NodeNetworkUnavailable: corev1.ConditionFalse,
}

// EvaluateNodeConditions reports get_node_ready/get_node_conditions in one
// pass: healthy iff every non-Ready condition sits at its benign value.
func EvaluateNodeConditions(node *corev1.Node) NodeConditionReport {
	report := NodeConditionReport{Unschedulable: node.Spec.Unschedulable, Healthy: true}

	for _, cond := range node.Status.Conditions {
		if cond.Type == corev1.NodeReady {
			report.Ready = cond.Status == corev1.ConditionTrue
			report.NotReady = !report.Ready
			continue
		}
		want, tracked := benign[cond.Type]
		if !tracked {
			continue
		}
		if cond.Status != want {
			report.Healthy = false
			report.Problems = append(report.Problems, string(cond.Type))
		}
	}

	return report
}
