package ingress

import (
	"context"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/fleetward/remediator/pkg/types"
)

type fakeProcessor struct {
	mu       sync.Mutex
	received []types.Alert
	err      error
}

func (f *fakeProcessor) Process(ctx context.Context, alert types.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, alert)
	return f.err
}

type fakeRejector struct {
	mu       sync.Mutex
	received []types.Alert
	reasons  []string
}

func (f *fakeRejector) Reject(ctx context.Context, alert types.Alert, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, alert)
	f.reasons = append(f.reasons, reason)
	return nil
}

var _ = Describe("Adapter.Handle", func() {
	var (
		ctx       context.Context
		processor *fakeProcessor
		rejector  *fakeRejector
	)

	BeforeEach(func() {
		ctx = context.Background()
		processor = &fakeProcessor{}
		rejector = &fakeRejector{}
	})

	It("dispatches a fully-labeled alert to the processor", func() {
		adapter := New(processor, rejector, 4, zap.NewNop())
		payload := WebhookPayload{Alerts: []RawAlert{
			{Labels: map[string]string{"alertname": "KubePodOOMKilled", "namespace": "default", "pod": "web-1"}, Status: "firing"},
		}}

		processed, err := adapter.Handle(ctx, payload)
		Expect(err).NotTo(HaveOccurred())
		Expect(processed).To(Equal(1))
		Expect(processor.received).To(HaveLen(1))
		Expect(rejector.received).To(BeEmpty())
	})

	It("rejects an alert with a container label but no pod label", func() {
		adapter := New(processor, rejector, 4, zap.NewNop())
		payload := WebhookPayload{Alerts: []RawAlert{
			{Labels: map[string]string{"alertname": "KubePodOOMKilled", "namespace": "default", "container": "app"}, Status: "firing"},
		}}

		processed, err := adapter.Handle(ctx, payload)
		Expect(err).NotTo(HaveOccurred())
		Expect(processed).To(Equal(1))
		Expect(processor.received).To(BeEmpty())
		Expect(rejector.received).To(HaveLen(1))
		Expect(rejector.reasons[0]).To(ContainSubstring("InvalidAlert"))
	})

	It("rejects an alert with a pod label but no namespace label", func() {
		adapter := New(processor, rejector, 4, zap.NewNop())
		payload := WebhookPayload{Alerts: []RawAlert{
			{Labels: map[string]string{"alertname": "KubePodOOMKilled", "pod": "web-1"}, Status: "firing"},
		}}

		_, err := adapter.Handle(ctx, payload)
		Expect(err).NotTo(HaveOccurred())
		Expect(rejector.received).To(HaveLen(1))
	})

	It("allows an alert with no pod/container/namespace labels at all", func() {
		adapter := New(processor, rejector, 4, zap.NewNop())
		payload := WebhookPayload{Alerts: []RawAlert{
			{Labels: map[string]string{"alertname": "KubeNodeUnschedulable", "node": "node-a"}, Status: "firing"},
		}}

		_, err := adapter.Handle(ctx, payload)
		Expect(err).NotTo(HaveOccurred())
		Expect(processor.received).To(HaveLen(1))
	})

	It("processes a batch of alerts concurrently and counts every one", func() {
		adapter := New(processor, rejector, 4, zap.NewNop())
		var alerts []RawAlert
		for i := 0; i < 10; i++ {
			alerts = append(alerts, RawAlert{
				Labels: map[string]string{"alertname": "KubePodOOMKilled", "namespace": "default", "pod": fmt.Sprintf("web-%d", i)},
				Status: "firing", StartsAt: time.Now(),
			})
		}

		processed, err := adapter.Handle(ctx, WebhookPayload{Alerts: alerts})
		Expect(err).NotTo(HaveOccurred())
		Expect(processed).To(Equal(10))
		Expect(processor.received).To(HaveLen(10))
	})

	It("surfaces a processor error and stops counting further alerts as processed", func() {
		processor.err = fmt.Errorf("db unavailable")
		adapter := New(processor, rejector, 4, zap.NewNop())
		payload := WebhookPayload{Alerts: []RawAlert{
			{Labels: map[string]string{"alertname": "KubePodOOMKilled", "namespace": "default", "pod": "web-1"}, Status: "firing"},
		}}

		processed, err := adapter.Handle(ctx, payload)
		Expect(err).To(HaveOccurred())
		Expect(processed).To(Equal(0))
	})
})
