package analysis

import (
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/fleetward/remediator/pkg/types"
)

type fakeStore struct {
	past        []types.PastIncident
	querySimErr error
	appended    []types.AnalysisEventPayload
	appendErr   error
}

func (f *fakeStore) QuerySimilar(ctx context.Context, incident types.Incident) ([]types.PastIncident, error) {
	return f.past, f.querySimErr
}

func (f *fakeStore) AppendEvent(ctx context.Context, incidentID string, eventType types.EventType, payload any) (string, error) {
	if f.appendErr != nil {
		return "", f.appendErr
	}
	f.appended = append(f.appended, payload.(types.AnalysisEventPayload))
	return "analysis-event-1", nil
}

type fakeNarrator struct {
	prompt string
	text   string
	err    error
}

func (f *fakeNarrator) Complete(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.text, f.err
}

type fakeNotifier struct {
	calls int
	err   error
}

func (f *fakeNotifier) Notify(ctx context.Context, incident types.Incident, summary types.ExecutionSummary) error {
	f.calls++
	return f.err
}

var _ = Describe("Composer.Compose", func() {
	var (
		ctx      context.Context
		store    *fakeStore
		narrator *fakeNarrator
		notifier *fakeNotifier
		incident types.Incident
		state    *types.ExecutionState
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = &fakeStore{}
		narrator = &fakeNarrator{text: "## Summary\nAll good.\n"}
		notifier = &fakeNotifier{}
		incident = types.Incident{ID: "inc-1", AlertName: "KubePodOOMKilled", Namespace: "default", Pod: "web-1", RunbookID: types.RBOOM, Severity: "warning"}
		state = types.NewExecutionState(types.Alert{}, types.ModeAuto)
		state.ActionTaken = "increase_memory_limit:default/web-1/worker:512Mi"
	})

	It("persists the narrative as an analysis event with regenerated=false", func() {
		composer := New(store, narrator, notifier, zap.NewNop())

		eventID, err := composer.Compose(ctx, incident, state, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(eventID).NotTo(BeEmpty())
		Expect(store.appended).To(HaveLen(1))
		Expect(store.appended[0].AnalysisMarkdown).To(Equal(narrator.text))
		Expect(store.appended[0].RunbookID).To(Equal(types.RBOOM))
		Expect(store.appended[0].Regenerated).To(BeFalse())
		Expect(narrator.prompt).To(ContainSubstring("## Summary"))
		Expect(narrator.prompt).To(ContainSubstring("increase_memory_limit"))
	})

	It("marks regenerated=true on a regeneration request", func() {
		composer := New(store, narrator, notifier, zap.NewNop())

		_, err := composer.Compose(ctx, incident, state, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(store.appended[0].Regenerated).To(BeTrue())
	})

	It("never notifies for a non-critical severity", func() {
		composer := New(store, narrator, notifier, zap.NewNop())

		_, err := composer.Compose(ctx, incident, state, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(notifier.calls).To(Equal(0))
	})

	It("notifies after persisting for a critical severity, and swallows notify errors", func() {
		incident.Severity = "critical"
		notifier.err = context.DeadlineExceeded
		composer := New(store, narrator, notifier, zap.NewNop())

		_, err := composer.Compose(ctx, incident, state, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(store.appended).To(HaveLen(1))
		Expect(notifier.calls).To(Equal(1))
	})

	It("wraps a narrator error without persisting an event", func() {
		narrator.err = context.Canceled
		composer := New(store, narrator, notifier, zap.NewNop())

		_, err := composer.Compose(ctx, incident, state, false)
		Expect(err).To(HaveOccurred())
		Expect(strings.Contains(err.Error(), "compose analysis narrative")).To(BeTrue())
		Expect(store.appended).To(BeEmpty())
	})

	It("propagates a query_similar error before ever calling the narrator", func() {
		store.querySimErr = context.Canceled
		composer := New(store, narrator, notifier, zap.NewNop())

		_, err := composer.Compose(ctx, incident, state, false)
		Expect(err).To(HaveOccurred())
		Expect(narrator.prompt).To(BeEmpty())
	})
})
