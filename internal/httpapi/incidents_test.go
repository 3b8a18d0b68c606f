package httpapi

import (
	"encoding/json"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fleetward/remediator/pkg/types"
)

var _ = Describe("GET /api/incidents", func() {
	It("returns a page of incidents and the total count", func() {
		store := newFakeStore()
		store.incidents = []types.Incident{{ID: "inc-1", AlertName: "KubePodOOMKilled"}}
		store.total = 1
		server := newTestServer(&fakeAdapter{}, store, &fakeComposer{}, 1)
		defer server.Close()

		resp, body := doJSON(server, http.MethodGet, "/api/incidents?limit=10&offset=0", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var decoded struct {
			Incidents []types.Incident `json:"incidents"`
			Total     int              `json:"total"`
		}
		Expect(json.Unmarshal(body, &decoded)).To(Succeed())
		Expect(decoded.Total).To(Equal(1))
		Expect(decoded.Incidents).To(HaveLen(1))
	})

	It("falls back to the default page size on an out-of-range limit", func() {
		store := newFakeStore()
		server := newTestServer(&fakeAdapter{}, store, &fakeComposer{}, 1)
		defer server.Close()

		resp, _ := doJSON(server, http.MethodGet, "/api/incidents?limit=9999", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(store.gotLimit).To(Equal(defaultListLimit))
	})
})

var _ = Describe("GET /api/incidents/{id}", func() {
	It("returns the incident, its events, the latest analysis, and past incidents", func() {
		store := newFakeStore()
		store.byID["inc-1"] = &types.Incident{ID: "inc-1", AlertName: "KubePodOOMKilled", Severity: "critical"}
		analysisPayload, _ := json.Marshal(types.AnalysisEventPayload{AnalysisMarkdown: "## Summary\nfirst"})
		laterPayload, _ := json.Marshal(types.AnalysisEventPayload{AnalysisMarkdown: "## Summary\nlatest"})
		store.events["inc-1"] = []types.IncidentEvent{
			{ID: "ev-1", IncidentID: "inc-1", EventType: types.EventAnalysis, Payload: analysisPayload},
			{ID: "ev-2", IncidentID: "inc-1", EventType: types.EventAnalysis, Payload: laterPayload},
		}
		store.past = []types.PastIncident{{ID: "inc-0", AlertName: "KubePodOOMKilled"}}
		server := newTestServer(&fakeAdapter{}, store, &fakeComposer{}, 1)
		defer server.Close()

		resp, body := doJSON(server, http.MethodGet, "/api/incidents/inc-1", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var decoded incidentDetail
		Expect(json.Unmarshal(body, &decoded)).To(Succeed())
		Expect(decoded.Incident.ID).To(Equal("inc-1"))
		Expect(decoded.Events).To(HaveLen(2))
		Expect(decoded.AnalysisMarkdown).To(Equal("## Summary\nlatest"))
		Expect(decoded.PastIncidents).To(HaveLen(1))
	})

	It("answers 404 for an unknown incident", func() {
		server := newTestServer(&fakeAdapter{}, newFakeStore(), &fakeComposer{}, 1)
		defer server.Close()

		resp, _ := doJSON(server, http.MethodGet, "/api/incidents/missing", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
	})
})

var _ = Describe("POST /api/incidents/{id}/regenerate-analysis", func() {
	It("rebuilds the last workflow's execution state and responds with the new analysis event id", func() {
		store := newFakeStore()
		store.byID["inc-1"] = &types.Incident{ID: "inc-1", AlertName: "KubePodOOMKilled", AgentMode: types.ModeAuto}
		finalPayload, _ := json.Marshal(types.FinalEventPayload{
			RunbookID: types.RBOOM,
			State:     types.ExecutionSummary{ActionTaken: "increase_memory_limit:default/web-1/worker:512Mi"},
		})
		store.events["inc-1"] = []types.IncidentEvent{
			{ID: "ev-1", IncidentID: "inc-1", EventType: types.EventFinal, Payload: finalPayload},
		}
		composer := &fakeComposer{eventID: "analysis-event-2"}
		server := newTestServer(&fakeAdapter{}, store, composer, 1)
		defer server.Close()

		resp, body := doJSON(server, http.MethodPost, "/api/incidents/inc-1/regenerate-analysis", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(string(body)).To(MatchJSON(`{"analysis_event_id":"analysis-event-2"}`))
		Expect(composer.calls).To(Equal(1))
		Expect(composer.gotState.ActionTaken).To(Equal("increase_memory_limit:default/web-1/worker:512Mi"))
	})

	It("answers 409 when the incident has no completed workflow run", func() {
		store := newFakeStore()
		store.byID["inc-1"] = &types.Incident{ID: "inc-1"}
		composer := &fakeComposer{}
		server := newTestServer(&fakeAdapter{}, store, composer, 1)
		defer server.Close()

		resp, _ := doJSON(server, http.MethodPost, "/api/incidents/inc-1/regenerate-analysis", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		Expect(composer.calls).To(Equal(0))
	})
})
