package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fleetward/remediator/pkg/types"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// handleListIncidents answers spec.md §6's `GET /api/incidents?limit&offset`.
func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	incidents, err := s.store.ListIncidents(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list incidents failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list incidents")
		return
	}
	total, err := s.store.CountIncidents(r.Context())
	if err != nil {
		s.logger.Error("count incidents failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to count incidents")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"incidents": incidents,
		"total":     total,
	})
}

// incidentDetail is the `GET /api/incidents/{id}` response shape per
// spec.md §6: the incident row, its full event log, the most recent
// analysis narrative, and similar past incidents.
type incidentDetail struct {
	Incident         types.Incident        `json:"incident"`
	Events           []types.IncidentEvent `json:"events"`
	AnalysisMarkdown string                `json:"analysis_markdown"`
	PastIncidents    []types.PastIncident  `json:"past_incidents"`
}

func (s *Server) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	incident, err := s.store.GetIncident(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "incident not found")
		return
	}

	events, err := s.store.GetEvents(r.Context(), id)
	if err != nil {
		s.logger.Error("get events failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}

	past, err := s.store.QuerySimilar(r.Context(), *incident)
	if err != nil {
		s.logger.Error("query similar failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load past incidents")
		return
	}

	writeJSON(w, http.StatusOK, incidentDetail{
		Incident:         *incident,
		Events:           events,
		AnalysisMarkdown: latestAnalysisMarkdown(events),
		PastIncidents:    past,
	})
}

// handleRegenerateAnalysis answers spec.md §6's
// `POST /api/incidents/{id}/regenerate-analysis`: it rebuilds the execution
// state the last workflow run left behind from that run's `final` event,
// asks the Composer to write a fresh narrative over it, and responds with
// the new analysis event's id per S6.
func (s *Server) handleRegenerateAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	incident, err := s.store.GetIncident(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "incident not found")
		return
	}

	events, err := s.store.GetEvents(r.Context(), id)
	if err != nil {
		s.logger.Error("get events failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}

	summary, ok := latestFinalSummary(events)
	if !ok {
		writeError(w, http.StatusConflict, "incident has no completed workflow run to re-analyze")
		return
	}

	state := types.NewExecutionState(types.Alert{AlertName: incident.AlertName}, incident.AgentMode)
	state.ActionTaken = summary.ActionTaken
	state.ActionRecommended = summary.ActionRecommended
	state.ActionError = summary.ActionError
	state.RBSteps = summary.StepTraces
	state.LLMTrace = summary.LLMTrace

	eventID, err := s.composer.Compose(r.Context(), *incident, state, true)
	if err != nil {
		s.logger.Error("regenerate analysis failed", zap.String("incident_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to regenerate analysis")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"analysis_event_id": eventID})
}

// latestAnalysisMarkdown finds the most recent "analysis" event's markdown
// body. events is already ordered oldest-first by Store.GetEvents, so the
// last match wins.
func latestAnalysisMarkdown(events []types.IncidentEvent) string {
	markdown := ""
	for _, ev := range events {
		if ev.EventType != types.EventAnalysis {
			continue
		}
		var payload types.AnalysisEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err == nil {
			markdown = payload.AnalysisMarkdown
		}
	}
	return markdown
}

// latestFinalSummary finds the most recent "final" event's execution
// summary. Decoding uses encoding/json rather than the store's go-faster/jx
// writer: this read path runs only on an operator-triggered regeneration
// request, not the hot ingestion path, and jx's own output is plain JSON.
func latestFinalSummary(events []types.IncidentEvent) (types.ExecutionSummary, bool) {
	var summary types.ExecutionSummary
	found := false
	for _, ev := range events {
		if ev.EventType != types.EventFinal {
			continue
		}
		var payload types.FinalEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err == nil {
			summary = payload.State
			found = true
		}
	}
	return summary, found
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
