// Package analysis implements the Analysis Composer: once a workflow run
// finishes, it queries similar past incidents, asks the narrator backend
// for a fixed-section markdown write-up, and persists it as the incident's
// analysis event. Grounded on spec.md §4.7.
package analysis

import (
	"context"

	"go.uber.org/zap"

	"github.com/fleetward/remediator/internal/cerrors"
	"github.com/fleetward/remediator/pkg/adjudicator"
	"github.com/fleetward/remediator/pkg/types"
)

// Store is the narrow persistence surface the composer needs.
type Store interface {
	QuerySimilar(ctx context.Context, incident types.Incident) ([]types.PastIncident, error)
	AppendEvent(ctx context.Context, incidentID string, eventType types.EventType, payload any) (string, error)
}

// Notifier delivers a best-effort critical-incident summary. A failed
// notification never blocks or unwinds persistence of the analysis event.
type Notifier interface {
	Notify(ctx context.Context, incident types.Incident, summary types.ExecutionSummary) error
}

// Composer composes and persists the post-incident narrative.
type Composer struct {
	store    Store
	narrator adjudicator.Narrator
	notifier Notifier // nil disables notification entirely
	logger   *zap.Logger
}

// New builds a Composer. notifier may be nil when no Slack webhook is
// configured.
func New(store Store, narrator adjudicator.Narrator, notifier Notifier, logger *zap.Logger) *Composer {
	return &Composer{store: store, narrator: narrator, notifier: notifier, logger: logger}
}

// Compose builds and persists the analysis event, returning its id (what
// spec.md §6's regenerate-analysis endpoint responds with), and persists it
// before attempting any notification, per spec.md §4.7's
// persist-then-best-effort-notify ordering. Satisfies pkg/dedup.Composer,
// which discards the returned id.
func (c *Composer) Compose(ctx context.Context, incident types.Incident, state *types.ExecutionState, regenerated bool) (string, error) {
	past, err := c.store.QuerySimilar(ctx, incident)
	if err != nil {
		return "", err
	}

	summary := state.Summary()
	markdown, err := c.narrator.Complete(ctx, buildPrompt(incident, summary, past))
	if err != nil {
		return "", cerrors.New(cerrors.KindLLMError, "compose analysis narrative", err).WithResource(incident.ID)
	}

	payload := types.AnalysisEventPayload{
		AnalysisMarkdown: markdown,
		RunbookID:        incident.RunbookID,
		Regenerated:      regenerated,
	}
	eventID, err := c.store.AppendEvent(ctx, incident.ID, types.EventAnalysis, payload)
	if err != nil {
		return "", err
	}

	if incident.Severity == "critical" && c.notifier != nil {
		if notifyErr := c.notifier.Notify(ctx, incident, summary); notifyErr != nil {
			c.logger.Warn("critical incident notification failed",
				zap.String("incident_id", incident.ID), zap.Error(notifyErr))
		}
	}

	return eventID, nil
}
