package analysis

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/fleetward/remediator/pkg/types"
)

// SlackNotifier posts a short critical-incident summary to a configured
// incoming webhook. It never blocks incident persistence: callers are
// expected to treat a non-nil error as log-and-continue.
type SlackNotifier struct {
	webhookURL string
}

// NewSlackNotifier builds a SlackNotifier, or nil if webhookURL is empty —
// callers pass the nil *SlackNotifier through Composer's Notifier field as
// a literal nil interface by checking the string first.
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	if webhookURL == "" {
		return nil
	}
	return &SlackNotifier{webhookURL: webhookURL}
}

func (n *SlackNotifier) Notify(ctx context.Context, incident types.Incident, summary types.ExecutionSummary) error {
	action := summary.ActionTaken
	if action == "" {
		action = summary.ActionRecommended
	}
	if action == "" {
		action = "none"
	}

	text := fmt.Sprintf(":rotating_light: *Critical incident %s* — `%s` on `%s/%s`\nRunbook: %s\nAction: %s",
		incident.ID, incident.AlertName, incident.Namespace, incident.Pod, incident.RunbookID, action)

	msg := &slack.WebhookMessage{Text: text}
	return slack.PostWebhookContext(ctx, n.webhookURL, msg)
}
