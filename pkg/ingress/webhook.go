// Package ingress implements the Ingress Adapter: thin translation from
// the alert router's webhook batch document into normalized alerts, fanned
// out to the Dedup Controller with bounded concurrency. Grounded on
// spec.md §4.10/§5/§6.
package ingress

import (
	"time"

	"github.com/fleetward/remediator/pkg/types"
)

// WebhookPayload is the alert-router batch document decoded from the
// POST /alertmanager request body.
type WebhookPayload struct {
	Alerts []RawAlert `json:"alerts"`
}

// RawAlert is one entry of the batch, in the alert router's wire shape.
type RawAlert struct {
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
	StartsAt    time.Time         `json:"startsAt"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	Status      string            `json:"status"`
}

// normalize maps one wire-shape alert onto the engine's internal Alert,
// reading alertname out of the conventional "alertname" label.
func normalize(raw RawAlert) types.Alert {
	return types.Alert{
		AlertName:   raw.Labels["alertname"],
		Labels:      raw.Labels,
		Annotations: raw.Annotations,
		StartsAt:    raw.StartsAt,
		Fingerprint: raw.Fingerprint,
		Status:      types.AlertStatus(raw.Status),
	}
}
