package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/fleetward/remediator/internal/cerrors"
	"github.com/fleetward/remediator/pkg/ingress"
)

// handleAlertmanager decodes an alert-router batch document and hands it to
// the Ingress Adapter. A DBError from the adapter's fan-out answers with 503
// so the sender retries, per spec.md §5's backpressure rule; every other
// adapter error answers 500.
func (s *Server) handleAlertmanager(w http.ResponseWriter, r *http.Request) {
	var payload ingress.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "malformed webhook body")
		return
	}

	processed, err := s.adapter.Handle(r.Context(), payload)
	if err != nil {
		s.logger.Error("webhook batch failed", zap.Error(err))
		if kind, ok := cerrors.KindOf(err); ok && kind == cerrors.KindDBError {
			writeError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to process batch")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"processed": processed})
}
