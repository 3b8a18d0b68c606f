package httpapi

import "net/http"

// handleHealthz answers spec.md §6's `GET /healthz`: 200 only once the
// database is reachable and the Tool Registry has at least one tool loaded.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	if s.tools.Count() == 0 {
		writeError(w, http.StatusServiceUnavailable, "tool registry not loaded")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
