// Package httpapi wires the engine's three external HTTP surfaces — the
// alert-router webhook, the incident read/regenerate API, and a liveness
// probe — behind a chi router, matching the teacher's gateway-service router
// idiom (chi + cors). Handlers parse requests and encode responses only; no
// business logic lives here beyond decode -> adapter/store/composer -> encode.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/fleetward/remediator/pkg/ingress"
	"github.com/fleetward/remediator/pkg/types"
)

// Adapter fans a webhook batch out to the Dedup Controller.
type Adapter interface {
	Handle(ctx context.Context, payload ingress.WebhookPayload) (int, error)
}

// Store is the read surface the incident API needs.
type Store interface {
	ListIncidents(ctx context.Context, limit, offset int) ([]types.Incident, error)
	CountIncidents(ctx context.Context) (int, error)
	GetIncident(ctx context.Context, id string) (*types.Incident, error)
	GetEvents(ctx context.Context, incidentID string) ([]types.IncidentEvent, error)
	QuerySimilar(ctx context.Context, incident types.Incident) ([]types.PastIncident, error)
	Ping(ctx context.Context) error
}

// Composer regenerates an incident's analysis narrative on demand.
type Composer interface {
	Compose(ctx context.Context, incident types.Incident, state *types.ExecutionState, regenerated bool) (string, error)
}

// Counter reports how many entries a loaded table holds — satisfied by
// *pkg/runbook.Table and *pkg/toolset.Registry, both already exposing
// Count(), for the /healthz "Tool Registry loaded" check.
type Counter interface {
	Count() int
}

// Server holds the dependencies every handler needs.
type Server struct {
	adapter  Adapter
	store    Store
	composer Composer
	tools    Counter
	logger   *zap.Logger
}

// New builds a Server.
func New(adapter Adapter, store Store, composer Composer, tools Counter, logger *zap.Logger) *Server {
	return &Server{adapter: adapter, store: store, composer: composer, tools: tools, logger: logger}
}

// Router builds the chi router: CORS, request logging/recovery, and routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Post("/alertmanager", s.handleAlertmanager)
	r.Get("/api/incidents", s.handleListIncidents)
	r.Get("/api/incidents/{id}", s.handleGetIncident)
	r.Post("/api/incidents/{id}/regenerate-analysis", s.handleRegenerateAnalysis)
	r.Get("/healthz", s.handleHealthz)

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, req)
		s.logger.Info("http request",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
