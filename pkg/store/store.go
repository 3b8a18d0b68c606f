// Package store implements the engine's relational persistence: the
// incidents/incident_events tables and the fingerprint-keyed advisory lock
// facility, over a pgx-backed sqlx handle in the shape the teacher's
// WorkflowRepository uses.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/go-faster/jx"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fleetward/remediator/internal/cerrors"
	"github.com/fleetward/remediator/pkg/types"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open builds a sqlx handle over pgx's database/sql driver.
func Open(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, cerrors.New(cerrors.KindDBError, "open database", err)
	}
	return db, nil
}

// Migrate applies every pending migration embedded under migrations/.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return cerrors.New(cerrors.KindDBError, "set migration dialect", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return cerrors.New(cerrors.KindDBError, "run migrations", err)
	}
	return nil
}

var queryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "remediator",
	Subsystem: "store",
	Name:      "query_duration_seconds",
	Help:      "Latency of store queries by operation.",
	Buckets:   prometheus.DefBuckets,
}, []string{"operation"})

var lockContention = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "remediator",
	Subsystem: "store",
	Name:      "advisory_lock_busy_total",
	Help:      "Count of try_advisory_lock calls that found the lock already held.",
}, []string{})

func init() {
	prometheus.MustRegister(queryDuration, lockContention)
}

func observe(operation string) func() {
	timer := prometheus.NewTimer(queryDuration.WithLabelValues(operation))
	return func() { timer.ObserveDuration() }
}

// Store wraps a database handle with the engine's fixed query surface.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewStore builds a Store over db, logging at logger.
func NewStore(db *sqlx.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// LockKey hashes a fingerprint into the 64-bit key Postgres advisory locks
// key on, per spec.md §4.6.
func LockKey(fingerprint string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(fingerprint))
	return int64(h.Sum64())
}

// IncidentFields is the set of columns UpsertIncident updates on conflict.
type IncidentFields struct {
	AlertName string
	Namespace string
	Pod       string
	Node      string
	Severity  string
	RunbookID types.RunbookID
	AgentMode types.Mode
}

// UpsertIncident inserts a new incident or, on a fingerprint collision,
// updates the mutable columns spec.md §4.6 names and returns its id.
func (s *Store) UpsertIncident(ctx context.Context, fingerprint string, f IncidentFields) (string, error) {
	defer observe("upsert_incident")()

	id := uuid.NewString()
	const q = `
		INSERT INTO incidents (id, fingerprint, alertname, namespace, pod, node, severity, runbook_id, status, agent_mode)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'open', $9)
		ON CONFLICT (fingerprint) DO UPDATE SET
			alertname  = EXCLUDED.alertname,
			namespace  = EXCLUDED.namespace,
			pod        = EXCLUDED.pod,
			node       = EXCLUDED.node,
			severity   = EXCLUDED.severity,
			updated_at = now()
		RETURNING id`

	var gotID string
	err := s.db.QueryRowxContext(ctx, q, id, fingerprint, f.AlertName, f.Namespace, f.Pod, f.Node, f.Severity, f.RunbookID, f.AgentMode).Scan(&gotID)
	if err != nil {
		return "", cerrors.New(cerrors.KindDBError, "upsert incident", err).WithResource(fingerprint)
	}
	return gotID, nil
}

// AppendEvent writes one append-only row to incident_events and returns
// its id. A final event's payload is encoded with go-faster/jx; every other
// payload goes through encoding/json (see encodePayload).
func (s *Store) AppendEvent(ctx context.Context, incidentID string, eventType types.EventType, payload any) (string, error) {
	defer observe("append_event")()

	body, err := encodePayload(payload)
	if err != nil {
		return "", cerrors.New(cerrors.KindDBError, "encode event payload", err).WithResource(incidentID)
	}

	id := uuid.NewString()
	const q = `INSERT INTO incident_events (id, incident_id, event_type, payload) VALUES ($1, $2, $3, $4)`
	if _, err := s.db.ExecContext(ctx, q, id, incidentID, string(eventType), body); err != nil {
		return "", cerrors.New(cerrors.KindDBError, "append event", err).WithResource(incidentID)
	}
	return id, nil
}

// encodePayload is the event-log hot path: a final event carries the
// largest, most frequently written payload (the full step/LLM trace), so it
// is built with go-faster/jx directly rather than paying encoding/json's
// reflection cost on every workflow completion. Every other event type is
// small and infrequent enough that encoding/json's ergonomics win.
func encodePayload(payload any) ([]byte, error) {
	if final, ok := payload.(types.FinalEventPayload); ok {
		return encodeFinalEventPayload(final), nil
	}
	return json.Marshal(payload)
}

func encodeFinalEventPayload(p types.FinalEventPayload) []byte {
	e := jx.Encoder{}
	e.ObjStart()
	e.FieldStart("runbook_id")
	e.Str(string(p.RunbookID))
	e.FieldStart("state")
	encodeExecutionSummary(&e, p.State)
	e.ObjEnd()
	return e.Bytes()
}

func encodeExecutionSummary(e *jx.Encoder, s types.ExecutionSummary) {
	e.ObjStart()
	if s.ActionTaken != "" {
		e.FieldStart("action_taken")
		e.Str(s.ActionTaken)
	}
	if s.ActionRecommended != "" {
		e.FieldStart("action_recommended")
		e.Str(s.ActionRecommended)
	}
	if s.ActionError != "" {
		e.FieldStart("action_error")
		e.Str(s.ActionError)
	}
	e.FieldStart("rb_steps")
	e.ArrStart()
	for _, step := range s.StepTraces {
		encodeStepTrace(e, step)
	}
	e.ArrEnd()
	e.FieldStart("llm_trace")
	e.ArrStart()
	for _, call := range s.LLMTrace {
		encodeLLMCallRecord(e, call)
	}
	e.ArrEnd()
	e.ObjEnd()
}

func encodeStepTrace(e *jx.Encoder, step types.StepTrace) {
	e.ObjStart()
	e.FieldStart("action_id")
	e.Str(step.ActionID)
	if step.ToolName != "" {
		e.FieldStart("tool_name")
		e.Str(step.ToolName)
	}
	if len(step.Inputs) > 0 {
		if raw, err := json.Marshal(step.Inputs); err == nil {
			e.FieldStart("inputs")
			e.Raw(raw)
		}
	}
	if step.GatedOut {
		e.FieldStart("gated_out")
		e.Bool(true)
	}
	if step.Reason != "" {
		e.FieldStart("reason")
		e.Str(step.Reason)
	}
	if step.Result != nil {
		e.FieldStart("result")
		e.ObjStart()
		e.FieldStart("ok")
		e.Bool(step.Result.OK)
		if len(step.Result.Fields) > 0 {
			if raw, err := json.Marshal(step.Result.Fields); err == nil {
				e.FieldStart("fields")
				e.Raw(raw)
			}
		}
		if step.Result.Error != "" {
			e.FieldStart("error")
			e.Str(step.Result.Error)
		}
		e.ObjEnd()
	}
	e.ObjEnd()
}

func encodeLLMCallRecord(e *jx.Encoder, call types.LLMCallRecord) {
	e.ObjStart()
	e.FieldStart("expected_tool")
	e.Str(call.ExpectedTool)
	if call.ReturnedTool != "" {
		e.FieldStart("returned_tool")
		e.Str(call.ReturnedTool)
	}
	if call.Overridden {
		e.FieldStart("llm_override")
		e.Bool(true)
	}
	if call.Error != "" {
		e.FieldStart("error")
		e.Str(call.Error)
	}
	e.ObjEnd()
}

// GetIncident reads one incident by id.
func (s *Store) GetIncident(ctx context.Context, id string) (*types.Incident, error) {
	defer observe("get_incident")()

	var inc types.Incident
	const q = `SELECT id, created_at, updated_at, fingerprint, alertname, namespace, pod, node, severity, runbook_id, status, agent_mode, summary FROM incidents WHERE id = $1`
	if err := s.db.GetContext(ctx, &inc, q, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, cerrors.New(cerrors.KindDBError, "get incident", fmt.Errorf("incident not found")).WithResource(id)
		}
		return nil, cerrors.New(cerrors.KindDBError, "get incident", err).WithResource(id)
	}
	return &inc, nil
}

// ListIncidents returns a page of incidents, most recent first.
func (s *Store) ListIncidents(ctx context.Context, limit, offset int) ([]types.Incident, error) {
	defer observe("list_incidents")()

	var incidents []types.Incident
	const q = `SELECT id, created_at, updated_at, fingerprint, alertname, namespace, pod, node, severity, runbook_id, status, agent_mode, summary FROM incidents ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	if err := s.db.SelectContext(ctx, &incidents, q, limit, offset); err != nil {
		return nil, cerrors.New(cerrors.KindDBError, "list incidents", err)
	}
	return incidents, nil
}

// CountIncidents returns the total row count backing ListIncidents' paging.
func (s *Store) CountIncidents(ctx context.Context) (int, error) {
	defer observe("count_incidents")()

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT count(*) FROM incidents`); err != nil {
		return 0, cerrors.New(cerrors.KindDBError, "count incidents", err)
	}
	return total, nil
}

// Ping verifies the underlying connection pool can reach the database, for
// the /healthz liveness check.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return cerrors.New(cerrors.KindDBError, "ping database", err)
	}
	return nil
}

// GetEvents returns an incident's full event log, totally ordered by (ts, id).
func (s *Store) GetEvents(ctx context.Context, incidentID string) ([]types.IncidentEvent, error) {
	defer observe("get_events")()

	var events []types.IncidentEvent
	const q = `SELECT id, incident_id, ts, event_type, payload FROM incident_events WHERE incident_id = $1 ORDER BY ts, id`
	if err := s.db.SelectContext(ctx, &events, q, incidentID); err != nil {
		return nil, cerrors.New(cerrors.KindDBError, "get events", err).WithResource(incidentID)
	}
	return events, nil
}

// QuerySimilar returns up to 50 past incidents matching the current
// incident by alertname, or by namespace+pod, or by node, excluding the
// current incident, newest first, per spec.md §4.7. action_taken/
// action_recommended/action_error are projected from each row's most recent
// "final" event payload.
func (s *Store) QuerySimilar(ctx context.Context, incident types.Incident) ([]types.PastIncident, error) {
	defer observe("query_similar")()

	const q = `
		SELECT i.id, i.alertname, i.namespace, i.pod, i.runbook_id, i.created_at,
		       COALESCE(f.action_taken, '') AS action_taken,
		       COALESCE(f.action_recommended, '') AS action_recommended,
		       COALESCE(f.action_error, '') AS action_error
		FROM incidents i
		LEFT JOIN LATERAL (
			SELECT payload->'state'->>'action_taken' AS action_taken,
			       payload->'state'->>'action_recommended' AS action_recommended,
			       payload->'state'->>'action_error' AS action_error
			FROM incident_events
			WHERE incident_id = i.id AND event_type = 'final'
			ORDER BY ts DESC LIMIT 1
		) f ON true
		WHERE i.id != $1
		  AND (i.alertname = $2 OR (i.namespace = $3 AND i.pod = $4) OR (i.node != '' AND i.node = $5))
		ORDER BY i.created_at DESC
		LIMIT 50`

	var rows []types.PastIncident
	if err := s.db.SelectContext(ctx, &rows, q, incident.ID, incident.AlertName, incident.Namespace, incident.Pod, incident.Node); err != nil {
		return nil, cerrors.New(cerrors.KindDBError, "query similar incidents", err).WithResource(incident.ID)
	}
	return rows, nil
}

// TryAdvisoryLock attempts a non-blocking, session-scoped Postgres advisory
// lock on key. The lock is held for the lifetime of the underlying
// connection checked out from the pool, so callers must release it from the
// same *sql.Conn obtained alongside the lock — see Conn.
func (s *Store) TryAdvisoryLock(ctx context.Context, conn *sql.Conn, key int64) (bool, error) {
	defer observe("try_advisory_lock")()

	var acquired bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&acquired); err != nil {
		return false, cerrors.New(cerrors.KindDBError, "try advisory lock", err)
	}
	if !acquired {
		lockContention.WithLabelValues().Inc()
	}
	return acquired, nil
}

// ReleaseAdvisoryLock releases a lock acquired with TryAdvisoryLock on the
// same connection.
func (s *Store) ReleaseAdvisoryLock(ctx context.Context, conn *sql.Conn, key int64) error {
	defer observe("release_advisory_lock")()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, key); err != nil {
		return cerrors.New(cerrors.KindDBError, "release advisory lock", err)
	}
	return nil
}

// Conn checks out a single dedicated connection for a session-scoped
// advisory lock's acquire/release pair.
func (s *Store) Conn(ctx context.Context) (*sql.Conn, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, cerrors.New(cerrors.KindDBError, "checkout connection", err)
	}
	return conn, nil
}
