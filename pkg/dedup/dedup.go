// Package dedup implements the Dedup Controller: fingerprint computation,
// incident upsert, and a Postgres session-scoped advisory lock that
// single-flights concurrent processing of the same incident. Re-grounded
// from the teacher's Kubernetes-Lease-based DistributedLockManager contract
// (acquire/release, idempotent, contention-is-not-an-error) onto the
// Postgres pg_try_advisory_lock/pg_advisory_unlock primitive the
// specification calls for.
package dedup

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/fleetward/remediator/internal/cerrors"
	"github.com/fleetward/remediator/pkg/router"
	"github.com/fleetward/remediator/pkg/store"
	"github.com/fleetward/remediator/pkg/types"
)

// Runbooks resolves a runbook id to its loaded document.
type Runbooks interface {
	Get(id types.RunbookID) (*types.Runbook, bool)
}

// Engine drives a runbook's workflow for one alert.
type Engine interface {
	Run(ctx context.Context, rb *types.Runbook, alert types.Alert, mode types.Mode) *types.ExecutionState
}

// Composer composes and persists the post-incident analysis narrative.
// Implementations append their own "analysis" event; Controller never
// writes one directly. The returned event id is discarded here — it only
// matters to the on-demand regeneration endpoint.
type Composer interface {
	Compose(ctx context.Context, incident types.Incident, state *types.ExecutionState, regenerated bool) (string, error)
}

// Controller serializes incident processing through a fingerprint-keyed
// advisory lock and drives the engine + composer inside the locked scope.
type Controller struct {
	store    *store.Store
	runbooks Runbooks
	engine   Engine
	composer Composer
	mode     types.Mode
	logger   *zap.Logger
	cache    *fingerprintCache
}

// New builds a Controller. mode is the agent_mode every processed incident
// runs under (spec.md §6's AGENT_MODE).
func New(st *store.Store, runbooks Runbooks, engine Engine, composer Composer, mode types.Mode, logger *zap.Logger) *Controller {
	return &Controller{
		store:    st,
		runbooks: runbooks,
		engine:   engine,
		composer: composer,
		mode:     mode,
		logger:   logger,
		cache:    newFingerprintCache(1024),
	}
}

// ListenForInvalidation subscribes to the incident_upserts NOTIFY channel
// and drops the corresponding cache entry on every upsert, including ones
// issued by other processes. Callers run this in its own goroutine; it
// blocks until ctx is done or the listener's connection is closed.
func (c *Controller) ListenForInvalidation(ctx context.Context, notifications <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case fingerprint, ok := <-notifications:
			if !ok {
				return
			}
			c.cache.invalidate(fingerprint)
		}
	}
}

// Process runs the full per-alert pipeline: fingerprint, upsert, lock,
// route, execute, analyze, unlock. It never returns an error for a busy
// lock — that is recorded as a suppressed event, not a failure.
func (c *Controller) Process(ctx context.Context, alert types.Alert) error {
	fingerprint := alert.ComputeFingerprint()

	incidentID, err := c.store.UpsertIncident(ctx, fingerprint, store.IncidentFields{
		AlertName: alert.AlertName,
		Namespace: alert.Namespace(),
		Pod:       alert.Pod(),
		Node:      alert.Node(),
		Severity:  alert.Severity(),
		RunbookID: router.Resolve(alert),
		AgentMode: c.mode,
	})
	if err != nil {
		return err
	}
	c.cache.set(fingerprint, incidentID)

	if _, err := c.store.AppendEvent(ctx, incidentID, types.EventWebhookReceived, alert); err != nil {
		return err
	}

	conn, err := c.store.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	key := store.LockKey(fingerprint)
	acquired, err := c.store.TryAdvisoryLock(ctx, conn, key)
	if err != nil {
		return err
	}
	if !acquired {
		c.logger.Info("incident lock busy, suppressing", zap.String("fingerprint", fingerprint))
		_, err := c.store.AppendEvent(ctx, incidentID, types.EventSuppressed, types.SuppressedEventPayload{Reason: "lock_busy"})
		return err
	}

	return c.runLocked(ctx, conn, key, incidentID, fingerprint, alert)
}

// Reject records an alert the ingress adapter rejected for missing
// mandatory labels: the incident is still created (or matched by
// fingerprint) and a final event records the reason, but no lock is
// acquired and neither the engine nor the composer ever runs — there is no
// workflow to serialize and nothing yet to narrate. Satisfies spec.md §7's
// "InvalidAlert: workflow is skipped; a final event records the reason;
// response is still 200."
func (c *Controller) Reject(ctx context.Context, alert types.Alert, reason string) error {
	fingerprint := alert.ComputeFingerprint()

	incidentID, err := c.store.UpsertIncident(ctx, fingerprint, store.IncidentFields{
		AlertName: alert.AlertName,
		Namespace: alert.Namespace(),
		Pod:       alert.Pod(),
		Node:      alert.Node(),
		Severity:  alert.Severity(),
		RunbookID: types.RBUnknown,
		AgentMode: c.mode,
	})
	if err != nil {
		return err
	}
	c.cache.set(fingerprint, incidentID)

	if _, err := c.store.AppendEvent(ctx, incidentID, types.EventWebhookReceived, alert); err != nil {
		return err
	}

	state := types.NewExecutionState(alert, c.mode)
	state.ActionError = reason
	_, err = c.store.AppendEvent(ctx, incidentID, types.EventFinal, types.FinalEventPayload{
		RunbookID: types.RBUnknown,
		State:     state.Summary(),
	})
	return err
}

// runLocked executes the engine and composer within the locked scope,
// guaranteeing the lock releases on every exit path (success or error).
func (c *Controller) runLocked(ctx context.Context, conn *sql.Conn, key int64, incidentID, fingerprint string, alert types.Alert) (err error) {
	defer func() {
		if releaseErr := c.store.ReleaseAdvisoryLock(ctx, conn, key); releaseErr != nil {
			c.logger.Error("failed to release advisory lock", zap.String("fingerprint", fingerprint), zap.Error(releaseErr))
			if err == nil {
				err = releaseErr
			}
		}
	}()

	runbookID := router.Resolve(alert)
	rb, ok := c.runbooks.Get(runbookID)
	var state *types.ExecutionState
	if !ok {
		state = types.NewExecutionState(alert, c.mode)
	} else {
		state = c.engine.Run(ctx, rb, alert, c.mode)
	}

	if _, appendErr := c.store.AppendEvent(ctx, incidentID, types.EventFinal, types.FinalEventPayload{
		RunbookID: runbookID,
		State:     state.Summary(),
	}); appendErr != nil {
		return appendErr
	}

	incident, getErr := c.store.GetIncident(ctx, incidentID)
	if getErr != nil {
		return getErr
	}

	if _, composeErr := c.composer.Compose(ctx, *incident, state, false); composeErr != nil {
		c.logger.Error("analysis composer failed", zap.String("incident_id", incidentID), zap.Error(composeErr))
		return cerrors.New(cerrors.KindDBError, "compose analysis", composeErr).WithResource(incidentID)
	}

	return nil
}
