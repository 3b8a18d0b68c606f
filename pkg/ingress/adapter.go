package ingress

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fleetward/remediator/pkg/types"
)

// Processor drives the Dedup Controller's full pipeline for one alert.
type Processor interface {
	Process(ctx context.Context, alert types.Alert) error
}

// Rejector records an alert the adapter rejected before it ever reached
// the Dedup Controller's lock/engine/composer path.
type Rejector interface {
	Reject(ctx context.Context, alert types.Alert, reason string) error
}

// Adapter fans a webhook batch out into per-alert tasks bounded by a
// configured concurrency limit, per spec.md §5's "each batch is fanned out
// into per-Alert tasks that may run in parallel."
type Adapter struct {
	processor   Processor
	rejector    Rejector
	concurrency int
	logger      *zap.Logger
}

// New builds an Adapter. concurrency bounds how many alerts from one batch
// are processed at once; values <= 0 mean unbounded.
func New(processor Processor, rejector Rejector, concurrency int, logger *zap.Logger) *Adapter {
	return &Adapter{processor: processor, rejector: rejector, concurrency: concurrency, logger: logger}
}

// Handle normalizes and validates every alert in payload, dispatching
// valid ones to the Processor and invalid ones to the Rejector, and
// returns the count that reached either path. A DBError from either one
// aborts the remaining fan-out and surfaces to the caller, who is expected
// to answer the webhook request with a 5xx per spec.md §5's backpressure
// rule.
func (a *Adapter) Handle(ctx context.Context, payload WebhookPayload) (processed int, err error) {
	g, gctx := errgroup.WithContext(ctx)
	if a.concurrency > 0 {
		g.SetLimit(a.concurrency)
	}

	var mu sync.Mutex
	for _, raw := range payload.Alerts {
		g.Go(func() error {
			alert := normalize(raw)

			if validationErr := validateAlert(alert); validationErr != nil {
				a.logger.Info("rejecting invalid alert", zap.String("alertname", alert.AlertName), zap.Error(validationErr))
				if rejectErr := a.rejector.Reject(gctx, alert, validationErr.Error()); rejectErr != nil {
					return rejectErr
				}
				mu.Lock()
				processed++
				mu.Unlock()
				return nil
			}

			if processErr := a.processor.Process(gctx, alert); processErr != nil {
				return processErr
			}
			mu.Lock()
			processed++
			mu.Unlock()
			return nil
		})
	}

	if waitErr := g.Wait(); waitErr != nil {
		return processed, waitErr
	}
	return processed, nil
}
