package adjudicator

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/fleetward/remediator/pkg/types"
)

// breakerBackend wraps a Backend with a circuit breaker: repeated failures
// trip the breaker open, short-circuiting straight to an error (which
// Adjudicate turns into the label-derived fallback) instead of waiting out
// further backend timeouts.
type breakerBackend struct {
	inner   Backend
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerBackend wraps inner with a circuit breaker that opens after 5
// consecutive failures and probes again after 30s.
func NewBreakerBackend(inner Backend) Backend {
	settings := gobreaker.Settings{
		Name:        "adjudicator",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &breakerBackend{inner: inner, breaker: gobreaker.NewCircuitBreaker(settings)}
}

func (b *breakerBackend) ChooseTool(ctx context.Context, req types.AdjudicateRequest) (types.ToolCall, error) {
	result, err := b.breaker.Execute(func() (any, error) {
		return b.inner.ChooseTool(ctx, req)
	})
	if err != nil {
		return types.ToolCall{}, fmt.Errorf("adjudicator backend: %w", err)
	}
	call, ok := result.(types.ToolCall)
	if !ok {
		return types.ToolCall{}, fmt.Errorf("adjudicator backend returned an unexpected result type")
	}
	return call, nil
}
