// Package telemetry wires the OpenTelemetry SDK: an OTLP exporter when
// OTEL_EXPORTER_OTLP_ENDPOINT is configured, a no-op tracer provider
// otherwise. The workflow engine wraps each step in a span regardless;
// whether those spans go anywhere is purely a matter of this
// package's setup.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/fleetward/remediator/internal/config"
)

// Shutdown flushes and stops the tracer provider; a no-op when telemetry
// was never enabled.
type Shutdown func(context.Context) error

// Setup installs the global tracer provider and returns a tracer scoped to
// the engine, plus a shutdown func to call on process exit.
func Setup(ctx context.Context, cfg config.TelemetryConfig) (trace.Tracer, Shutdown, error) {
	if cfg.OTLPEndpoint == "" {
		provider := noop.NewTracerProvider()
		otel.SetTracerProvider(provider)
		return provider.Tracer("remediator"), func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName("remediator")))
	if err != nil {
		return nil, nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return provider.Tracer("remediator"), provider.Shutdown, nil
}
