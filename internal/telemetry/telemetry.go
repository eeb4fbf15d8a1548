// Package telemetry wires an OpenTelemetry tracer provider with an
// OTLP-over-gRPC exporter. Only the gRPC exporter is wired; nothing in
// this process needs a second transport.
package telemetry

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/justengland/gatekeeper/internal/config"
)

// Tracer wraps the process's tracer provider and exposes span helpers the
// orchestrator wraps its job dispatches in.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	logger   zerolog.Logger
}

// New builds and registers a tracer provider. When cfg.Enabled is false,
// the returned Tracer still answers Start/End calls but the provider has
// no span processor, so spans are created and discarded at negligible
// cost — callers never need an enabled/disabled branch of their own.
func New(ctx context.Context, cfg config.OtelConfig, logger zerolog.Logger) (*Tracer, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleFraction)),
	}

	if cfg.Enabled {
		exporter, err := newGRPCExporter(ctx, cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("build otlp exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)

	logger.Info().
		Bool("enabled", cfg.Enabled).
		Str("endpoint", cfg.Endpoint).
		Str("service", cfg.ServiceName).
		Msg("telemetry tracer initialized")

	return &Tracer{
		provider: provider,
		tracer:   provider.Tracer("gatekeeper"),
		logger:   logger,
	}, nil
}

func newGRPCExporter(ctx context.Context, endpoint string) (*otlptrace.Exporter, error) {
	client := otlptracegrpc.NewClient(
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	return otlptrace.New(ctx, client)
}

// Start begins a span named name carrying attrs. Attribute values must
// never include a DSN or password.
func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Shutdown flushes and stops the tracer provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}
