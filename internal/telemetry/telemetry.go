// Package telemetry sets up OpenTelemetry tracing with a Jaeger exporter.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// Controller owns the global tracer provider
type Controller struct {
	traceProvider *sdktrace.TracerProvider
}

// Init installs a tracer provider exporting to the Jaeger collector at endpoint.
// With an empty endpoint tracing stays on the global no-op provider.
func Init(endpoint, serviceName string) (*Controller, error) {
	if endpoint == "" {
		return &Controller{}, nil
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(
		jaeger.WithEndpoint(endpoint),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create jaeger exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return &Controller{traceProvider: tp}, nil
}

// Enabled reports whether spans are exported
func (c *Controller) Enabled() bool {
	return c.traceProvider != nil
}

// Shutdown flushes pending spans
func (c *Controller) Shutdown(ctx context.Context) error {
	if c.traceProvider == nil {
		return nil
	}
	return c.traceProvider.Shutdown(ctx)
}
