package main

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/opensource-finance/amlboard/internal/domain"
)

// setupTracing installs an SDK tracer provider when tracing is enabled, so
// spans carry real trace ids that show up in X-Trace-ID and request logs.
// No exporter is configured.
func setupTracing(cfg domain.TracingConfig) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName)))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)

	slog.Info("tracing enabled", "service", cfg.ServiceName)
	return tp.Shutdown, nil
}
