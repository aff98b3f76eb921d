// Package tracing configures the OpenTelemetry tracer provider shared by the scoring engine and the reaper.
package tracing

import (
	"context"
	"github.com/myrjola/hotline/internal/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"io"
	"log/slog"
	"time"
)

const batchTimeout = 5 * time.Second

type Config struct {
	ServiceName string
	// Enabled exports spans as JSON lines to Writer. When false spans are sampled but dropped.
	Enabled bool
	Writer  io.Writer
}

// NewProvider creates a tracer provider and installs it as the global provider.
//
// The returned provider must be shut down to flush buffered spans.
func NewProvider(ctx context.Context, cfg Config, logger *slog.Logger) (*sdktrace.TracerProvider, error) {
	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.Enabled {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(cfg.Writer))
		if err != nil {
			return nil, errors.Wrap(err, "create stdout trace exporter")
		}
		opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(batchTimeout)))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	logger.LogAttrs(ctx, slog.LevelDebug, "tracing initialized",
		slog.String("service", cfg.ServiceName), slog.Bool("export", cfg.Enabled))
	return tp, nil
}
