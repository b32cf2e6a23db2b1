package otelcol

import (
	"context"

	"github.com/juancristobaldev/lanovena-api/pkg/config"
	"github.com/juancristobaldev/lanovena-api/pkg/otelcol/exporters"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module installs the global tracer and meter providers. Spans are exported
// over OTLP when OTEL.ADDR is set and dropped otherwise.
var Module = fx.Module("otelcol",
	fx.Provide(
		NewResource,
		NewTracerProvider,
		NewMeterProvider,
	),
)

func NewResource(cfg *config.Config) (*resource.Resource, error) {
	return resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.AppName),
		attribute.String("service.version", cfg.AppVersion),
		attribute.String("deployment.environment", cfg.AppEnv),
	))
}

func NewTracerProvider(lc fx.Lifecycle, cfg *config.Config, res *resource.Resource) (oteltrace.TracerProvider, error) {
	opts := []trace.TracerProviderOption{trace.WithResource(res)}

	if cfg.Otel.Addr != "" {
		var (
			exporter trace.SpanExporter
			err      error
		)
		if cfg.Otel.Protocol == "http" {
			exporter, err = exporters.ProvideHttp(cfg)
		} else {
			exporter, err = exporters.ProvideGrpc(cfg)
		}
		if err != nil {
			return nil, err
		}
		opts = append(opts, trace.WithBatcher(exporter))
		zap.L().Info("tracing enabled", zap.String("addr", cfg.Otel.Addr), zap.String("protocol", cfg.Otel.Protocol))
	}

	tp := trace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
	return tp, nil
}

func NewMeterProvider(lc fx.Lifecycle, res *resource.Resource) otelmetric.MeterProvider {
	mp := metric.NewMeterProvider(metric.WithResource(res))
	otel.SetMeterProvider(mp)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return mp.Shutdown(ctx)
		},
	})
	return mp
}
