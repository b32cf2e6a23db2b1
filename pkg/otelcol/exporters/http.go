package exporters

import (
	"context"
	"time"

	"github.com/juancristobaldev/lanovena-api/pkg/config"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
)

// ProvideHttp posts to the collector's default /v1/traces unless OTEL.ADDR
// carries a path.
func ProvideHttp(cfg *config.Config) (*otlptrace.Exporter, error) {
	ep, err := parseEndpoint(cfg.Otel.Addr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(ep.host),
		otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
	}
	if ep.path != "" {
		opts = append(opts, otlptracehttp.WithURLPath(ep.path))
	}
	if !ep.secure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	return otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
}
