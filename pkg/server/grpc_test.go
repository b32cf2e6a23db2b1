package server

import (
	"context"
	"net"
	"testing"

	"github.com/juancristobaldev/lanovena-api/pkg/config"
	"github.com/juancristobaldev/lanovena-api/pkg/errutil"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/v1"
	"google.golang.org/grpc/test/bufconn"
)

func TestPublicMethod(t *testing.T) {
	ctx := context.Background()
	assert.True(t, publicMethod(ctx, interceptors.CallMeta{Service: "grpc.health.v1.Health", Method: "Check"}))
	assert.True(t, publicMethod(ctx, interceptors.CallMeta{Service: "grpc.reflection.v1.ServerReflection"}))
	assert.False(t, publicMethod(ctx, interceptors.CallMeta{Service: "lanovena.v1.Tenants", Method: "Get"}))
}

func TestHealthServedWithoutCredentials(t *testing.T) {
	denyAll := func(ctx context.Context) (context.Context, error) {
		return nil, errutil.ToGRPCError(errutil.MissingCredential("bearer token required"))
	}

	opts, err := WithOption(GRPCParams{
		Config:   &config.Config{},
		Tracer:   tracenoop.NewTracerProvider(),
		Meter:    metricnoop.NewMeterProvider(),
		AuthFunc: denyAll,
	})
	require.NoError(t, err)

	hs := health.NewServer()
	srv := NewGRPCServer(opts, hs)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
