package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/juancristobaldev/lanovena-api/pkg/config"
	"github.com/juancristobaldev/lanovena-api/pkg/errutil"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	grpcauth "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/validator"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/v1"
	"google.golang.org/grpc/reflection"
)

var ProvideGRPCServer = fx.Module("grpc.server",
	fx.Provide(
		NewListener,
		WithOption,
		NewGRPCServer,
		health.NewServer,
	),
	fx.Invoke(
		StartGRPCServer,
	),
)

// GRPCParams carries the collaborators of the gRPC server. AuthFunc guards
// every method except the health and reflection services.
type GRPCParams struct {
	fx.In
	Config   *config.Config
	Tracer   trace.TracerProvider
	Meter    metric.MeterProvider
	AuthFunc grpcauth.AuthFunc `optional:"true"`
}

func NewListener(cfg *config.Config) (net.Listener, error) {
	return net.Listen("tcp", fmt.Sprintf(":%s", cfg.Grpc.Addr))
}

// publicMethod reports whether a call is served without a bearer token.
func publicMethod(_ context.Context, c interceptors.CallMeta) bool {
	switch c.Service {
	case healthpb.Health_ServiceDesc.ServiceName,
		"grpc.reflection.v1.ServerReflection",
		"grpc.reflection.v1alpha.ServerReflection":
		return true
	}
	return false
}

func WithOption(p GRPCParams) ([]grpc.ServerOption, error) {
	recoverOpt := recovery.WithRecoveryHandlerContext(func(ctx context.Context, v any) error {
		zap.L().Error("grpc handler panicked", zap.Any("panic", v))
		return errutil.ToGRPCError(errutil.Internal("internal error", nil))
	})

	unary := []grpc.UnaryServerInterceptor{recovery.UnaryServerInterceptor(recoverOpt)}
	stream := []grpc.StreamServerInterceptor{recovery.StreamServerInterceptor(recoverOpt)}

	if p.AuthFunc != nil {
		guarded := selector.MatchFunc(func(ctx context.Context, c interceptors.CallMeta) bool {
			return !publicMethod(ctx, c)
		})
		unary = append(unary, selector.UnaryServerInterceptor(grpcauth.UnaryServerInterceptor(p.AuthFunc), guarded))
		stream = append(stream, selector.StreamServerInterceptor(grpcauth.StreamServerInterceptor(p.AuthFunc), guarded))
	}

	unary = append(unary, validator.UnaryServerInterceptor(validator.WithFailFast()))
	stream = append(stream, validator.StreamServerInterceptor(validator.WithFailFast()))

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(stream...),
		WithStatsHandler(p.Tracer, p.Meter),
	}

	if p.Config.TLS.Enable {
		cert, err := LoadCertificate(p.Config.TLS.CertPath, p.Config.TLS.KeyPath)
		if err != nil {
			return nil, errutil.Configuration("load grpc certificate", err)
		}
		opts = append(opts, WithTLS(cert))
	}
	return opts, nil
}

func WithStatsHandler(tp trace.TracerProvider, mp metric.MeterProvider) grpc.ServerOption {
	return grpc.StatsHandler(
		otelgrpc.NewServerHandler(
			otelgrpc.WithTracerProvider(tp),
			otelgrpc.WithMeterProvider(mp),
		),
	)
}

func LoadCertificate(certPath, keyPath string) (*tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

func WithTLS(tls *tls.Certificate) grpc.ServerOption {
	return grpc.Creds(
		credentials.NewServerTLSFromCert(tls),
	)
}

func NewGRPCServer(opts []grpc.ServerOption, hs *health.Server) *grpc.Server {
	srv := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	return srv
}

func StartGRPCServer(lc fx.Lifecycle, lis net.Listener, srv *grpc.Server, hs *health.Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
			go func() {
				zap.L().Info("Starting gRPC server", zap.String("addr", lis.Addr().String()))
				if err := srv.Serve(lis); err != nil && err != grpc.ErrServerStopped {
					zap.L().Fatal("gRPC server exited", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			zap.L().Info("Stopping gRPC server")
			hs.Shutdown()
			srv.GracefulStop()
			return nil
		},
	})
}
