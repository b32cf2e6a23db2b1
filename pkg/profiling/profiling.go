package profiling

import (
	"context"

	"github.com/juancristobaldev/lanovena-api/pkg/config"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module pushes continuous profiles to Pyroscope when PYROSCOPE.ADDR is set.
var Module = fx.Module("profiling", fx.Invoke(StartProfiling))

func NewConfig(c *config.Config) pyroscope.Config {
	return pyroscope.Config{
		ApplicationName: c.AppName,
		ServerAddress:   c.Pyroscope.Addr,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
		Tags: map[string]string{
			"service_name": c.AppName,
			"env":          c.AppEnv,
			"version":      c.AppVersion,
		},
	}
}

func StartProfiling(lc fx.Lifecycle, c *config.Config) error {
	if c.Pyroscope.Addr == "" {
		return nil
	}

	var profiler *pyroscope.Profiler
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			zap.L().Info("starting pyroscope", zap.String("app_name", c.AppName), zap.String("pyroscope_addr", c.Pyroscope.Addr))
			p, err := pyroscope.Start(NewConfig(c))
			if err != nil {
				return err
			}
			profiler = p
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if profiler == nil {
				return nil
			}
			return profiler.Stop()
		},
	})
	return nil
}
