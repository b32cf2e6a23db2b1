package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/juancristobaldev/lanovena-api/pkg/config"
	"github.com/juancristobaldev/lanovena-api/pkg/db"
	"github.com/juancristobaldev/lanovena-api/pkg/featureflags"
	"github.com/juancristobaldev/lanovena-api/pkg/gen"
	"github.com/juancristobaldev/lanovena-api/pkg/hashistack/secretmanager"
	"github.com/juancristobaldev/lanovena-api/pkg/hashistack/servicediscover"
	"github.com/juancristobaldev/lanovena-api/pkg/health"
	"github.com/juancristobaldev/lanovena-api/pkg/httpapi"
	"github.com/juancristobaldev/lanovena-api/pkg/lock"
	"github.com/juancristobaldev/lanovena-api/pkg/logger"
	"github.com/juancristobaldev/lanovena-api/pkg/otelcol"
	"github.com/juancristobaldev/lanovena-api/pkg/profiling"
	"github.com/juancristobaldev/lanovena-api/pkg/redis"
	"github.com/juancristobaldev/lanovena-api/pkg/sequence"
	"github.com/juancristobaldev/lanovena-api/pkg/server"
	"github.com/juancristobaldev/lanovena-api/pkg/task"
	"github.com/juancristobaldev/lanovena-api/services/auth"
	"github.com/juancristobaldev/lanovena-api/services/billing"
	"github.com/juancristobaldev/lanovena-api/services/finance"
	"github.com/juancristobaldev/lanovena-api/services/gateway"
	routes "github.com/juancristobaldev/lanovena-api/services/httpapi"
	"github.com/juancristobaldev/lanovena-api/services/quota"
	"github.com/juancristobaldev/lanovena-api/services/scheduler"
	"github.com/juancristobaldev/lanovena-api/services/subscription"
	"github.com/juancristobaldev/lanovena-api/services/tenant"
)

func main() {
	opts := []fx.Option{
		secretmanager.Module,
		config.Module,
		logger.Module,
		otelcol.Module,
		profiling.Module,
		db.Module,
		redis.Module,
		gen.Module,
		lock.Module,
		sequence.Module,
		task.Client,
		featureflags.Module,
		health.Module,
		httpapi.Module,
		auth.Module,
		tenant.Module,
		quota.Module,
		gateway.Module,
		subscription.Module,
		finance.Module,
		scheduler.Module,
		billing.Module,
		routes.Module,
		server.ProvideHTTPServer,
		server.ProvideGRPCServer,
		servicediscover.Module,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.AppEnv == "development" {
		return &fxevent.ZapLogger{Logger: logger}
	}
	return fxevent.NopLogger
})
