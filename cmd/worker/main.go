package main

import (
	"log"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/juancristobaldev/lanovena-api/pkg/config"
	"github.com/juancristobaldev/lanovena-api/pkg/db"
	"github.com/juancristobaldev/lanovena-api/pkg/featureflags"
	"github.com/juancristobaldev/lanovena-api/pkg/gen"
	"github.com/juancristobaldev/lanovena-api/pkg/hashistack/secretmanager"
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
	"github.com/juancristobaldev/lanovena-api/services/billing"
	"github.com/juancristobaldev/lanovena-api/services/finance"
	"github.com/juancristobaldev/lanovena-api/services/gateway"
	"github.com/juancristobaldev/lanovena-api/services/scheduler"
	"github.com/juancristobaldev/lanovena-api/services/subscription"
	"github.com/juancristobaldev/lanovena-api/services/tenant"
)

// The worker consumes gateway confirmations and queued sweeps, and owns the
// cron timers. Its HTTP server only serves probes and /metrics.
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
		featureflags.Module,
		health.Module,
		httpapi.Module,
		tenant.Module,
		gateway.Module,
		subscription.Module,
		finance.Module,
		scheduler.Module,
		scheduler.Cron,
		billing.Module,
		task.Server,
		fx.Invoke(registerHandlers),
		server.ProvideHTTPServer,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}

func registerHandlers(mux *asynq.ServeMux, jobs *billing.Jobs, sched *scheduler.Scheduler) {
	jobs.Register(mux)
	sched.Register(mux)
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.AppEnv == "development" {
		return &fxevent.ZapLogger{Logger: logger}
	}
	return fxevent.NopLogger
})
