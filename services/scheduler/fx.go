package scheduler

import (
	"context"

	"github.com/juancristobaldev/lanovena-api/pkg/config"

	"go.uber.org/fx"
)

// Module provides the Scheduler without starting it. Processes that own the
// timers add Cron.
var Module = fx.Module("scheduler.module",
	fx.Provide(
		New,
		fx.Annotate(Models, fx.ResultTags(`group:"models"`)),
	),
)

var Cron = fx.Module("scheduler.cron",
	fx.Invoke(startCron),
)

func startCron(lc fx.Lifecycle, cfg *config.Config, s *Scheduler) {
	if !cfg.Scheduler.Enabled {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.Start()
			return nil
		},
		OnStop: s.Stop,
	})
}

func Models() []any {
	return []any{&SweepRun{}}
}
