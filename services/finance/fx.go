package finance

import (
	"github.com/juancristobaldev/lanovena-api/services/scheduler"
	"github.com/juancristobaldev/lanovena-api/services/subscription"

	"go.uber.org/fx"
)

var Module = fx.Module("finance.module",
	fx.Provide(
		NewService,
		func(s *Service) subscription.FeeSettler { return s },
		fx.Annotate(
			func(s *Service) scheduler.Sweeper { return s },
			fx.ResultTags(`group:"sweepers"`),
		),
		fx.Annotate(Models, fx.ResultTags(`group:"models"`)),
	),
)

func Models() []any {
	return []any{&MonthlyFee{}}
}
