package subscription

import (
	"github.com/juancristobaldev/lanovena-api/services/scheduler"

	"go.uber.org/fx"
)

var Module = fx.Module("subscription.module",
	fx.Provide(
		NewService,
		fx.Annotate(
			func(s *Service) scheduler.Sweeper { return s },
			fx.ResultTags(`group:"sweepers"`),
		),
		fx.Annotate(Models, fx.ResultTags(`group:"models"`)),
	),
)

func Models() []any {
	return []any{&GatewayEvent{}}
}
