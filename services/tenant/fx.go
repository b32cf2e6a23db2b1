package tenant

import (
	"go.uber.org/fx"
)

var Module = fx.Module("tenant.module",
	fx.Provide(
		NewService,
		func(s *Service) *Store { return s.Store() },
		fx.Annotate(Models, fx.ResultTags(`group:"models"`)),
	),
)

// Models lists the tables this module owns.
func Models() []any {
	return []any{&Tenant{}, &Player{}, &Category{}, &Coach{}}
}
