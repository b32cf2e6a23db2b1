package quota

import (
	"github.com/juancristobaldev/lanovena-api/services/tenant"

	"go.uber.org/fx"
)

var Module = fx.Module("quota.module",
	fx.Provide(
		func() (*Limits, error) { return NewLimits(DefaultPlanLimits) },
		func(store *tenant.Store, limits *Limits) (*Enforcer, error) {
			return NewEnforcer(store, limits, DefaultFeatures)
		},
	),
)
