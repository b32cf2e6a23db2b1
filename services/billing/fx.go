package billing

import (
	"github.com/juancristobaldev/lanovena-api/services/subscription"

	"go.uber.org/fx"
)

var Module = fx.Module("billing.module",
	fx.Provide(
		NewWebhooks,
		NewJobs,
		func(s *subscription.Service) Confirmer { return s },
	),
)
