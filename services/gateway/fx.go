package gateway

import (
	"github.com/juancristobaldev/lanovena-api/pkg/config"

	"go.uber.org/fx"
)

var Module = fx.Module("gateway.module",
	fx.Provide(
		func(cfg *config.Config) *Signer { return NewSigner(cfg.Gateway.SecretKey) },
		fx.Annotate(NewHTTPClient, fx.As(new(Client))),
	),
)
