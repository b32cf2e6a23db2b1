package auth

import (
	grpcauth "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.module",
	fx.Provide(
		NewTokens,
		NewHierarchy,
		NewGuard,
		NewService,
		func(g *Guard) grpcauth.AuthFunc { return g.GRPCAuthFunc },
		fx.Annotate(Models, fx.ResultTags(`group:"models"`)),
	),
)

func Models() []any {
	return []any{&User{}}
}
