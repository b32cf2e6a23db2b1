package httpapi

import (
	"github.com/juancristobaldev/lanovena-api/pkg/config"
	"github.com/juancristobaldev/lanovena-api/pkg/health"
	"github.com/juancristobaldev/lanovena-api/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

// Module provides the gin engine with the shared middleware, probes and
// /metrics. Route packages register on it with fx.Invoke.
var Module = fx.Module("httpapi",
	fx.Provide(NewEngine),
	fx.Invoke(registerOpsEndpoints),
)

func NewEngine(cfg *config.Config) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.Logger(),
		middleware.Error(),
	)
	r.HandleMethodNotAllowed = true
	return r
}

func registerOpsEndpoints(r *gin.Engine, h health.HealthService) {
	r.GET("/healthz", h.Liveness)
	r.GET("/readyz", h.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
