package httpapi

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("httpapi.routes",
	fx.Provide(NewHandler),
	fx.Invoke(func(r *gin.Engine, h *Handler) { h.RegisterRoutes(r) }),
)
