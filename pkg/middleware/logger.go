package middleware

import (
	"time"

	"github.com/juancristobaldev/lanovena-api/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Logger writes one access line per request. Probes and /metrics are not
// logged.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.URL.Path {
		case "/healthz", "/readyz", "/metrics":
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}

		zapLog := logger.FromContext(c.Request.Context())
		switch {
		case status >= 500:
			zapLog.Error("request", fields...)
		case status >= 400:
			zapLog.Warn("request", fields...)
		default:
			zapLog.Info("request", fields...)
		}
	}
}
