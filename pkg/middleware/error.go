package middleware

import (
	"errors"

	"github.com/juancristobaldev/lanovena-api/pkg/errutil"
	"github.com/juancristobaldev/lanovena-api/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error renders the last error recorded by a handler as JSON. Errors that
// are not a BaseError become a generic internal error.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		var be errutil.BaseError
		if !errors.As(last.Err, &be) {
			logger.FromContext(c.Request.Context()).Error("unhandled request error", zap.Error(last.Err))
			be = errutil.BaseError{Code: errutil.StatusInternal, Message: "internal error"}
		} else if be.Code.HTTPStatus() >= 500 {
			logger.FromContext(c.Request.Context()).Error("request failed", zap.Error(be))
		}

		// configuration defects are not explained to callers
		if be.Reason == errutil.ReasonConfiguration {
			be = errutil.BaseError{Code: be.Code, Reason: be.Reason, Message: "service misconfigured"}
		}

		c.JSON(be.Code.HTTPStatus(), be.JSON())
	}
}
