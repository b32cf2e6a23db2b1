package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/juancristobaldev/lanovena-api/pkg/errutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func serve(t *testing.T, handler gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Error())
	r.GET("/", handler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func TestErrorRendersBaseError(t *testing.T) {
	w := serve(t, func(c *gin.Context) {
		_ = c.Error(errutil.From(errutil.ErrQuotaExceeded, "plan limit reached",
			errutil.WithDetails(errutil.Detail{Field: "limit", Message: "80"})))
	})

	require.Equal(t, http.StatusForbidden, w.Code)
	require.Contains(t, w.Body.String(), `"reason":"QUOTA_EXCEEDED"`)
	require.Contains(t, w.Body.String(), `"message":"80"`)
}

func TestErrorHidesUnknownAndConfigurationErrors(t *testing.T) {
	w := serve(t, func(c *gin.Context) {
		_ = c.Error(errors.New("pq: connection refused"))
	})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotContains(t, w.Body.String(), "pq:")

	w = serve(t, func(c *gin.Context) {
		_ = c.Error(errutil.Configuration("no limits configured for plan GOLD", nil))
	})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotContains(t, w.Body.String(), "GOLD")
}

func TestErrorLeavesWrittenResponses(t *testing.T) {
	w := serve(t, func(c *gin.Context) {
		c.String(http.StatusAccepted, "ok")
		_ = c.Error(errors.New("late"))
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, "ok", w.Body.String())
}
