package billing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/juancristobaldev/lanovena-api/pkg/config"
	"github.com/juancristobaldev/lanovena-api/pkg/middleware"
	"github.com/juancristobaldev/lanovena-api/pkg/taskname"
	"github.com/juancristobaldev/lanovena-api/services/gateway"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

type recordingEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (r *recordingEnqueuer) Enqueue(_ context.Context, t *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, t)
	r.opts = append(r.opts, opts)
	return &asynq.TaskInfo{ID: t.Type()}, nil
}

const testSecret = "gateway-secret"

func newRouter(t *testing.T, enq *recordingEnqueuer, maxBytes int64) *gin.Engine {
	t.Helper()
	cfg := &config.Config{}
	cfg.Gateway.WebhookMaxBytes = maxBytes
	cfg.Billing.JobMaxRetry = 7

	w := NewWebhooks(WebhookParams{Signer: gateway.NewSigner(testSecret), Enqueuer: enq, Config: cfg})
	r := gin.New()
	r.Use(middleware.Error())
	w.RegisterRoutes(r)
	return r
}

func signedForm(fields map[string]string) url.Values {
	fields["s"] = gateway.NewSigner(testSecret).Sign(fields)
	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}
	return form
}

func post(r *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestWebhookQueuesVerifiedConfirmation(t *testing.T) {
	enq := &recordingEnqueuer{}
	r := newRouter(t, enq, 0)

	rec := post(r, "/flow/hooks/subscription-pay", signedForm(map[string]string{"token": "pay_tok"}))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, enq.tasks, 1)
	assert.Equal(t, taskname.BillingPaymentConfirm, enq.tasks[0].Type())
	assert.JSONEq(t, `"pay_tok"`, mustField(t, enq.tasks[0].Payload(), "token"))

	rec = post(r, "/flow/hooks/card-registered", signedForm(map[string]string{"token": "reg_tok"}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, enq.tasks, 2)
	assert.Equal(t, taskname.BillingRegistrationConfirm, enq.tasks[1].Type())
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	enq := &recordingEnqueuer{}
	r := newRouter(t, enq, 0)

	form := signedForm(map[string]string{"token": "pay_tok"})
	form.Set("token", "other_tok")
	rec := post(r, "/flow/hooks/subscription-pay", form)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_SIGNATURE")

	rec = post(r, "/flow/hooks/subscription-pay", url.Values{"token": {"pay_tok"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, enq.tasks)
}

func TestWebhookRequiresToken(t *testing.T) {
	enq := &recordingEnqueuer{}
	r := newRouter(t, enq, 0)

	rec := post(r, "/flow/hooks/card-registered", signedForm(map[string]string{"other": "x"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, enq.tasks)
}

func TestWebhookBodyLimit(t *testing.T) {
	enq := &recordingEnqueuer{}
	r := newRouter(t, enq, 64)

	rec := post(r, "/flow/hooks/card-registered", signedForm(map[string]string{"token": strings.Repeat("x", 200)}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, enq.tasks)
}

func TestWebhookDuplicateDeliveryIsAcknowledged(t *testing.T) {
	enq := &recordingEnqueuer{err: asynq.ErrTaskIDConflict}
	r := newRouter(t, enq, 0)

	rec := post(r, "/flow/hooks/subscription-pay", signedForm(map[string]string{"token": "pay_tok"}))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookQueueDown(t *testing.T) {
	enq := &recordingEnqueuer{err: errors.New("redis: connection refused")}
	r := newRouter(t, enq, 0)

	rec := post(r, "/flow/hooks/subscription-pay", signedForm(map[string]string{"token": "pay_tok"}))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
