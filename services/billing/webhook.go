package billing

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/juancristobaldev/lanovena-api/pkg/config"
	"github.com/juancristobaldev/lanovena-api/pkg/errutil"
	"github.com/juancristobaldev/lanovena-api/pkg/logger"
	"github.com/juancristobaldev/lanovena-api/pkg/metrics"
	"github.com/juancristobaldev/lanovena-api/pkg/task"
	"github.com/juancristobaldev/lanovena-api/pkg/taskname"
	"github.com/juancristobaldev/lanovena-api/services/gateway"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultMaxBody = 1 << 20

// Webhooks answers the gateway's server-to-server callbacks. A callback is
// only acknowledged once its signature checks out and its job is queued;
// the gateway re-delivers anything else.
type Webhooks struct {
	signer     *gateway.Signer
	enqueuer   task.Enqueuer
	maxBody    int64
	maxRetry   int
	jobTimeout time.Duration
}

type WebhookParams struct {
	fx.In
	Signer   *gateway.Signer
	Enqueuer task.Enqueuer
	Config   *config.Config
}

func NewWebhooks(p WebhookParams) *Webhooks {
	w := &Webhooks{
		signer:     p.Signer,
		enqueuer:   p.Enqueuer,
		maxBody:    p.Config.Gateway.WebhookMaxBytes,
		maxRetry:   p.Config.Billing.JobMaxRetry,
		jobTimeout: p.Config.Billing.JobTimeout,
	}
	if w.maxBody <= 0 {
		w.maxBody = defaultMaxBody
	}
	if w.maxRetry <= 0 {
		w.maxRetry = 5
	}
	return w
}

func (w *Webhooks) RegisterRoutes(r gin.IRouter) {
	hooks := r.Group("/flow/hooks")
	hooks.POST("/card-registered", w.CardRegistered)
	hooks.POST("/subscription-pay", w.SubscriptionPaid)
}

func (w *Webhooks) CardRegistered(c *gin.Context) {
	w.accept(c, "registration", taskname.BillingRegistrationConfirm)
}

func (w *Webhooks) SubscriptionPaid(c *gin.Context) {
	w.accept(c, "payment", taskname.BillingPaymentConfirm)
}

func (w *Webhooks) accept(c *gin.Context, kind, taskType string) {
	start := time.Now()
	status := http.StatusOK
	defer func() {
		metrics.WebhookRequests.WithLabelValues(kind, strconv.Itoa(status)).Inc()
		metrics.WebhookDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	ctx := c.Request.Context()
	zapLog := logger.FromContext(ctx).With(zap.String("webhook", kind))

	fail := func(err error) {
		var be errutil.BaseError
		if errors.As(err, &be) {
			status = be.Code.HTTPStatus()
		} else {
			status = http.StatusInternalServerError
		}
		_ = c.Error(err)
		c.Abort()
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, w.maxBody)
	if err := c.Request.ParseForm(); err != nil {
		zapLog.Warn("unreadable webhook body", zap.Error(err))
		fail(errutil.BadRequest("unreadable form body", err))
		return
	}

	params, err := w.signer.VerifyForm(c.Request.PostForm)
	if err != nil {
		zapLog.Warn("webhook rejected", zap.Error(err), zap.String("remote", c.ClientIP()))
		fail(err)
		return
	}

	token := params["token"]
	if token == "" {
		fail(errutil.BadRequest("token is required", nil))
		return
	}

	t, err := NewConfirmTask(taskType, token, w.maxRetry, w.jobTimeout)
	if err != nil {
		fail(errutil.Internal("failed to build confirmation job", err))
		return
	}
	if _, err := w.enqueuer.Enqueue(ctx, t); err != nil {
		if !errors.Is(err, asynq.ErrTaskIDConflict) {
			zapLog.Error("failed to queue confirmation", zap.Error(err))
			fail(errutil.New(errutil.StatusServiceUnavailable, "confirmation could not be queued", errutil.WithErr(err)))
			return
		}
		zapLog.Info("confirmation already queued")
	}

	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}
