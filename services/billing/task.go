package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/juancristobaldev/lanovena-api/pkg/errutil"
	"github.com/juancristobaldev/lanovena-api/pkg/logger"
	"github.com/juancristobaldev/lanovena-api/pkg/taskname"
	"github.com/juancristobaldev/lanovena-api/services/subscription"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type ConfirmPayload struct {
	Token      string    `json:"token"`
	ReceivedAt time.Time `json:"received_at"`
}

// NewConfirmTask builds the job for a verified webhook. The task id is
// derived from the token so a re-delivered webhook does not queue twice.
func NewConfirmTask(taskType, token string, maxRetry int, timeout time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(ConfirmPayload{Token: token, ReceivedAt: time.Now().UTC()})
	if err != nil {
		return nil, err
	}

	opts := []asynq.Option{
		asynq.Queue(taskname.QueueCritical),
		asynq.MaxRetry(maxRetry),
		asynq.TaskID(taskType + ":" + token),
		asynq.Retention(24 * time.Hour),
	}
	if timeout > 0 {
		opts = append(opts, asynq.Timeout(timeout))
	}
	return asynq.NewTask(taskType, payload, opts...), nil
}

// Confirmer applies gateway confirmations to tenant state.
type Confirmer interface {
	ConfirmRegistration(ctx context.Context, token string) (subscription.Outcome, error)
	ConfirmPayment(ctx context.Context, token string) (subscription.Outcome, error)
}

type Jobs struct {
	confirmer Confirmer
}

func NewJobs(confirmer Confirmer) *Jobs {
	return &Jobs{confirmer: confirmer}
}

func (j *Jobs) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(taskname.BillingRegistrationConfirm, j.HandleRegistrationConfirm)
	mux.HandleFunc(taskname.BillingPaymentConfirm, j.HandlePaymentConfirm)
}

func (j *Jobs) HandleRegistrationConfirm(ctx context.Context, t *asynq.Task) error {
	return j.handle(ctx, t, j.confirmer.ConfirmRegistration)
}

func (j *Jobs) HandlePaymentConfirm(ctx context.Context, t *asynq.Task) error {
	return j.handle(ctx, t, j.confirmer.ConfirmPayment)
}

func (j *Jobs) handle(ctx context.Context, t *asynq.Task, confirm func(context.Context, string) (subscription.Outcome, error)) error {
	zapLog := logger.FromContext(ctx).With(zap.String("task_type", t.Type()))

	var p ConfirmPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		zapLog.Error("malformed confirmation payload", zap.Error(err))
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	outcome, err := confirm(ctx, p.Token)
	if err != nil {
		if retryable(err) {
			zapLog.Warn("confirmation failed, will retry", zap.Error(err))
			return err
		}
		zapLog.Error("confirmation rejected", zap.Error(err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	zapLog.Info("confirmation processed", zap.String("outcome", string(outcome)),
		zap.Duration("lag", time.Since(p.ReceivedAt)))
	return nil
}

// retryable keeps retrying gateway outages and storage errors. Classified
// business errors will fail the same way again.
func retryable(err error) bool {
	if errors.Is(err, errutil.ErrGatewayUnavailable) {
		return true
	}
	var be errutil.BaseError
	return !errors.As(err, &be)
}
