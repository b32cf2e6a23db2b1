package billing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juancristobaldev/lanovena-api/pkg/errutil"
	"github.com/juancristobaldev/lanovena-api/pkg/taskname"
	"github.com/juancristobaldev/lanovena-api/services/subscription"
)

func mustField(t *testing.T, payload []byte, field string) string {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(payload, &m))
	return string(m[field])
}

type fakeConfirmer struct {
	outcome subscription.Outcome
	err     error
	tokens  []string
}

func (f *fakeConfirmer) ConfirmRegistration(_ context.Context, token string) (subscription.Outcome, error) {
	f.tokens = append(f.tokens, "reg:"+token)
	return f.outcome, f.err
}

func (f *fakeConfirmer) ConfirmPayment(_ context.Context, token string) (subscription.Outcome, error) {
	f.tokens = append(f.tokens, "pay:"+token)
	return f.outcome, f.err
}

func confirmTask(t *testing.T, taskType, token string) *asynq.Task {
	t.Helper()
	task, err := NewConfirmTask(taskType, token, 5, 30*time.Second)
	require.NoError(t, err)
	return task
}

func TestJobsDispatchByType(t *testing.T) {
	c := &fakeConfirmer{outcome: subscription.Applied}
	j := NewJobs(c)
	ctx := context.Background()

	require.NoError(t, j.HandlePaymentConfirm(ctx, confirmTask(t, taskname.BillingPaymentConfirm, "p1")))
	require.NoError(t, j.HandleRegistrationConfirm(ctx, confirmTask(t, taskname.BillingRegistrationConfirm, "r1")))
	assert.Equal(t, []string{"pay:p1", "reg:r1"}, c.tokens)
}

func TestJobsRetryGatewayOutage(t *testing.T) {
	j := NewJobs(&fakeConfirmer{err: errutil.GatewayUnavailable("down", nil)})

	err := j.HandlePaymentConfirm(context.Background(), confirmTask(t, taskname.BillingPaymentConfirm, "p1"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestJobsRetryStorageErrors(t *testing.T) {
	j := NewJobs(&fakeConfirmer{err: errors.New("database is locked")})

	err := j.HandlePaymentConfirm(context.Background(), confirmTask(t, taskname.BillingPaymentConfirm, "p1"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestJobsSkipRetryOnBusinessErrors(t *testing.T) {
	j := NewJobs(&fakeConfirmer{err: errutil.BadGateway("gateway rejected the request", nil)})

	err := j.HandlePaymentConfirm(context.Background(), confirmTask(t, taskname.BillingPaymentConfirm, "p1"))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestJobsSkipRetryOnMalformedPayload(t *testing.T) {
	j := NewJobs(&fakeConfirmer{})

	err := j.HandlePaymentConfirm(context.Background(), asynq.NewTask(taskname.BillingPaymentConfirm, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestRegisterHandlers(t *testing.T) {
	c := &fakeConfirmer{outcome: subscription.Duplicate}
	mux := asynq.NewServeMux()
	NewJobs(c).Register(mux)

	require.NoError(t, mux.ProcessTask(context.Background(), confirmTask(t, taskname.BillingRegistrationConfirm, "r1")))
	assert.Equal(t, []string{"reg:r1"}, c.tokens)
}
