package subscription

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/juancristobaldev/lanovena-api/pkg/errutil"
	"github.com/juancristobaldev/lanovena-api/pkg/featureflags"
	"github.com/juancristobaldev/lanovena-api/services/gateway"
	"github.com/juancristobaldev/lanovena-api/services/tenant"
)

func TestSweepSuspendsPastGrace(t *testing.T) {
	f := newFixture(t, featureflags.Static{})
	f.seed(t, &tenant.Tenant{ID: "overdue", NextBillingDate: testNow.Add(-72 * time.Hour)})
	f.seed(t, &tenant.Tenant{ID: "in_grace", NextBillingDate: testNow.Add(-24 * time.Hour)})
	f.seed(t, &tenant.Tenant{ID: "institutional", Mode: tenant.Institutional, NextBillingDate: testNow.AddDate(-1, 0, 0)})
	f.seed(t, &tenant.Tenant{ID: "cancelled", SubscriptionStatus: tenant.Cancelled, NextBillingDate: testNow.AddDate(0, -2, 0)})

	report, err := f.svc.Sweep(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Examined)
	assert.Equal(t, 1, report.Changed)

	assert.Equal(t, tenant.Suspended, f.get(t, "overdue").SubscriptionStatus)
	assert.Equal(t, tenant.Active, f.get(t, "in_grace").SubscriptionStatus)
	assert.Equal(t, tenant.Active, f.get(t, "institutional").SubscriptionStatus)
	assert.Equal(t, tenant.Cancelled, f.get(t, "cancelled").SubscriptionStatus)

	again, err := f.svc.Sweep(context.Background(), testNow)
	require.NoError(t, err)
	assert.Zero(t, again.Examined)
}

func TestSweepDisabledByFlag(t *testing.T) {
	f := newFixture(t, featureflags.Static{featureflags.SubscriptionAutoSuspend: false})
	f.seed(t, &tenant.Tenant{ID: "overdue", NextBillingDate: testNow.AddDate(0, -1, 0)})

	report, err := f.svc.Sweep(context.Background(), testNow)
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Equal(t, tenant.Active, f.get(t, "overdue").SubscriptionStatus)
}

func TestSweepReconcilesFromGateway(t *testing.T) {
	f := newFixture(t, featureflags.Static{})
	f.seed(t, &tenant.Tenant{ID: "paid", GatewaySubscriptionID: "sus_paid", NextBillingDate: testNow.AddDate(0, 0, -5)})
	f.seed(t, &tenant.Tenant{ID: "morose", GatewaySubscriptionID: "sus_morose", NextBillingDate: testNow.AddDate(0, 0, -5)})
	f.seed(t, &tenant.Tenant{ID: "unreachable", GatewaySubscriptionID: "sus_err", NextBillingDate: testNow.AddDate(0, 0, -5)})

	f.gw.EXPECT().GetSubscription(gomock.Any(), "sus_paid").Return(&gateway.Subscription{
		Status: gateway.SubscriptionActive, PeriodEnd: "2026-04-05 00:00:00",
	}, nil)
	f.gw.EXPECT().GetSubscription(gomock.Any(), "sus_morose").Return(&gateway.Subscription{
		Status: gateway.SubscriptionActive, Morose: 1, PeriodEnd: "2026-03-05 00:00:00",
	}, nil)
	f.gw.EXPECT().GetSubscription(gomock.Any(), "sus_err").Return(nil, errutil.GatewayUnavailable("down", nil))

	report, err := f.svc.Sweep(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Examined)
	assert.Equal(t, 1, report.Changed)
	assert.Equal(t, 1, report.Reconciled)
	assert.Equal(t, 1, report.Failed)

	paid := f.get(t, "paid")
	assert.Equal(t, tenant.Active, paid.SubscriptionStatus)
	assert.True(t, paid.NextBillingDate.Equal(time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, tenant.Suspended, f.get(t, "morose").SubscriptionStatus)
	assert.Equal(t, tenant.Active, f.get(t, "unreachable").SubscriptionStatus)
}

func TestSweepWithoutReconcile(t *testing.T) {
	f := newFixture(t, featureflags.Static{featureflags.SubscriptionReconcile: false})
	f.seed(t, &tenant.Tenant{ID: "t1", GatewaySubscriptionID: "sus_1", NextBillingDate: testNow.AddDate(0, 0, -5)})

	report, err := f.svc.Sweep(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Changed)
}

func TestSweepPagesThroughBatches(t *testing.T) {
	f := newFixture(t, featureflags.Static{})
	f.svc.batch = 2
	for i := 0; i < 5; i++ {
		f.seed(t, &tenant.Tenant{ID: fmt.Sprintf("t%d", i), NextBillingDate: testNow.AddDate(0, 0, -3-i)})
	}

	report, err := f.svc.Sweep(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Examined)
	assert.Equal(t, 5, report.Changed)
}

func TestSweepStopsOnCancel(t *testing.T) {
	f := newFixture(t, featureflags.Static{})
	f.seed(t, &tenant.Tenant{ID: "t1", NextBillingDate: testNow.AddDate(0, 0, -5)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Sweep(ctx, testNow)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, tenant.Active, f.get(t, "t1").SubscriptionStatus)
}

func TestSweeperName(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, "subscription_suspension", f.svc.Name())
}
