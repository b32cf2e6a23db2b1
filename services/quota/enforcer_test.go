package quota

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/juancristobaldev/lanovena-api/pkg/errutil"
	"github.com/juancristobaldev/lanovena-api/services/tenant"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeTenants struct {
	tenants map[string]*tenant.Tenant
	counts  map[tenant.ResourceKind]int64
}

func (f *fakeTenants) Get(_ context.Context, id string) (*tenant.Tenant, error) {
	t, ok := f.tenants[id]
	if !ok {
		return nil, errutil.NotFound("tenant not found", nil)
	}
	return t, nil
}

func (f *fakeTenants) CountResources(_ context.Context, _ string, kind tenant.ResourceKind) (int64, error) {
	return f.counts[kind], nil
}

func newEnforcer(t *testing.T, tenants ...*tenant.Tenant) (*Enforcer, *fakeTenants) {
	t.Helper()
	src := &fakeTenants{tenants: map[string]*tenant.Tenant{}, counts: map[tenant.ResourceKind]int64{}}
	for _, tn := range tenants {
		src.tenants[tn.ID] = tn
	}

	limits, err := NewLimits(DefaultPlanLimits)
	require.NoError(t, err)
	e, err := NewEnforcer(src, limits, DefaultFeatures)
	require.NoError(t, err)
	return e, src
}

func activeTenant(id string, plan tenant.PlanType) *tenant.Tenant {
	return &tenant.Tenant{ID: id, PlanType: plan, SubscriptionStatus: tenant.Active, Mode: tenant.Commercial}
}

func TestCheckAndReserveSemilleroPlayers(t *testing.T) {
	e, _ := newEnforcer(t, activeTenant("t1", tenant.PlanSemillero))
	ctx := context.Background()

	require.NoError(t, e.CheckAndReserve(ctx, "t1", tenant.ResourcePlayer, 79))

	err := e.CheckAndReserve(ctx, "t1", tenant.ResourcePlayer, 80)
	require.ErrorIs(t, err, errutil.ErrQuotaExceeded)

	var base errutil.BaseError
	require.ErrorAs(t, err, &base)
	limit, _ := base.Detail("limit")
	current, _ := base.Detail("current")
	require.Equal(t, "80", limit)
	require.Equal(t, "80", current)
}

func TestCheckAndReserveEveryPlanAndKind(t *testing.T) {
	for plan, pl := range DefaultPlanLimits {
		e, _ := newEnforcer(t, activeTenant("t", plan))
		for _, kind := range tenant.ResourceKinds {
			limit, ok := pl.For(kind)
			require.True(t, ok)
			require.NoError(t, e.CheckAndReserve(context.Background(), "t", kind, limit-1), "%s/%s", plan, kind)
			require.ErrorIs(t, e.CheckAndReserve(context.Background(), "t", kind, limit), errutil.ErrQuotaExceeded)
		}
	}
}

func TestCheckAndReserveUnknownPlanIsConfiguration(t *testing.T) {
	e, _ := newEnforcer(t, activeTenant("t1", tenant.PlanType("GOLD")))

	err := e.CheckAndReserve(context.Background(), "t1", tenant.ResourcePlayer, 0)
	require.ErrorIs(t, err, errutil.ErrConfiguration)
	require.NotErrorIs(t, err, errutil.ErrQuotaExceeded)
}

func TestCheckAndReserveBlocksInactiveTenant(t *testing.T) {
	tn := activeTenant("t1", tenant.PlanAltoRendimiento)
	tn.SubscriptionStatus = tenant.Suspended
	e, _ := newEnforcer(t, tn)

	err := e.CheckAndReserve(context.Background(), "t1", tenant.ResourceCoach, 0)
	require.ErrorIs(t, err, errutil.ErrQuotaExceeded)
	var base errutil.BaseError
	require.ErrorAs(t, err, &base)
	status, _ := base.Detail("status")
	require.Equal(t, "SUSPENDED", status)
}

func TestCheckCountsFromStore(t *testing.T) {
	e, src := newEnforcer(t, activeTenant("t1", tenant.PlanSemillero))
	src.counts[tenant.ResourceCategory] = 5

	require.ErrorIs(t, e.Check(context.Background(), "t1", tenant.ResourceCategory), errutil.ErrQuotaExceeded)
	require.NoError(t, e.Check(context.Background(), "t1", tenant.ResourcePlayer))
	require.ErrorIs(t, e.Check(context.Background(), "missing", tenant.ResourcePlayer), errutil.ErrNotFound)
}

func TestUsage(t *testing.T) {
	e, src := newEnforcer(t, activeTenant("t1", tenant.PlanProfesional))
	src.counts[tenant.ResourcePlayer] = 250
	src.counts[tenant.ResourceCoach] = 3

	u, err := e.Usage(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, u.Resources, 3)
	require.Equal(t, ResourceUsage{Resource: tenant.ResourcePlayer, Current: 250, Limit: 250, CanAdd: false}, u.Resources[0])
	require.True(t, u.Resources[2].CanAdd)
}

func TestCheckFeatureStore(t *testing.T) {
	inst := activeTenant("inst", tenant.PlanAltoRendimiento)
	inst.Mode = tenant.Institutional
	e, _ := newEnforcer(t,
		activeTenant("seed", tenant.PlanSemillero),
		activeTenant("pro", tenant.PlanProfesional),
		inst,
	)
	ctx := context.Background()

	ok, err := e.CheckFeature(ctx, "seed", "store")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = e.CheckFeature(ctx, "pro", "store")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = e.CheckFeature(ctx, "inst", "store")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = e.CheckFeature(ctx, "pro", "teleport")
	require.ErrorIs(t, err, errutil.ErrNotFound)
}

func TestNewLimitsValidation(t *testing.T) {
	_, err := NewLimits(map[tenant.PlanType]PlanLimit{
		tenant.PlanSemillero: {MaxPlayers: 80, MaxCategories: 5, MaxCoaches: 5},
	})
	require.ErrorIs(t, err, errutil.ErrConfiguration)

	_, err = NewLimits(map[tenant.PlanType]PlanLimit{
		tenant.PlanSemillero:       {MaxPlayers: 80, MaxCategories: 5, MaxCoaches: 5},
		tenant.PlanProfesional:     {MaxPlayers: 60, MaxCategories: 15, MaxCoaches: 20},
		tenant.PlanAltoRendimiento: {MaxPlayers: 1000, MaxCategories: 50, MaxCoaches: 100},
	})
	require.ErrorIs(t, err, errutil.ErrConfiguration)
}

func TestNewEnforcerRejectsBadRule(t *testing.T) {
	limits, err := NewLimits(DefaultPlanLimits)
	require.NoError(t, err)

	_, err = NewEnforcer(&fakeTenants{}, limits, map[string]string{"broken": `plan ==`})
	require.ErrorIs(t, err, errutil.ErrConfiguration)
}
