package tenant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/juancristobaldev/lanovena-api/pkg/config"
	"github.com/juancristobaldev/lanovena-api/pkg/errutil"
	"github.com/juancristobaldev/lanovena-api/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T, now time.Time) *Service {
	t.Helper()
	db := testutil.NewTestDB(t, Models()...)
	cfg := &config.Config{}
	cfg.Billing.IntervalMonths = 1

	svc := NewService(ServiceParams{DB: db, Node: testutil.NewNode(t), Config: cfg})
	svc.now = func() time.Time { return now }
	return svc
}

func TestCreateTenantDefaults(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, now)

	tn, err := svc.Create(context.Background(), CreateRequest{Name: "Club Deportivo Los Andes"})
	require.NoError(t, err)
	require.Equal(t, "club-deportivo-los-andes", tn.Slug)
	require.Equal(t, PlanSemillero, tn.PlanType)
	require.Equal(t, Active, tn.SubscriptionStatus)
	require.Equal(t, Commercial, tn.Mode)
	require.True(t, tn.NextBillingDate.Equal(now.AddDate(0, 1, 0)))
}

func TestCreateTenantSlugExists(t *testing.T) {
	svc := newTestService(t, time.Now())

	_, err := svc.Create(context.Background(), CreateRequest{Name: "Academia Norte", Slug: "norte"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateRequest{Name: "Otra", Slug: "norte"})
	require.Error(t, err)
	var base errutil.BaseError
	require.ErrorAs(t, err, &base)
	require.Equal(t, errutil.StatusConflict, base.Code)
}

func TestCreateTenantRejectsUnknownPlan(t *testing.T) {
	svc := newTestService(t, time.Now())

	_, err := svc.Create(context.Background(), CreateRequest{Name: "X", Plan: "GOLD"})
	var base errutil.BaseError
	require.ErrorAs(t, err, &base)
	require.Equal(t, errutil.StatusValidationFailed, base.Code)
}

func TestGetTenantNotFound(t *testing.T) {
	svc := newTestService(t, time.Now())

	_, err := svc.Get(context.Background(), "unknown")
	require.ErrorIs(t, err, errutil.ErrNotFound)
}

func TestChangePlanAndMode(t *testing.T) {
	svc := newTestService(t, time.Now())
	ctx := context.Background()

	tn, err := svc.Create(ctx, CreateRequest{Name: "Escuela Sur"})
	require.NoError(t, err)

	tn, err = svc.ChangePlan(ctx, tn.ID, PlanProfesional)
	require.NoError(t, err)
	require.Equal(t, PlanProfesional, tn.PlanType)

	tn, err = svc.SwitchMode(ctx, tn.ID, Institutional)
	require.NoError(t, err)
	require.Equal(t, Institutional, tn.Mode)
	require.False(t, tn.Billable())

	_, err = svc.ChangePlan(ctx, "missing", PlanProfesional)
	require.ErrorIs(t, err, errutil.ErrNotFound)
}

func seedTenant(t *testing.T, store *Store, id string, status SubscriptionStatus, mode Mode, next time.Time) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), &Tenant{
		ID:                 id,
		Name:               id,
		Slug:               id,
		PlanType:           PlanSemillero,
		SubscriptionStatus: status,
		Mode:               mode,
		NextBillingDate:    next.UTC(),
	}))
}

func TestSuspendOnlyWhileBillingDateIsStale(t *testing.T) {
	db := testutil.NewTestDB(t, Models()...)
	store := NewStore(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 4, 0, 0, 0, time.UTC)
	cutoff := now.Add(-48 * time.Hour)

	seedTenant(t, store, "t-stale", Active, Commercial, now.Add(-72*time.Hour))
	seedTenant(t, store, "t-inst", Active, Institutional, now.Add(-72*time.Hour))

	// a payment lands before the sweep gets to the row
	advanced, err := store.AdvanceBillingDate(ctx, "t-stale", now.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.True(t, advanced)

	changed, err := store.Suspend(ctx, "t-stale", cutoff)
	require.NoError(t, err)
	require.False(t, changed)

	changed, err = store.Suspend(ctx, "t-inst", cutoff)
	require.NoError(t, err)
	require.False(t, changed)

	tn, err := store.Get(ctx, "t-stale")
	require.NoError(t, err)
	require.Equal(t, Active, tn.SubscriptionStatus)
}

func TestAdvanceBillingDateIsMonotonic(t *testing.T) {
	db := testutil.NewTestDB(t, Models()...)
	store := NewStore(db)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	seedTenant(t, store, "t1", Active, Commercial, base)

	changed, err := store.AdvanceBillingDate(ctx, "t1", base.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.True(t, changed)

	// an older target never moves the date back
	changed, err = store.AdvanceBillingDate(ctx, "t1", base.AddDate(0, 0, 10))
	require.NoError(t, err)
	require.False(t, changed)

	tn, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	require.True(t, tn.NextBillingDate.Equal(base.AddDate(0, 1, 0)))
}

func TestTransitionIsCompareAndSet(t *testing.T) {
	db := testutil.NewTestDB(t, Models()...)
	store := NewStore(db)
	ctx := context.Background()

	seedTenant(t, store, "t1", Suspended, Commercial, time.Now())

	changed, err := store.Transition(ctx, "t1", []SubscriptionStatus{Active}, Cancelled, nil)
	require.NoError(t, err)
	require.False(t, changed)

	changed, err = store.Transition(ctx, "t1", []SubscriptionStatus{Suspended, Cancelled}, Active, nil)
	require.NoError(t, err)
	require.True(t, changed)

	require.Error(t, store.Update(ctx, "t1", map[string]any{"subscription_status": Cancelled}))
}

func TestClearGatewaySubscriptionIsCompareAndSet(t *testing.T) {
	db := testutil.NewTestDB(t, Models()...)
	store := NewStore(db)
	ctx := context.Background()

	seedTenant(t, store, "t1", Active, Commercial, time.Now())
	require.NoError(t, store.Update(ctx, "t1", map[string]any{"gateway_subscription_id": "sus_2"}))

	cleared, err := store.ClearGatewaySubscription(ctx, "t1", "sus_1")
	require.NoError(t, err)
	require.False(t, cleared)

	cleared, err = store.ClearGatewaySubscription(ctx, "t1", "sus_2")
	require.NoError(t, err)
	require.True(t, cleared)

	tn, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	require.Empty(t, tn.GatewaySubscriptionID)
}

func TestListOverdueAndCounts(t *testing.T) {
	db := testutil.NewTestDB(t, Models()...)
	store := NewStore(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 4, 0, 0, 0, time.UTC)

	seedTenant(t, store, "a", Active, Commercial, now.Add(-72*time.Hour))
	seedTenant(t, store, "b", Active, Commercial, now.Add(-24*time.Hour))
	seedTenant(t, store, "c", Suspended, Commercial, now.Add(-72*time.Hour))
	seedTenant(t, store, "d", Active, Institutional, now.Add(-72*time.Hour))
	seedTenant(t, store, "e", Active, Commercial, now.Add(-96*time.Hour))

	list, err := store.ListOverdue(ctx, now.Add(-48*time.Hour), "", 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "a", list[0].ID)

	list, err = store.ListOverdue(ctx, now.Add(-48*time.Hour), "a", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "e", list[0].ID)

	for i, scholarship := range []bool{false, true, false} {
		require.NoError(t, db.Create(&Player{ID: string(rune('p' + i)), TenantID: "a", Scholarship: scholarship}).Error)
	}
	require.NoError(t, db.Create(&Coach{ID: "c1", TenantID: "a"}).Error)

	n, err := store.CountResources(ctx, "a", ResourcePlayer)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	n, err = store.CountResources(ctx, "a", ResourceCoach)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, err = store.CountResources(ctx, "a", "BUS")
	require.ErrorIs(t, err, errutil.ErrConfiguration)

	players, err := store.ListPlayers(ctx, "a", true)
	require.NoError(t, err)
	require.Len(t, players, 2)
}
