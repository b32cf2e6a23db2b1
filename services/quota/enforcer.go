package quota

import (
	"context"
	"fmt"
	"strconv"

	"github.com/juancristobaldev/lanovena-api/pkg/celengine"
	"github.com/juancristobaldev/lanovena-api/pkg/errutil"
	"github.com/juancristobaldev/lanovena-api/pkg/logger"
	"github.com/juancristobaldev/lanovena-api/pkg/metrics"
	"github.com/juancristobaldev/lanovena-api/services/tenant"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultFeatures maps feature names to CEL rules over plan, mode and status.
var DefaultFeatures = map[string]string{
	"store": `mode == "COMMERCIAL" && plan != "SEMILLERO"`,
}

type TenantSource interface {
	Get(ctx context.Context, id string) (*tenant.Tenant, error)
	CountResources(ctx context.Context, tenantID string, kind tenant.ResourceKind) (int64, error)
}

type Enforcer struct {
	tenants  TenantSource
	limits   *Limits
	engine   *celengine.Engine
	features map[string]string
}

func NewEnforcer(tenants TenantSource, limits *Limits, features map[string]string) (*Enforcer, error) {
	engine, err := celengine.New(map[string]any{"plan": "", "mode": "", "status": ""})
	if err != nil {
		return nil, errutil.Configuration("build entitlement environment", err)
	}

	for name, expr := range features {
		if _, err := engine.Compile(expr); err != nil {
			return nil, errutil.Configuration(fmt.Sprintf("feature %q has an invalid rule", name), err)
		}
	}

	return &Enforcer{tenants: tenants, limits: limits, engine: engine, features: features}, nil
}

// CheckAndReserve is a pre-check: it allows the creation exactly when
// current < limit and records nothing.
func (e *Enforcer) CheckAndReserve(ctx context.Context, tenantID string, kind tenant.ResourceKind, current int64) error {
	t, err := e.tenants.Get(ctx, tenantID)
	if err != nil {
		return err
	}

	pl, err := e.limits.Lookup(t.PlanType)
	if err != nil {
		logger.FromContext(ctx).Error("tenant on unconfigured plan", zap.String("tenant_id", tenantID), zap.Error(err))
		return err
	}

	limit, ok := pl.For(kind)
	if !ok {
		return errutil.Configuration(fmt.Sprintf("unknown resource kind %q", kind), nil)
	}

	if t.SubscriptionStatus != tenant.Active {
		metrics.QuotaRejections.WithLabelValues(string(t.PlanType), string(kind)).Inc()
		return errutil.From(errutil.ErrQuotaExceeded, "subscription is not active",
			errutil.WithDetails(
				errutil.Detail{Field: "status", Message: string(t.SubscriptionStatus)},
				errutil.Detail{Field: "resource", Message: string(kind)},
				errutil.Detail{Field: "current", Message: strconv.FormatInt(current, 10)},
				errutil.Detail{Field: "limit", Message: "0"},
			))
	}

	if current >= limit {
		metrics.QuotaRejections.WithLabelValues(string(t.PlanType), string(kind)).Inc()
		return errutil.From(errutil.ErrQuotaExceeded,
			fmt.Sprintf("plan %s allows at most %d %s", t.PlanType, limit, kind),
			errutil.WithDetails(
				errutil.Detail{Field: "resource", Message: string(kind)},
				errutil.Detail{Field: "current", Message: strconv.FormatInt(current, 10)},
				errutil.Detail{Field: "limit", Message: strconv.FormatInt(limit, 10)},
				errutil.Detail{Field: "plan", Message: string(t.PlanType)},
			))
	}
	return nil
}

// Check counts the tenant's current rows and runs CheckAndReserve on them.
func (e *Enforcer) Check(ctx context.Context, tenantID string, kind tenant.ResourceKind) error {
	current, err := e.tenants.CountResources(ctx, tenantID, kind)
	if err != nil {
		return err
	}
	return e.CheckAndReserve(ctx, tenantID, kind, current)
}

type ResourceUsage struct {
	Resource tenant.ResourceKind `json:"resource"`
	Current  int64               `json:"current"`
	Limit    int64               `json:"limit"`
	CanAdd   bool                `json:"canAdd"`
}

type Usage struct {
	Plan      tenant.PlanType           `json:"plan"`
	Status    tenant.SubscriptionStatus `json:"status"`
	Resources []ResourceUsage           `json:"resources"`
}

func (e *Enforcer) Usage(ctx context.Context, tenantID string) (*Usage, error) {
	t, err := e.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	pl, err := e.limits.Lookup(t.PlanType)
	if err != nil {
		return nil, err
	}

	out := &Usage{
		Plan:      t.PlanType,
		Status:    t.SubscriptionStatus,
		Resources: make([]ResourceUsage, len(tenant.ResourceKinds)),
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range tenant.ResourceKinds {
		g.Go(func() error {
			current, err := e.tenants.CountResources(gctx, tenantID, kind)
			if err != nil {
				return err
			}
			limit, _ := pl.For(kind)
			out.Resources[i] = ResourceUsage{
				Resource: kind,
				Current:  current,
				Limit:    limit,
				CanAdd:   t.SubscriptionStatus == tenant.Active && current < limit,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckFeature evaluates the named entitlement rule for the tenant.
func (e *Enforcer) CheckFeature(ctx context.Context, tenantID, feature string) (bool, error) {
	expr, ok := e.features[feature]
	if !ok {
		return false, errutil.NotFound(fmt.Sprintf("unknown feature %q", feature), nil)
	}

	t, err := e.tenants.Get(ctx, tenantID)
	if err != nil {
		return false, err
	}

	allowed, err := e.engine.Evaluate(expr, map[string]any{
		"plan":   string(t.PlanType),
		"mode":   string(t.Mode),
		"status": string(t.SubscriptionStatus),
	})
	if err != nil {
		return false, errutil.Configuration(fmt.Sprintf("evaluate feature %q", feature), err)
	}
	return allowed, nil
}
