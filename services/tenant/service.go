package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/juancristobaldev/lanovena-api/pkg/config"
	"github.com/juancristobaldev/lanovena-api/pkg/errutil"
	"github.com/juancristobaldev/lanovena-api/pkg/logger"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	store          *Store
	node           *snowflake.Node
	intervalMonths int
	now            func() time.Time
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Config *config.Config
}

func NewService(p ServiceParams) *Service {
	interval := p.Config.Billing.IntervalMonths
	if interval <= 0 {
		interval = 1
	}
	return &Service{
		store:          NewStore(p.DB),
		node:           p.Node,
		intervalMonths: interval,
		now:            time.Now,
	}
}

func (s *Service) Store() *Store {
	return s.store
}

type CreateRequest struct {
	Name string   `json:"name" binding:"required"`
	Slug string   `json:"slug"`
	Plan PlanType `json:"plan"`
	Mode Mode     `json:"mode"`
}

// Create registers a school on the entry plan, active and commercial unless
// told otherwise. Its first billing date is one interval out.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Tenant, error) {
	zapLog := logger.FromContext(ctx)

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errutil.ValidationFailed("name is required", nil)
	}

	slugName := req.Slug
	if slugName == "" {
		slugName = slug.Make(name)
	}

	plan := req.Plan
	if plan == "" {
		plan = PlanSemillero
	}
	if !plan.Valid() {
		return nil, errutil.ValidationFailed(fmt.Sprintf("unknown plan %q", plan), nil)
	}

	mode := req.Mode
	if mode == "" {
		mode = Commercial
	}
	if !mode.Valid() {
		return nil, errutil.ValidationFailed(fmt.Sprintf("unknown mode %q", mode), nil)
	}

	_, err := s.store.FindBySlug(ctx, slugName)
	switch {
	case err == nil:
		zapLog.Warn("tenant already exists", zap.String("slug", slugName))
		return nil, errutil.Conflict("tenant already exists", nil)
	case !errors.Is(err, errutil.ErrNotFound):
		zapLog.Error("failed query get tenant by slug", zap.Error(err))
		return nil, errutil.Internal("failed to check existing tenant", err)
	}

	now := s.now().UTC()
	t := &Tenant{
		ID:                 s.node.Generate().String(),
		Name:               name,
		Slug:               slugName,
		PlanType:           plan,
		SubscriptionStatus: Active,
		Mode:               mode,
		NextBillingDate:    now.AddDate(0, s.intervalMonths, 0),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.store.Create(ctx, t); err != nil {
		zapLog.Error("failed to create tenant", zap.Error(err))
		return nil, errutil.Internal("failed to create tenant", err)
	}

	zapLog.Info("tenant created", zap.String("tenant_id", t.ID), zap.String("slug", t.Slug))
	return t, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Tenant, error) {
	return s.store.Get(ctx, id)
}

// ChangePlan switches the plan tier. Existing resources above the new limits
// are kept; quotas only block further creation.
func (s *Service) ChangePlan(ctx context.Context, id string, plan PlanType) (*Tenant, error) {
	if !plan.Valid() {
		return nil, errutil.ValidationFailed(fmt.Sprintf("unknown plan %q", plan), nil)
	}
	if err := s.store.Update(ctx, id, map[string]any{"plan_type": plan}); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("tenant plan changed", zap.String("tenant_id", id), zap.String("plan", string(plan)))
	return s.store.Get(ctx, id)
}

// SwitchMode toggles between commercial billing and institutional (unbilled) use.
func (s *Service) SwitchMode(ctx context.Context, id string, mode Mode) (*Tenant, error) {
	if !mode.Valid() {
		return nil, errutil.ValidationFailed(fmt.Sprintf("unknown mode %q", mode), nil)
	}
	if err := s.store.Update(ctx, id, map[string]any{"mode": mode}); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("tenant mode changed", zap.String("tenant_id", id), zap.String("mode", string(mode)))
	return s.store.Get(ctx, id)
}
