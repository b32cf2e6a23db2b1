package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juancristobaldev/lanovena-api/pkg/errutil"

	"gorm.io/gorm"
)

// Store is the tenant record store. Every status or billing-date change is a
// single conditional UPDATE so sweeps and webhooks can race without losing
// writes.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx binds the store to an open transaction.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{db: tx}
}

func (s *Store) Create(ctx context.Context, t *Tenant) error {
	return s.db.WithContext(ctx).Create(t).Error
}

func (s *Store) Get(ctx context.Context, id string) (*Tenant, error) {
	return s.findOne(ctx, "id = ?", id)
}

func (s *Store) FindBySlug(ctx context.Context, slug string) (*Tenant, error) {
	return s.findOne(ctx, "slug = ?", slug)
}

func (s *Store) FindByGatewayCustomer(ctx context.Context, customerID string) (*Tenant, error) {
	if customerID == "" {
		return nil, errutil.NotFound("tenant not found", nil)
	}
	return s.findOne(ctx, "gateway_customer_id = ?", customerID)
}

func (s *Store) FindByGatewaySubscription(ctx context.Context, subscriptionID string) (*Tenant, error) {
	if subscriptionID == "" {
		return nil, errutil.NotFound("tenant not found", nil)
	}
	return s.findOne(ctx, "gateway_subscription_id = ?", subscriptionID)
}

func (s *Store) findOne(ctx context.Context, query string, args ...any) (*Tenant, error) {
	var t Tenant
	err := s.db.WithContext(ctx).Where(query, args...).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errutil.NotFound("tenant not found", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("query tenant: %w", err)
	}
	return &t, nil
}

// ListOverdue returns ACTIVE commercial tenants whose billing date is before
// cutoff, ordered by id and starting after afterID.
func (s *Store) ListOverdue(ctx context.Context, cutoff time.Time, afterID string, limit int) ([]*Tenant, error) {
	var out []*Tenant
	err := s.db.WithContext(ctx).
		Where("subscription_status = ? AND mode = ? AND next_billing_date < ? AND id > ?",
			Active, Commercial, cutoff.UTC(), afterID).
		Order("id ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list overdue tenants: %w", err)
	}
	return out, nil
}

// Suspend moves an ACTIVE commercial tenant to SUSPENDED only while its
// stored billing date is still before cutoff. A concurrent payment that has
// already advanced the date turns this into a no-op.
func (s *Store) Suspend(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&Tenant{}).
		Where("id = ? AND subscription_status = ? AND mode = ? AND next_billing_date < ?",
			id, Active, Commercial, cutoff.UTC()).
		Updates(map[string]any{
			"subscription_status": Suspended,
			"updated_at":          time.Now().UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("suspend tenant: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// AdvanceBillingDate sets next_billing_date = max(next_billing_date, target).
func (s *Store) AdvanceBillingDate(ctx context.Context, id string, target time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&Tenant{}).
		Where("id = ? AND next_billing_date < ?", id, target.UTC()).
		Updates(map[string]any{
			"next_billing_date": target.UTC(),
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("advance billing date: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Transition changes subscription_status to `to` if the current status is one
// of from. Extra columns are written in the same statement.
func (s *Store) Transition(ctx context.Context, id string, from []SubscriptionStatus, to SubscriptionStatus, extra map[string]any) (bool, error) {
	fields := map[string]any{
		"subscription_status": to,
		"updated_at":          time.Now().UTC(),
	}
	for k, v := range extra {
		fields[k] = v
	}

	res := s.db.WithContext(ctx).Model(&Tenant{}).
		Where("id = ? AND subscription_status IN ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, fmt.Errorf("transition tenant: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Update writes non-status columns.
// ClearGatewaySubscription drops the stored gateway subscription id when it
// still equals subscriptionID.
func (s *Store) ClearGatewaySubscription(ctx context.Context, id, subscriptionID string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&Tenant{}).
		Where("id = ? AND gateway_subscription_id = ?", id, subscriptionID).
		Updates(map[string]any{"gateway_subscription_id": "", "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, fmt.Errorf("clear gateway subscription: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) Update(ctx context.Context, id string, fields map[string]any) error {
	if _, ok := fields["subscription_status"]; ok {
		return errutil.Internal("subscription status must change through Transition", nil)
	}
	fields["updated_at"] = time.Now().UTC()

	res := s.db.WithContext(ctx).Model(&Tenant{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update tenant: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errutil.NotFound("tenant not found", nil)
	}
	return nil
}

// CountResources counts the tenant's rows for a plan-limited resource.
func (s *Store) CountResources(ctx context.Context, tenantID string, kind ResourceKind) (int64, error) {
	model, ok := tableFor(kind)
	if !ok {
		return 0, errutil.Configuration(fmt.Sprintf("unknown resource kind %q", kind), nil)
	}

	var n int64
	if err := s.db.WithContext(ctx).Model(model).Where("tenant_id = ?", tenantID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	return n, nil
}

// ListPlayers returns the tenant's players, optionally without scholarship holders.
func (s *Store) ListPlayers(ctx context.Context, tenantID string, excludeScholarship bool) ([]*Player, error) {
	q := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if excludeScholarship {
		q = q.Where("scholarship = ?", false)
	}

	var out []*Player
	if err := q.Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	return out, nil
}
