package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/juancristobaldev/lanovena-api/pkg/config"
	"github.com/juancristobaldev/lanovena-api/pkg/errutil"
	"github.com/juancristobaldev/lanovena-api/pkg/featureflags"
	"github.com/juancristobaldev/lanovena-api/pkg/logger"
	"github.com/juancristobaldev/lanovena-api/pkg/metrics"
	"github.com/juancristobaldev/lanovena-api/services/gateway"
	"github.com/juancristobaldev/lanovena-api/services/tenant"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultBatch = 250

// FeeSettler marks a one-off fee payment as paid by its commerce order.
type FeeSettler interface {
	SettlePayment(ctx context.Context, commerceOrder string, paidAt time.Time) (bool, error)
}

// Service owns tenant subscription status and billing dates. All writes are
// conditional updates on the tenant row, so sweeps and confirmations can run
// in any order.
type Service struct {
	db             *gorm.DB
	tenants        *tenant.Store
	gw             gateway.Client
	flags          featureflags.FeatureFlag
	fees           FeeSettler
	node           *snowflake.Node
	planIDs        map[tenant.PlanType]string
	grace          time.Duration
	intervalMonths int
	batch          int
	now            func() time.Time
}

type ServiceParams struct {
	fx.In
	DB      *gorm.DB
	Tenants *tenant.Store
	Gateway gateway.Client
	Flags   featureflags.FeatureFlag
	Fees    FeeSettler `optional:"true"`
	Node    *snowflake.Node
	Config  *config.Config
}

func NewService(p ServiceParams) *Service {
	b := p.Config.Billing

	planIDs := make(map[tenant.PlanType]string, len(p.Config.Gateway.PlanIDs))
	for k, v := range p.Config.Gateway.PlanIDs {
		// viper lowercases map keys
		planIDs[tenant.PlanType(strings.ToUpper(k))] = v
	}

	s := &Service{
		db:             p.DB,
		tenants:        p.Tenants,
		gw:             p.Gateway,
		flags:          p.Flags,
		fees:           p.Fees,
		node:           p.Node,
		planIDs:        planIDs,
		grace:          b.GracePeriod,
		intervalMonths: b.IntervalMonths,
		batch:          b.SweepBatchLimit,
		now:            time.Now,
	}
	if s.intervalMonths <= 0 {
		s.intervalMonths = 1
	}
	if s.batch <= 0 {
		s.batch = defaultBatch
	}
	if s.flags == nil {
		s.flags = featureflags.Static{}
	}
	return s
}

// ExternalID is the merchant-side customer reference for a tenant.
func ExternalID(tenantID string) string {
	return "school_" + tenantID
}

// RegisterCard makes sure the tenant has a gateway customer and starts the
// card registration flow.
func (s *Service) RegisterCard(ctx context.Context, tenantID, email string) (*gateway.Redirect, error) {
	zapLog := logger.FromContext(ctx).With(zap.String("tenant_id", tenantID))

	t, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !t.Billable() {
		return nil, errutil.UnprocessableEntity("institutional tenants are not billed", nil)
	}

	customerID := t.GatewayCustomerID
	if customerID == "" {
		customerID, err = s.ensureCustomer(ctx, t, email)
		if err != nil {
			return nil, err
		}
	}

	redirect, err := s.gw.RegisterPaymentInstrument(ctx, customerID)
	if err != nil {
		return nil, err
	}

	zapLog.Info("card registration started")
	return redirect, nil
}

// ensureCustomer creates the gateway customer and links it to the tenant. A
// duplicate answer is not a failure: the customer was created earlier, by a
// concurrent call or by a call whose local link never landed, so it is
// looked up by its external reference and linked.
func (s *Service) ensureCustomer(ctx context.Context, t *tenant.Tenant, email string) (string, error) {
	zapLog := logger.FromContext(ctx).With(zap.String("tenant_id", t.ID))

	cus, err := s.gw.CreateCustomer(ctx, t.Name, email, ExternalID(t.ID))
	if err != nil {
		if !gateway.IsDuplicateCustomer(err) {
			return "", err
		}
		zapLog.Warn("gateway customer already exists", zap.Error(err))

		current, gerr := s.tenants.Get(ctx, t.ID)
		if gerr != nil {
			return "", gerr
		}
		if current.GatewayCustomerID != "" {
			return current.GatewayCustomerID, nil
		}

		cus, err = s.gw.FindCustomer(ctx, t.Name, ExternalID(t.ID))
		if errors.Is(err, errutil.ErrNotFound) {
			return "", errutil.Conflict("gateway customer exists but could not be found by its external reference", err)
		}
		if err != nil {
			return "", err
		}
		zapLog.Info("existing gateway customer recovered", zap.String("customer_id", cus.CustomerID))
	}

	if err := s.tenants.Update(ctx, t.ID, map[string]any{"gateway_customer_id": cus.CustomerID}); err != nil {
		return "", err
	}
	zapLog.Info("gateway customer linked", zap.String("customer_id", cus.CustomerID))
	return cus.CustomerID, nil
}

// ConfirmRegistration applies a card registration token. Replays are no-ops.
func (s *Service) ConfirmRegistration(ctx context.Context, token string) (Outcome, error) {
	zapLog := logger.FromContext(ctx).With(zap.String("kind", string(KindRegistration)))

	seen, err := s.seen(ctx, KindRegistration, token)
	if err != nil {
		return "", err
	}
	if seen {
		return s.observe(KindRegistration, Duplicate), nil
	}

	st, err := s.gw.GetRegistrationStatus(ctx, token)
	if err != nil {
		return "", err
	}
	if !st.Registered() {
		zapLog.Info("card registration not completed", zap.Int64("status", int64(st.Status)))
		return s.observe(KindRegistration, Ignored), nil
	}

	t, err := s.tenants.FindByGatewayCustomer(ctx, st.CustomerID)
	if errors.Is(err, errutil.ErrNotFound) {
		zapLog.Warn("registration for unknown customer", zap.String("customer_id", st.CustomerID))
		return s.observe(KindRegistration, Unmatched), nil
	}
	if err != nil {
		return "", err
	}

	outcome := Applied
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.record(ctx, tx, KindRegistration, token, t.ID, string(Applied), st)
		if err != nil {
			return err
		}
		if !inserted {
			outcome = Duplicate
			return nil
		}
		return s.tenants.WithTx(tx).Update(ctx, t.ID, map[string]any{
			"has_payment_method": true,
			"card_brand":         st.CreditCardType,
			"card_last4":         st.Last4CardDigits,
		})
	})
	if err != nil {
		return "", err
	}

	zapLog.Info("card registration confirmed", zap.String("tenant_id", t.ID), zap.String("outcome", string(outcome)))
	return s.observe(KindRegistration, outcome), nil
}

// Subscribe creates the gateway subscription for plan. Local state changes
// only after the gateway confirms; a successful subscription is one of the
// two ways back to ACTIVE.
func (s *Service) Subscribe(ctx context.Context, tenantID string, plan tenant.PlanType) (*tenant.Tenant, error) {
	zapLog := logger.FromContext(ctx).With(zap.String("tenant_id", tenantID), zap.String("plan", string(plan)))

	if !plan.Valid() {
		return nil, errutil.ValidationFailed(fmt.Sprintf("unknown plan %q", plan), nil)
	}
	planID, ok := s.planIDs[plan]
	if !ok || planID == "" {
		return nil, errutil.Configuration(fmt.Sprintf("no gateway plan configured for %s", plan), nil)
	}

	t, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !t.Billable() {
		return nil, errutil.UnprocessableEntity("institutional tenants are not billed", nil)
	}
	if !t.HasPaymentMethod || t.GatewayCustomerID == "" {
		return nil, errutil.UnprocessableEntity("register a payment method first", nil)
	}
	if t.GatewaySubscriptionID != "" && t.SubscriptionStatus == tenant.Active && t.PlanType == plan {
		return nil, errutil.Conflict("tenant is already subscribed to this plan", nil)
	}

	// the cancelled id is cleared before the replacement is created
	if t.GatewaySubscriptionID != "" {
		if _, err := s.gw.CancelSubscription(ctx, t.GatewaySubscriptionID); err != nil {
			return nil, err
		}
		if _, err := s.tenants.ClearGatewaySubscription(ctx, t.ID, t.GatewaySubscriptionID); err != nil {
			zapLog.Error("gateway subscription cancelled but local clear failed",
				zap.String("subscription_id", t.GatewaySubscriptionID), zap.Error(err))
			return nil, errutil.Internal("failed to clear cancelled subscription", err)
		}
		zapLog.Info("previous gateway subscription cancelled", zap.String("subscription_id", t.GatewaySubscriptionID))
	}

	sub, err := s.gw.CreateSubscription(ctx, t.GatewayCustomerID, planID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	target := now.AddDate(0, s.intervalMonths, 0)
	if end, ok := sub.PaidThrough(); ok && end.After(target) {
		target = end
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := s.tenants.WithTx(tx)
		if err := store.Update(ctx, t.ID, map[string]any{
			"plan_type":               plan,
			"gateway_subscription_id": sub.SubscriptionID,
		}); err != nil {
			return err
		}
		if _, err := store.Transition(ctx, t.ID, []tenant.SubscriptionStatus{tenant.Suspended, tenant.Cancelled}, tenant.Active, nil); err != nil {
			return err
		}
		_, err := store.AdvanceBillingDate(ctx, t.ID, target)
		return err
	})
	if err != nil {
		zapLog.Error("gateway subscription created but local update failed",
			zap.String("subscription_id", sub.SubscriptionID), zap.Error(err))
		return nil, errutil.Internal("failed to store subscription", err)
	}

	zapLog.Info("tenant subscribed", zap.String("subscription_id", sub.SubscriptionID))
	return s.tenants.Get(ctx, t.ID)
}

// ConfirmPayment applies a payment confirmation token. A paid recurring
// charge moves the tenant's billing date to max(current, paidAt+interval);
// a paid one-off charge settles the fee with the same commerce order.
func (s *Service) ConfirmPayment(ctx context.Context, token string) (Outcome, error) {
	zapLog := logger.FromContext(ctx).With(zap.String("kind", string(KindPayment)))

	seen, err := s.seen(ctx, KindPayment, token)
	if err != nil {
		return "", err
	}
	if seen {
		return s.observe(KindPayment, Duplicate), nil
	}

	ps, err := s.gw.GetPaymentStatus(ctx, token)
	if err != nil {
		return "", err
	}
	if !ps.Paid() {
		zapLog.Info("payment not paid", zap.Int64("status", int64(ps.Status)), zap.String("commerce_order", ps.CommerceOrder))
		return s.observe(KindPayment, Ignored), nil
	}

	paidAt, ok := ps.PaidAt()
	if !ok {
		paidAt = s.now().UTC()
	}

	if !ps.IsSubscriptionCharge() {
		return s.settleFee(ctx, token, ps, paidAt)
	}

	t, err := s.correlate(ctx, ps)
	if errors.Is(err, errutil.ErrNotFound) {
		zapLog.Warn("subscription charge for unknown tenant",
			zap.String("subscription_id", ps.SubscriptionID), zap.String("customer_id", ps.CustomerID))
		return s.observe(KindPayment, Unmatched), nil
	}
	if err != nil {
		return "", err
	}

	zapLog = zapLog.With(zap.String("tenant_id", t.ID))
	target := paidAt.AddDate(0, s.intervalMonths, 0)
	outcome := Applied

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := "advanced"
		if t.SubscriptionStatus != tenant.Active {
			result = "tenant_" + strings.ToLower(string(t.SubscriptionStatus))
		}
		inserted, err := s.record(ctx, tx, KindPayment, token, t.ID, result, ps)
		if err != nil {
			return err
		}
		if !inserted {
			outcome = Duplicate
			return nil
		}
		if t.SubscriptionStatus != tenant.Active {
			// only an administrator or a new subscription reactivates
			zapLog.Warn("charge confirmed for inactive tenant, status left unchanged",
				zap.String("status", string(t.SubscriptionStatus)))
			return nil
		}
		_, err = s.tenants.WithTx(tx).AdvanceBillingDate(ctx, t.ID, target)
		return err
	})
	if err != nil {
		return "", err
	}

	zapLog.Info("subscription charge confirmed", zap.Time("target", target), zap.String("outcome", string(outcome)))
	return s.observe(KindPayment, outcome), nil
}

func (s *Service) settleFee(ctx context.Context, token string, ps *gateway.PaymentStatus, paidAt time.Time) (Outcome, error) {
	zapLog := logger.FromContext(ctx).With(zap.String("commerce_order", ps.CommerceOrder))
	if s.fees == nil || ps.CommerceOrder == "" {
		zapLog.Warn("one-off payment with nothing to settle")
		return s.observe(KindPayment, Unmatched), nil
	}

	settled, err := s.fees.SettlePayment(ctx, ps.CommerceOrder, paidAt)
	if err != nil {
		return "", err
	}
	if !settled {
		zapLog.Warn("no open fee for commerce order")
		return s.observe(KindPayment, Unmatched), nil
	}

	if _, err := s.record(ctx, s.db, KindPayment, token, "", "fee_paid", ps); err != nil {
		zapLog.Warn("failed to record fee payment event", zap.Error(err))
	}
	zapLog.Info("fee payment confirmed")
	return s.observe(KindPayment, Applied), nil
}

// correlate finds the tenant by stored gateway subscription id, then by
// stored customer id. Payer email is never used.
func (s *Service) correlate(ctx context.Context, ps *gateway.PaymentStatus) (*tenant.Tenant, error) {
	t, err := s.tenants.FindByGatewaySubscription(ctx, ps.SubscriptionID)
	if err == nil || !errors.Is(err, errutil.ErrNotFound) {
		return t, err
	}
	return s.tenants.FindByGatewayCustomer(ctx, ps.CustomerID)
}

// Cancel cancels at the gateway first; the tenant only changes once the
// gateway has confirmed.
func (s *Service) Cancel(ctx context.Context, tenantID string) (*tenant.Tenant, error) {
	t, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if t.SubscriptionStatus == tenant.Cancelled {
		return nil, errutil.InvalidTransition("subscription is already cancelled")
	}

	if t.GatewaySubscriptionID != "" {
		if _, err := s.gw.CancelSubscription(ctx, t.GatewaySubscriptionID); err != nil {
			return nil, err
		}
	}

	changed, err := s.tenants.Transition(ctx, tenantID,
		[]tenant.SubscriptionStatus{tenant.Active, tenant.Suspended}, tenant.Cancelled,
		map[string]any{"gateway_subscription_id": ""})
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, errutil.InvalidTransition("subscription changed concurrently")
	}

	logger.FromContext(ctx).Info("subscription cancelled", zap.String("tenant_id", tenantID))
	return s.tenants.Get(ctx, tenantID)
}

// Reactivate moves a SUSPENDED or CANCELLED tenant back to ACTIVE with a
// billing date of at least one interval from now.
func (s *Service) Reactivate(ctx context.Context, tenantID string) (*tenant.Tenant, error) {
	target := s.now().UTC().AddDate(0, s.intervalMonths, 0)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := s.tenants.WithTx(tx)
		changed, err := store.Transition(ctx, tenantID,
			[]tenant.SubscriptionStatus{tenant.Suspended, tenant.Cancelled}, tenant.Active, nil)
		if err != nil {
			return err
		}
		if !changed {
			if _, err := store.Get(ctx, tenantID); err != nil {
				return err
			}
			return errutil.InvalidTransition("only suspended or cancelled tenants can be reactivated")
		}
		_, err = store.AdvanceBillingDate(ctx, tenantID, target)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("subscription reactivated", zap.String("tenant_id", tenantID))
	return s.tenants.Get(ctx, tenantID)
}

func (s *Service) seen(ctx context.Context, kind EventKind, token string) (bool, error) {
	if token == "" {
		return false, errutil.BadRequest("token is required", nil)
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&GatewayEvent{}).Where("kind = ? AND token = ?", kind, token).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("lookup gateway event: %w", err)
	}
	return n > 0, nil
}

// record inserts the event and reports false when the token was already
// recorded.
func (s *Service) record(ctx context.Context, db *gorm.DB, kind EventKind, token, tenantID, result string, payload any) (bool, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("encode gateway event: %w", err)
	}

	res := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&GatewayEvent{
		ID:          s.node.Generate().String(),
		Kind:        kind,
		Token:       token,
		TenantID:    tenantID,
		Result:      result,
		Payload:     datatypes.JSON(raw),
		ProcessedAt: s.now().UTC(),
	})
	if res.Error != nil {
		return false, fmt.Errorf("record gateway event: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Service) observe(kind EventKind, outcome Outcome) Outcome {
	metrics.GatewayEvents.WithLabelValues(string(kind), string(outcome)).Inc()
	return outcome
}
