package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juancristobaldev/lanovena-api/pkg/config"
	"github.com/juancristobaldev/lanovena-api/pkg/errutil"
	"github.com/juancristobaldev/lanovena-api/pkg/logger"
	"github.com/juancristobaldev/lanovena-api/pkg/sequence"
	"github.com/juancristobaldev/lanovena-api/services/gateway"
	"github.com/juancristobaldev/lanovena-api/services/scheduler"
	"github.com/juancristobaldev/lanovena-api/services/tenant"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	SweepName = "fee_aging"

	defaultDueDay       = 5
	defaultOverdueAfter = 24 * time.Hour
)

var openStatuses = []FeeStatus{FeePending, FeeOverdue}

// Service manages monthly fees. Every status change is a single conditional
// UPDATE on the current status, so the aging sweep and a payment can race.
type Service struct {
	db           *gorm.DB
	tenants      *tenant.Store
	gw           gateway.Client
	seq          sequence.Generator
	node         *snowflake.Node
	dueDay       int
	overdueAfter time.Duration
	now          func() time.Time
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Tenants  *tenant.Store
	Gateway  gateway.Client
	Sequence sequence.Generator
	Node     *snowflake.Node
	Config   *config.Config
}

func NewService(p ServiceParams) *Service {
	s := &Service{
		db:           p.DB,
		tenants:      p.Tenants,
		gw:           p.Gateway,
		seq:          p.Sequence,
		node:         p.Node,
		dueDay:       p.Config.Finance.DueDay,
		overdueAfter: p.Config.Finance.OverdueAfter,
		now:          time.Now,
	}
	if s.dueDay < 1 || s.dueDay > 28 {
		s.dueDay = defaultDueDay
	}
	if s.overdueAfter <= 0 {
		s.overdueAfter = defaultOverdueAfter
	}
	return s
}

func period(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// GenerateForPeriod creates one fee per non-scholarship player of the tenant.
// Players that already have a fee for the period are skipped, so the call
// can be repeated.
func (s *Service) GenerateForPeriod(ctx context.Context, tenantID string, year, month int, amount int64) (int, error) {
	zapLog := logger.FromContext(ctx).With(zap.String("tenant_id", tenantID), zap.String("period", period(year, month)))

	if month < 1 || month > 12 || year < 2000 {
		return 0, errutil.ValidationFailed("invalid period", nil,
			errutil.WithDetails(errutil.Detail{Field: "period", Message: period(year, month)}))
	}
	if amount <= 0 {
		return 0, errutil.ValidationFailed("amount must be positive", nil)
	}
	if _, err := s.tenants.Get(ctx, tenantID); err != nil {
		return 0, err
	}

	players, err := s.tenants.ListPlayers(ctx, tenantID, true)
	if err != nil {
		return 0, err
	}
	if len(players) == 0 {
		return 0, nil
	}

	due := time.Date(year, time.Month(month), s.dueDay, 0, 0, 0, 0, time.UTC)
	fees := make([]*MonthlyFee, 0, len(players))
	for _, p := range players {
		fees = append(fees, &MonthlyFee{
			ID:       s.node.Generate().String(),
			TenantID: tenantID,
			PlayerID: p.ID,
			Period:   period(year, month),
			Amount:   amount,
			DueDate:  due,
			Status:   FeePending,
		})
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(fees, 200)
	if res.Error != nil {
		return 0, fmt.Errorf("create fees: %w", res.Error)
	}

	zapLog.Info("fees generated", zap.Int64("created", res.RowsAffected), zap.Int("players", len(players)))
	return int(res.RowsAffected), nil
}

// MarkPaid records a payment taken outside the gateway.
func (s *Service) MarkPaid(ctx context.Context, tenantID, feeID string) (*MonthlyFee, error) {
	paidAt := s.now().UTC()
	res := s.db.WithContext(ctx).Model(&MonthlyFee{}).
		Where("id = ? AND tenant_id = ? AND status IN ?", feeID, tenantID, openStatuses).
		Updates(map[string]any{"status": FeePaid, "paid_at": paidAt, "updated_at": paidAt})
	if res.Error != nil {
		return nil, fmt.Errorf("mark fee paid: %w", res.Error)
	}

	fee, err := s.Get(ctx, tenantID, feeID)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		if fee.Status == FeePaid {
			return nil, errutil.Conflict("fee is already paid", nil)
		}
		return nil, errutil.InvalidTransition(fmt.Sprintf("fee is %s", fee.Status))
	}

	logger.FromContext(ctx).Info("fee marked paid", zap.String("tenant_id", tenantID), zap.String("fee_id", feeID))
	return fee, nil
}

// Waive is only allowed before the fee ages.
func (s *Service) Waive(ctx context.Context, tenantID, feeID string) (*MonthlyFee, error) {
	res := s.db.WithContext(ctx).Model(&MonthlyFee{}).
		Where("id = ? AND tenant_id = ? AND status = ?", feeID, tenantID, FeePending).
		Updates(map[string]any{"status": FeeWaived, "updated_at": s.now().UTC()})
	if res.Error != nil {
		return nil, fmt.Errorf("waive fee: %w", res.Error)
	}

	fee, err := s.Get(ctx, tenantID, feeID)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, errutil.InvalidTransition(fmt.Sprintf("only pending fees can be waived, fee is %s", fee.Status))
	}

	logger.FromContext(ctx).Info("fee waived", zap.String("tenant_id", tenantID), zap.String("fee_id", feeID))
	return fee, nil
}

func (s *Service) Get(ctx context.Context, tenantID, feeID string) (*MonthlyFee, error) {
	var fee MonthlyFee
	err := s.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", feeID, tenantID).First(&fee).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errutil.NotFound("fee not found", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("query fee: %w", err)
	}
	return &fee, nil
}

// Summary returns count and amount for every status, zeros included.
func (s *Service) Summary(ctx context.Context, tenantID string) (*Summary, error) {
	var rows []StatusTotal
	err := s.db.WithContext(ctx).Model(&MonthlyFee{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Where("tenant_id = ?", tenantID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("summarize fees: %w", err)
	}

	byStatus := make(map[FeeStatus]StatusTotal, len(rows))
	for _, r := range rows {
		byStatus[r.Status] = r
	}

	out := &Summary{TenantID: tenantID}
	for _, st := range FeeStatuses {
		t := byStatus[st]
		t.Status = st
		out.Totals = append(out.Totals, t)
	}
	return out, nil
}

// Checkout starts a one-off gateway payment for an open fee. The fee keeps
// the latest commerce order; the payment confirmation settles it by that
// reference.
func (s *Service) Checkout(ctx context.Context, tenantID, feeID, email string) (*gateway.Redirect, error) {
	zapLog := logger.FromContext(ctx).With(zap.String("tenant_id", tenantID), zap.String("fee_id", feeID))

	fee, err := s.Get(ctx, tenantID, feeID)
	if err != nil {
		return nil, err
	}
	if fee.Status.Terminal() {
		return nil, errutil.InvalidTransition(fmt.Sprintf("fee is %s", fee.Status))
	}

	order, err := s.seq.NextCommerceOrder(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("next commerce order: %w", err)
	}

	res := s.db.WithContext(ctx).Model(&MonthlyFee{}).
		Where("id = ? AND status IN ?", fee.ID, openStatuses).
		Updates(map[string]any{"commerce_order": order, "updated_at": s.now().UTC()})
	if res.Error != nil {
		return nil, fmt.Errorf("store commerce order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errutil.InvalidTransition("fee was settled concurrently")
	}

	redirect, err := s.gw.CreatePayment(ctx, gateway.PaymentRequest{
		CommerceOrder: order,
		Subject:       fmt.Sprintf("Mensualidad %s", fee.Period),
		Amount:        fee.Amount,
		Email:         email,
	})
	if err != nil {
		return nil, err
	}

	zapLog.Info("fee checkout started", zap.String("commerce_order", order))
	return redirect, nil
}

// SettlePayment marks the open fee carrying commerceOrder as paid. It
// reports false when no open fee has that reference.
func (s *Service) SettlePayment(ctx context.Context, commerceOrder string, paidAt time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&MonthlyFee{}).
		Where("commerce_order = ? AND status IN ?", commerceOrder, openStatuses).
		Updates(map[string]any{"status": FeePaid, "paid_at": paidAt.UTC(), "updated_at": s.now().UTC()})
	if res.Error != nil {
		return false, fmt.Errorf("settle fee: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Service) Name() string { return SweepName }

// Sweep moves PENDING fees whose due date is older than the aging threshold
// to OVERDUE in one statement. Running it again changes nothing.
func (s *Service) Sweep(ctx context.Context, now time.Time) (scheduler.Report, error) {
	cutoff := now.UTC().Add(-s.overdueAfter)

	res := s.db.WithContext(ctx).Model(&MonthlyFee{}).
		Where("status = ? AND due_date < ?", FeePending, cutoff).
		Updates(map[string]any{"status": FeeOverdue, "updated_at": now.UTC()})
	if res.Error != nil {
		return scheduler.Report{}, fmt.Errorf("age fees: %w", res.Error)
	}

	n := int(res.RowsAffected)
	logger.FromContext(ctx).Info("fee aging sweep finished", zap.Time("cutoff", cutoff), zap.Int("overdue", n))
	return scheduler.Report{Examined: n, Changed: n}, nil
}
