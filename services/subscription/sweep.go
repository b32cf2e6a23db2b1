package subscription

import (
	"context"
	"time"

	"github.com/juancristobaldev/lanovena-api/pkg/featureflags"
	"github.com/juancristobaldev/lanovena-api/pkg/logger"
	"github.com/juancristobaldev/lanovena-api/services/scheduler"
	"github.com/juancristobaldev/lanovena-api/services/tenant"

	"go.uber.org/zap"
)

const SweepName = "subscription_suspension"

func (s *Service) Name() string { return SweepName }

// Sweep suspends ACTIVE commercial tenants whose billing date is more than
// the grace period in the past. Each suspension is conditional on the stored
// date, so a payment applied mid-sweep wins. One tenant failing does not stop
// the rest.
func (s *Service) Sweep(ctx context.Context, now time.Time) (scheduler.Report, error) {
	zapLog := logger.FromContext(ctx).With(zap.String("sweep", SweepName))

	var report scheduler.Report
	if !s.flags.Enabled(ctx, featureflags.SubscriptionAutoSuspend, true) {
		zapLog.Info("automatic suspension disabled by flag")
		report.Skipped = true
		return report, nil
	}
	reconcile := s.flags.Enabled(ctx, featureflags.SubscriptionReconcile, true)

	cutoff := now.UTC().Add(-s.grace)
	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		batch, err := s.tenants.ListOverdue(ctx, cutoff, afterID, s.batch)
		if err != nil {
			return report, err
		}
		if len(batch) == 0 {
			break
		}

		for _, t := range batch {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			report.Examined++
			s.sweepOne(ctx, t, cutoff, reconcile, &report)
		}

		afterID = batch[len(batch)-1].ID
		if len(batch) < s.batch {
			break
		}
	}

	zapLog.Info("suspension sweep finished",
		zap.Time("cutoff", cutoff),
		zap.Int("examined", report.Examined),
		zap.Int("suspended", report.Changed),
		zap.Int("reconciled", report.Reconciled),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (s *Service) sweepOne(ctx context.Context, t *tenant.Tenant, cutoff time.Time, reconcile bool, report *scheduler.Report) {
	zapLog := logger.FromContext(ctx).With(zap.String("tenant_id", t.ID))

	if reconcile && t.GatewaySubscriptionID != "" {
		sub, err := s.gw.GetSubscription(ctx, t.GatewaySubscriptionID)
		if err != nil {
			zapLog.Warn("gateway subscription lookup failed, tenant left for next sweep", zap.Error(err))
			report.Failed++
			return
		}
		if end, ok := sub.PaidThrough(); ok && end.After(cutoff) {
			advanced, err := s.tenants.AdvanceBillingDate(ctx, t.ID, end)
			if err != nil {
				zapLog.Error("failed to reconcile billing date", zap.Error(err))
				report.Failed++
				return
			}
			if advanced {
				zapLog.Info("billing date reconciled from gateway", zap.Time("paid_through", end))
			}
			report.Reconciled++
			return
		}
	}

	suspended, err := s.tenants.Suspend(ctx, t.ID, cutoff)
	if err != nil {
		zapLog.Error("failed to suspend tenant", zap.Error(err))
		report.Failed++
		return
	}
	if suspended {
		zapLog.Info("tenant suspended", zap.Time("next_billing_date", t.NextBillingDate))
		report.Changed++
	}
}
