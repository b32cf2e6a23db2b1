package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/juancristobaldev/lanovena-api/pkg/config"
	"github.com/juancristobaldev/lanovena-api/pkg/errutil"
	"github.com/juancristobaldev/lanovena-api/pkg/lock"
	"github.com/juancristobaldev/lanovena-api/pkg/logger"
	"github.com/juancristobaldev/lanovena-api/pkg/metrics"
	"github.com/juancristobaldev/lanovena-api/pkg/rediskey"

	"github.com/bwmarrin/snowflake"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultTickTimeout = 10 * time.Minute
	defaultLockTTL     = 15 * time.Minute
)

// ErrAlreadyRunning means another process holds the sweep's lock.
var ErrAlreadyRunning = errors.New("scheduler: sweep already running")

// SweepRun is the audit row written for every tick, skipped ones included.
type SweepRun struct {
	ID         string         `gorm:"column:id;primaryKey" json:"id"`
	Name       string         `gorm:"column:name;index;not null" json:"name"`
	Trigger    string         `gorm:"column:triggered_by" json:"trigger"`
	Outcome    string         `gorm:"column:outcome" json:"outcome"`
	Report     datatypes.JSON `gorm:"column:report" json:"report"`
	Error      string         `gorm:"column:error" json:"error,omitempty"`
	StartedAt  time.Time      `gorm:"column:started_at;index" json:"startedAt"`
	FinishedAt time.Time      `gorm:"column:finished_at" json:"finishedAt"`
}

// Scheduler runs the registered sweeps on their cron specs. A tick takes a
// redis lock so only one replica sweeps at a time, and is bounded by the tick
// timeout.
type Scheduler struct {
	sweepers    map[string]Sweeper
	specs       map[string]string
	locker      lock.Locker
	db          *gorm.DB
	node        *snowflake.Node
	loc         *time.Location
	tickTimeout time.Duration
	lockTTL     time.Duration
	cron        *cron.Cron
	now         func() time.Time
}

type Params struct {
	fx.In
	Sweepers []Sweeper `group:"sweepers"`
	Locker   lock.Locker
	DB       *gorm.DB
	Node     *snowflake.Node
	Config   *config.Config
}

func New(p Params) (*Scheduler, error) {
	sc := p.Config.Scheduler

	loc := time.UTC
	if sc.Timezone != "" {
		l, err := time.LoadLocation(sc.Timezone)
		if err != nil {
			return nil, errutil.Configuration(fmt.Sprintf("unknown scheduler timezone %q", sc.Timezone), err)
		}
		loc = l
	}

	s := &Scheduler{
		sweepers:    make(map[string]Sweeper, len(p.Sweepers)),
		specs:       map[string]string{},
		locker:      p.Locker,
		db:          p.DB,
		node:        p.Node,
		loc:         loc,
		tickTimeout: sc.TickTimeout,
		lockTTL:     sc.LockTTL,
		now:         time.Now,
	}
	if s.tickTimeout <= 0 {
		s.tickTimeout = defaultTickTimeout
	}
	if s.lockTTL <= 0 {
		s.lockTTL = defaultLockTTL
	}
	if s.lockTTL < s.tickTimeout {
		s.lockTTL = s.tickTimeout + time.Minute
	}
	for _, sw := range p.Sweepers {
		s.sweepers[sw.Name()] = sw
	}

	specs := map[string]string{
		"subscription_suspension": sc.SuspensionSpec,
		"fee_aging":               sc.FeeAgingSpec,
	}
	for name, spec := range specs {
		if _, ok := s.sweepers[name]; ok && spec != "" {
			s.specs[name] = spec
		}
	}

	s.cron = cron.New(cron.WithLocation(loc))
	for name, spec := range s.specs {
		name := name
		if _, err := s.cron.AddFunc(spec, func() { s.tick(name) }); err != nil {
			return nil, errutil.Configuration(fmt.Sprintf("invalid cron spec %q for %s", spec, name), err)
		}
	}

	return s, nil
}

// Names lists the registered sweeps.
func (s *Scheduler) Names() []string {
	out := make([]string, 0, len(s.sweepers))
	for name := range s.sweepers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *Scheduler) Start() {
	s.cron.Start()
	zap.L().Info("scheduler started", zap.Any("specs", s.specs), zap.String("timezone", s.loc.String()))
}

// Stop waits for a running tick to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) tick(name string) {
	zapLog := zap.L().With(zap.String("sweep", name), zap.String("trigger", "cron"))
	defer func() {
		if r := recover(); r != nil {
			zapLog.Error("sweep panicked", zap.Any("panic", r))
			metrics.SweepRuns.WithLabelValues(name, "panic").Inc()
		}
	}()

	if _, err := s.run(context.Background(), name, "cron"); err != nil && !errors.Is(err, ErrAlreadyRunning) {
		zapLog.Error("sweep failed", zap.Error(err))
	}
}

// Trigger runs a sweep now, outside its schedule.
func (s *Scheduler) Trigger(ctx context.Context, name string) (Report, error) {
	if _, ok := s.sweepers[name]; !ok {
		return Report{}, errutil.NotFound(fmt.Sprintf("unknown sweep %q", name), nil)
	}

	report, err := s.run(ctx, name, "manual")
	if errors.Is(err, ErrAlreadyRunning) {
		return report, errutil.Conflict("sweep is already running", err)
	}
	return report, err
}

func (s *Scheduler) run(ctx context.Context, name, trigger string) (Report, error) {
	sw, ok := s.sweepers[name]
	if !ok {
		return Report{}, errutil.NotFound(fmt.Sprintf("unknown sweep %q", name), nil)
	}
	zapLog := logger.FromContext(ctx).With(zap.String("sweep", name))

	release, err := s.locker.Acquire(ctx, rediskey.BuildSweepLockKey(name), s.lockTTL)
	if errors.Is(err, lock.ErrNotAcquired) {
		zapLog.Info("sweep skipped, lock held elsewhere")
		metrics.SweepRuns.WithLabelValues(name, "locked").Inc()
		return Report{Skipped: true}, ErrAlreadyRunning
	}
	if err != nil {
		metrics.SweepRuns.WithLabelValues(name, "error").Inc()
		return Report{}, fmt.Errorf("acquire sweep lock: %w", err)
	}
	defer func() {
		if err := release(context.Background()); err != nil {
			zapLog.Warn("failed to release sweep lock", zap.Error(err))
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, s.tickTimeout)
	defer cancel()

	started := s.now()
	report, sweepErr := sw.Sweep(runCtx, started.In(s.loc))
	finished := s.now()

	outcome := "ok"
	switch {
	case sweepErr != nil:
		outcome = "error"
	case report.Skipped:
		outcome = "skipped"
	}

	metrics.SweepRuns.WithLabelValues(name, outcome).Inc()
	metrics.SweepDuration.WithLabelValues(name).Observe(finished.Sub(started).Seconds())
	metrics.SweepItems.WithLabelValues(name, "examined").Add(float64(report.Examined))
	metrics.SweepItems.WithLabelValues(name, "changed").Add(float64(report.Changed))
	metrics.SweepItems.WithLabelValues(name, "failed").Add(float64(report.Failed))
	metrics.SweepItems.WithLabelValues(name, "reconciled").Add(float64(report.Reconciled))

	s.record(ctx, name, trigger, outcome, report, sweepErr, started, finished)

	if sweepErr != nil {
		zapLog.Error("sweep ended with error", zap.Error(sweepErr), zap.Int("changed", report.Changed))
		return report, sweepErr
	}
	zapLog.Info("sweep completed",
		zap.String("outcome", outcome),
		zap.Int("examined", report.Examined),
		zap.Int("changed", report.Changed),
		zap.Int("failed", report.Failed),
		zap.Duration("took", finished.Sub(started)),
	)
	return report, nil
}

func (s *Scheduler) record(ctx context.Context, name, trigger, outcome string, report Report, sweepErr error, started, finished time.Time) {
	raw, _ := json.Marshal(report)
	row := &SweepRun{
		ID:         s.node.Generate().String(),
		Name:       name,
		Trigger:    trigger,
		Outcome:    outcome,
		Report:     datatypes.JSON(raw),
		StartedAt:  started.UTC(),
		FinishedAt: finished.UTC(),
	}
	if sweepErr != nil {
		row.Error = sweepErr.Error()
	}

	// the tick context may already be past its deadline
	if err := s.db.WithContext(context.WithoutCancel(ctx)).Create(row).Error; err != nil {
		logger.FromContext(ctx).Warn("failed to record sweep run", zap.Error(err))
	}
}

// Runs returns the latest runs of a sweep, newest first.
func (s *Scheduler) Runs(ctx context.Context, name string, limit int) ([]*SweepRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []*SweepRun
	q := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit)
	if name != "" {
		q = q.Where("name = ?", name)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list sweep runs: %w", err)
	}
	return out, nil
}
