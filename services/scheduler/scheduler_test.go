package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/juancristobaldev/lanovena-api/pkg/config"
	"github.com/juancristobaldev/lanovena-api/pkg/errutil"
	"github.com/juancristobaldev/lanovena-api/pkg/lock"
	"github.com/juancristobaldev/lanovena-api/pkg/rediskey"
	"github.com/juancristobaldev/lanovena-api/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeSweeper struct {
	name   string
	report Report
	err    error

	mu       sync.Mutex
	calls    int
	lastNow  time.Time
	deadline bool
}

func (f *fakeSweeper) Name() string { return f.name }

func (f *fakeSweeper) Sweep(ctx context.Context, now time.Time) (Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastNow = now
	_, f.deadline = ctx.Deadline()
	return f.report, f.err
}

func newScheduler(t *testing.T, cfg *config.Config, sweepers ...Sweeper) (*Scheduler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	node := testutil.NewNode(t)
	if cfg == nil {
		cfg = &config.Config{}
		cfg.Scheduler.Timezone = "UTC"
		cfg.Scheduler.SuspensionSpec = "0 4 * * *"
		cfg.Scheduler.FeeAgingSpec = "30 4 * * *"
	}

	s, err := New(Params{
		Sweepers: sweepers,
		Locker:   lock.NewRedisLocker(rdb, node),
		DB:       testutil.NewTestDB(t, Models()...),
		Node:     node,
		Config:   cfg,
	})
	require.NoError(t, err)
	return s, mr
}

func TestTriggerRunsSweepAndRecords(t *testing.T) {
	sw := &fakeSweeper{name: "fee_aging", report: Report{Examined: 3, Changed: 3}}
	s, mr := newScheduler(t, nil, sw)
	ctx := context.Background()

	report, err := s.Trigger(ctx, "fee_aging")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Changed)
	assert.Equal(t, 1, sw.calls)
	assert.True(t, sw.deadline)
	assert.False(t, mr.Exists(rediskey.BuildSweepLockKey("fee_aging")))

	runs, err := s.Runs(ctx, "fee_aging", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "ok", runs[0].Outcome)
	assert.Equal(t, "manual", runs[0].Trigger)
	assert.JSONEq(t, `{"examined":3,"changed":3,"failed":0}`, string(runs[0].Report))
}

func TestTriggerUnknownSweep(t *testing.T) {
	s, _ := newScheduler(t, nil)

	_, err := s.Trigger(context.Background(), "nope")
	require.ErrorIs(t, err, errutil.ErrNotFound)
}

func TestTriggerWhileLocked(t *testing.T) {
	sw := &fakeSweeper{name: "subscription_suspension"}
	s, mr := newScheduler(t, nil, sw)
	require.NoError(t, mr.Set(rediskey.BuildSweepLockKey("subscription_suspension"), "other-replica"))

	report, err := s.Trigger(context.Background(), "subscription_suspension")
	var base errutil.BaseError
	require.ErrorAs(t, err, &base)
	assert.Equal(t, errutil.StatusConflict, base.Code)
	assert.True(t, report.Skipped)
	assert.Zero(t, sw.calls)
}

func TestSweepErrorIsRecorded(t *testing.T) {
	sw := &fakeSweeper{name: "fee_aging", err: errors.New("db down")}
	s, _ := newScheduler(t, nil, sw)
	ctx := context.Background()

	_, err := s.Trigger(ctx, "fee_aging")
	require.Error(t, err)

	runs, err := s.Runs(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "error", runs[0].Outcome)
	assert.Equal(t, "db down", runs[0].Error)
}

func TestSweepsRunInConfiguredTimezone(t *testing.T) {
	cfg := &config.Config{}
	cfg.Scheduler.Timezone = "America/Santiago"
	cfg.Scheduler.FeeAgingSpec = "30 4 * * *"

	sw := &fakeSweeper{name: "fee_aging"}
	s, _ := newScheduler(t, cfg, sw)
	s.now = func() time.Time { return time.Date(2026, 3, 10, 7, 30, 0, 0, time.UTC) }

	_, err := s.Trigger(context.Background(), "fee_aging")
	require.NoError(t, err)
	assert.Equal(t, "America/Santiago", sw.lastNow.Location().String())
	assert.Len(t, s.cron.Entries(), 1)
}

func TestInvalidConfiguration(t *testing.T) {
	cfg := &config.Config{}
	cfg.Scheduler.Timezone = "Mars/Olympus"
	_, err := New(Params{Config: cfg})
	require.ErrorIs(t, err, errutil.ErrConfiguration)

	cfg = &config.Config{}
	cfg.Scheduler.SuspensionSpec = "every day"
	_, err = New(Params{Config: cfg, Sweepers: []Sweeper{&fakeSweeper{name: "subscription_suspension"}}})
	require.ErrorIs(t, err, errutil.ErrConfiguration)
}

func TestNamesAndSpecs(t *testing.T) {
	s, _ := newScheduler(t, nil,
		&fakeSweeper{name: "subscription_suspension"},
		&fakeSweeper{name: "fee_aging"},
	)
	assert.Equal(t, []string{"fee_aging", "subscription_suspension"}, s.Names())
	assert.Len(t, s.cron.Entries(), 2)

	s.Start()
	require.NoError(t, s.Stop(context.Background()))
}
