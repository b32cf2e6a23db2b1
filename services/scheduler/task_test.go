package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juancristobaldev/lanovena-api/pkg/rediskey"
	"github.com/juancristobaldev/lanovena-api/pkg/taskname"
)

func TestNewSweepTask(t *testing.T) {
	task, err := NewSweepTask("fee_aging", time.Date(2026, 3, 10, 4, 30, 15, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, taskname.SweepRun, task.Type())
	assert.JSONEq(t, `{"name":"fee_aging"}`, string(task.Payload()))
}

func TestHandleSweepTaskRecordsQueuedRun(t *testing.T) {
	sw := &fakeSweeper{name: "fee_aging", report: Report{Examined: 1, Changed: 1}}
	s, _ := newScheduler(t, nil, sw)
	mux := asynq.NewServeMux()
	s.Register(mux)

	task, err := NewSweepTask("fee_aging", time.Now())
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(context.Background(), task))

	runs, err := s.Runs(context.Background(), "fee_aging", 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "queued", runs[0].Trigger)
}

func TestHandleSweepTaskUnknownSkipsRetry(t *testing.T) {
	s, _ := newScheduler(t, nil)

	task, err := NewSweepTask("nope", time.Now())
	require.NoError(t, err)
	require.ErrorIs(t, s.HandleSweepTask(context.Background(), task), asynq.SkipRetry)
}

func TestHandleSweepTaskLockedIsDone(t *testing.T) {
	sw := &fakeSweeper{name: "fee_aging"}
	s, mr := newScheduler(t, nil, sw)
	require.NoError(t, mr.Set(rediskey.BuildSweepLockKey("fee_aging"), "other-replica"))

	task, err := NewSweepTask("fee_aging", time.Now())
	require.NoError(t, err)
	require.NoError(t, s.HandleSweepTask(context.Background(), task))
	assert.Equal(t, 0, sw.calls)
}
