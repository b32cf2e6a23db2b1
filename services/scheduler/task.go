package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/juancristobaldev/lanovena-api/pkg/errutil"
	"github.com/juancristobaldev/lanovena-api/pkg/taskname"

	"github.com/hibiken/asynq"
)

type SweepPayload struct {
	Name string `json:"name"`
}

// NewSweepTask queues one run of the named sweep on the worker. Runs queued
// within the same minute collapse into one task.
func NewSweepTask(name string, now time.Time) (*asynq.Task, error) {
	payload, err := json.Marshal(SweepPayload{Name: name})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.SweepRun, payload,
		asynq.Queue(taskname.QueueLow),
		asynq.MaxRetry(0),
		asynq.TaskID(fmt.Sprintf("%s:%s:%s", taskname.SweepRun, name, now.UTC().Format("200601021504"))),
		asynq.Retention(time.Hour),
	), nil
}

func (s *Scheduler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(taskname.SweepRun, s.HandleSweepTask)
}

func (s *Scheduler) HandleSweepTask(ctx context.Context, t *asynq.Task) error {
	var p SweepPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode sweep payload: %v: %w", err, asynq.SkipRetry)
	}
	if _, ok := s.sweepers[p.Name]; !ok {
		return fmt.Errorf("unknown sweep %q: %w", p.Name, asynq.SkipRetry)
	}

	_, err := s.run(ctx, p.Name, "queued")
	if errors.Is(err, ErrAlreadyRunning) {
		return nil
	}
	var be errutil.BaseError
	if errors.As(err, &be) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}
