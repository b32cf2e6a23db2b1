package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/juancristobaldev/lanovena-api/pkg/logger"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Enqueuer puts jobs on the worker queue. A task whose TaskID is already
// queued comes back as asynq.ErrTaskIDConflict so callers can treat it as
// done.
type Enqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type asynqEnqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(client *asynq.Client) Enqueuer {
	return &asynqEnqueuer{client: client}
}

func (e *asynqEnqueuer) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	zapLog := logger.FromContext(ctx).With(zap.String("task_type", task.Type()))

	info, err := e.client.EnqueueContext(ctx, task, opts...)
	switch {
	case errors.Is(err, asynq.ErrTaskIDConflict), errors.Is(err, asynq.ErrDuplicateTask):
		zapLog.Info("task already queued")
		return nil, fmt.Errorf("enqueue %s: %w", task.Type(), err)
	case err != nil:
		zapLog.Error("failed to enqueue task", zap.Error(err))
		return nil, fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}

	zapLog.Debug("task enqueued", zap.String("task_id", info.ID), zap.String("queue", info.Queue))
	return info, nil
}
