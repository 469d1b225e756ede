package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hastexo/webhook-receiver/core"
)

type WorkerConfig struct {
	Dequeuer core.JobDequeuer
	Runner   *Runner
	Logger   core.Logger
	Hook     core.JobWorkerHook
}

// Worker pulls order jobs off the queue and runs them one at a time.
// Each delivery is acked on success and dead-lettered on final failure;
// per-attempt retries happen inside the runner, not the queue.
type Worker struct {
	dequeuer core.JobDequeuer
	runner   *Runner
	logger   core.Logger
	hook     core.JobWorkerHook
}

func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Dequeuer == nil {
		return nil, fmt.Errorf("tasks: dequeuer is required")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("tasks: runner is required")
	}
	return &Worker{
		dequeuer: cfg.Dequeuer,
		runner:   cfg.Runner,
		logger:   cfg.Logger,
		hook:     cfg.Hook,
	}, nil
}

// Run consumes deliveries until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.dequeuer == nil {
		return fmt.Errorf("tasks: worker is not configured")
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		delivery, err := w.dequeuer.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			w.warn("dequeue failed", "error", err)
			continue
		}
		w.handle(ctx, delivery)
	}
}

// Handle processes a single delivery. Exposed so queue drivers that push
// deliveries can reuse the same ack/nack policy as the pull loop.
func (w *Worker) Handle(ctx context.Context, delivery core.JobDelivery) {
	w.handle(ctx, delivery)
}

func (w *Worker) handle(ctx context.Context, delivery core.JobDelivery) {
	if delivery == nil {
		return
	}
	msg := delivery.Message()
	started := time.Now().UTC()
	w.fireStart(ctx, msg, started)

	job, err := DecodeOrderJob(msg)
	if err != nil {
		w.warn("discarding undecodable message", "error", err)
		w.nack(ctx, delivery, core.JobNackOptions{DeadLetter: true, Reason: err.Error()})
		w.fireFailure(ctx, msg, started, err)
		return
	}

	if err := w.runner.Run(ctx, job); err != nil {
		w.nack(ctx, delivery, core.JobNackOptions{DeadLetter: true, Reason: err.Error()})
		w.fireFailure(ctx, msg, started, err)
		return
	}

	if err := delivery.Ack(ctx); err != nil {
		w.warn("failed to ack delivery", "job_id", messageJobID(msg), "error", err)
	}
	w.fireSuccess(ctx, msg, started)
}

func (w *Worker) nack(ctx context.Context, delivery core.JobDelivery, opts core.JobNackOptions) {
	if err := delivery.Nack(ctx, opts); err != nil {
		w.warn("failed to nack delivery", "error", err)
	}
}

func (w *Worker) fireStart(ctx context.Context, msg *core.JobExecutionMessage, started time.Time) {
	if w.hook != nil {
		w.hook.OnStart(ctx, core.JobWorkerEvent{Message: msg, StartedAt: started})
	}
}

func (w *Worker) fireSuccess(ctx context.Context, msg *core.JobExecutionMessage, started time.Time) {
	if w.hook != nil {
		w.hook.OnSuccess(ctx, core.JobWorkerEvent{
			Message:   msg,
			StartedAt: started,
			Duration:  time.Since(started),
		})
	}
}

func (w *Worker) fireFailure(ctx context.Context, msg *core.JobExecutionMessage, started time.Time, err error) {
	if w.hook != nil {
		w.hook.OnFailure(ctx, core.JobWorkerEvent{
			Message:   msg,
			StartedAt: started,
			Duration:  time.Since(started),
			Err:       err,
		})
	}
}

func (w *Worker) warn(msg string, args ...any) {
	if w != nil && w.logger != nil {
		w.logger.Warn(msg, args...)
	}
}

func messageJobID(msg *core.JobExecutionMessage) string {
	if msg == nil {
		return ""
	}
	return msg.JobID
}
