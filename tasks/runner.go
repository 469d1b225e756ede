package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hastexo/webhook-receiver/core"
	"github.com/hastexo/webhook-receiver/enrollment"
)

const (
	DefaultMaxAttempts   = 3
	DefaultSoftTimeLimit = 5 * time.Second
)

// OrderProcessor drives one order through its lifecycle.
type OrderProcessor interface {
	ProcessOrder(ctx context.Context, order *core.Order, payload map[string]any, sendEmail bool) (*core.Order, error)
}

type RunnerConfig struct {
	Processor     OrderProcessor
	Orders        core.OrderStore
	MaxAttempts   int
	SoftTimeLimit time.Duration
	Logger        core.Logger
	Hook          core.JobWorkerHook
	Sleep         func(ctx context.Context, d time.Duration) error
}

// Runner executes one order job with bounded retries and a soft time
// limit per attempt. It owns the only path that moves an order from
// processing to error: the engine never writes the error state, so a
// retry can always re-enter while the order is mid-processing.
type Runner struct {
	processor     OrderProcessor
	orders        core.OrderStore
	maxAttempts   int
	softTimeLimit time.Duration
	logger        core.Logger
	hook          core.JobWorkerHook
	sleep         func(ctx context.Context, d time.Duration) error
}

func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Processor == nil {
		return nil, fmt.Errorf("tasks: order processor is required")
	}
	if cfg.Orders == nil {
		return nil, fmt.Errorf("tasks: order store is required")
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	softLimit := cfg.SoftTimeLimit
	if softLimit <= 0 {
		softLimit = DefaultSoftTimeLimit
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return &Runner{
		processor:     cfg.Processor,
		orders:        cfg.Orders,
		maxAttempts:   maxAttempts,
		softTimeLimit: softLimit,
		logger:        cfg.Logger,
		hook:          cfg.Hook,
		sleep:         sleep,
	}, nil
}

// Run processes job to completion or final failure. Each attempt re-reads
// the order's current persisted state; a stale in-memory copy across
// attempts would make the optimistic-concurrency checks lose writes.
func (r *Runner) Run(ctx context.Context, job core.OrderJob) error {
	if r == nil || r.processor == nil {
		return fmt.Errorf("tasks: runner is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		order, err := r.orders.Get(ctx, job.Vendor, job.ExternalID)
		if err != nil {
			return fmt.Errorf("tasks: fetch order %s/%s: %w", job.Vendor, job.ExternalID, err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.softTimeLimit)
		_, lastErr = r.processor.ProcessOrder(attemptCtx, order, job.Payload, job.SendEmail)
		cancel()

		if lastErr == nil {
			r.info("successfully processed order", "external_id", job.ExternalID, "attempt", attempt)
			return nil
		}

		if !Retryable(lastErr) || attempt >= r.maxAttempts {
			break
		}

		r.warn("failed to fully process order, retrying",
			"external_id", job.ExternalID,
			"attempt", attempt,
			"error", lastErr,
		)
		if r.hook != nil {
			r.hook.OnRetry(ctx, core.JobWorkerEvent{
				Message: &core.JobExecutionMessage{JobID: OrderJobID},
				Attempt: attempt,
				Err:     lastErr,
			})
		}
		if err := r.sleep(ctx, retryDelay(attempt)); err != nil {
			lastErr = err
			break
		}
	}

	r.error("failed to fully process order", "external_id", job.ExternalID, "error", lastErr)
	if err := r.finalize(ctx, job); err != nil {
		r.error("failed to mark order as errored", "external_id", job.ExternalID, "error", err)
	}
	return lastErr
}

// finalize moves the order to the error state, re-fetching it first so
// the conditional write runs against the current persisted state rather
// than whatever stale copy an earlier attempt held.
func (r *Runner) finalize(ctx context.Context, job core.OrderJob) error {
	order, err := r.orders.Get(ctx, job.Vendor, job.ExternalID)
	if err != nil {
		return err
	}
	if order.Status != core.StateProcessing {
		r.warn("order is not processing, leaving untouched",
			"external_id", job.ExternalID,
			"status", order.Status.String(),
		)
		return nil
	}
	return r.orders.Transition(ctx, order.ID, core.StateProcessing, core.StateError)
}

// Retryable reports whether an attempt failure is transient. Enrollment
// API failures, soft-time-limit aborts, and lost concurrency races are
// all retried; everything else fails the job immediately.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *enrollment.APIError
	if errors.As(err, &apiErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return errors.Is(err, core.ErrStateConflict)
}

func retryDelay(attempt int) time.Duration {
	return time.Duration(attempt) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *Runner) info(msg string, args ...any) {
	if r != nil && r.logger != nil {
		r.logger.Info(msg, args...)
	}
}

func (r *Runner) warn(msg string, args ...any) {
	if r != nil && r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}

func (r *Runner) error(msg string, args ...any) {
	if r != nil && r.logger != nil {
		r.logger.Error(msg, args...)
	}
}
