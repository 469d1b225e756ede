package command

import (
	"context"

	"github.com/hastexo/webhook-receiver/core"
)

// OrderRunner executes one order job to completion or final failure.
type OrderRunner interface {
	Run(ctx context.Context, job core.OrderJob) error
}

type ProcessOrderCommand struct {
	runner OrderRunner
}

func NewProcessOrderCommand(runner OrderRunner) *ProcessOrderCommand {
	return &ProcessOrderCommand{runner: runner}
}

func (c *ProcessOrderCommand) Execute(ctx context.Context, msg ProcessOrderMessage) error {
	if c == nil || c.runner == nil {
		return commandDependencyError("command: order runner is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.runner.Run(ctx, msg.Job)
}

type ScheduleOrderCommand struct {
	enqueuer core.JobEnqueuer
	encode   func(core.OrderJob) (*core.JobExecutionMessage, error)
}

func NewScheduleOrderCommand(
	enqueuer core.JobEnqueuer,
	encode func(core.OrderJob) (*core.JobExecutionMessage, error),
) *ScheduleOrderCommand {
	return &ScheduleOrderCommand{enqueuer: enqueuer, encode: encode}
}

func (c *ScheduleOrderCommand) Execute(ctx context.Context, msg ScheduleOrderMessage) error {
	if c == nil || c.enqueuer == nil || c.encode == nil {
		return commandDependencyError("command: job enqueuer is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	encoded, err := c.encode(msg.Job)
	if err != nil {
		return commandInvalidInputError(err.Error())
	}
	return c.enqueuer.Enqueue(ctx, encoded)
}
