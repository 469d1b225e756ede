package command

import (
	"fmt"
	"strings"

	"github.com/hastexo/webhook-receiver/core"
)

const (
	TypeProcessOrder  = "receiver.command.order.process"
	TypeScheduleOrder = "receiver.command.order.schedule"
)

// ProcessOrderMessage runs one order through the processing engine with
// the task runner's retry and finalization policy.
type ProcessOrderMessage struct {
	Job core.OrderJob
}

func (ProcessOrderMessage) Type() string { return TypeProcessOrder }

func (m ProcessOrderMessage) Validate() error {
	if err := m.Job.Vendor.Validate(); err != nil {
		return commandInvalidInputError(fmt.Sprintf("command: %v", err))
	}
	if strings.TrimSpace(m.Job.ExternalID) == "" {
		return commandInvalidInputError("command: external order id is required")
	}
	return nil
}

// ScheduleOrderMessage hands one order job to the queue for asynchronous
// processing.
type ScheduleOrderMessage struct {
	Job core.OrderJob
}

func (ScheduleOrderMessage) Type() string { return TypeScheduleOrder }

func (m ScheduleOrderMessage) Validate() error {
	if err := m.Job.Vendor.Validate(); err != nil {
		return commandInvalidInputError(fmt.Sprintf("command: %v", err))
	}
	if strings.TrimSpace(m.Job.ExternalID) == "" {
		return commandInvalidInputError("command: external order id is required")
	}
	return nil
}
