package tasks

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hastexo/webhook-receiver/core"
)

const (
	// OrderJobID names the handler a queue message is bound to.
	OrderJobID = "order.process"

	paramVendor     = "vendor"
	paramExternalID = "external_id"
	paramPayload    = "payload"
	paramSendEmail  = "send_email"
)

// EncodeOrderJob wraps one order job in a queue envelope. The idempotency
// key collapses duplicate deliveries for the same vendor order while the
// first one is in flight.
func EncodeOrderJob(job core.OrderJob) (*core.JobExecutionMessage, error) {
	if err := job.Vendor.Validate(); err != nil {
		return nil, err
	}
	externalID := strings.TrimSpace(job.ExternalID)
	if externalID == "" {
		return nil, fmt.Errorf("tasks: order job requires an external id")
	}
	return &core.JobExecutionMessage{
		JobID: OrderJobID,
		Parameters: map[string]any{
			paramVendor:     string(job.Vendor),
			paramExternalID: externalID,
			paramPayload:    job.Payload,
			paramSendEmail:  job.SendEmail,
		},
		IdempotencyKey: fmt.Sprintf("%s::%s::%s", OrderJobID, job.Vendor, externalID),
		DedupPolicy:    "drop",
	}, nil
}

// DecodeOrderJob unwraps a queue envelope back into an order job.
func DecodeOrderJob(msg *core.JobExecutionMessage) (core.OrderJob, error) {
	if msg == nil {
		return core.OrderJob{}, fmt.Errorf("tasks: message is required")
	}
	if msg.JobID != OrderJobID {
		return core.OrderJob{}, fmt.Errorf("tasks: unexpected job id %q", msg.JobID)
	}
	vendorRaw, _ := msg.Parameters[paramVendor].(string)
	vendor := core.NormalizeVendor(vendorRaw)
	if err := vendor.Validate(); err != nil {
		return core.OrderJob{}, err
	}
	externalID, _ := msg.Parameters[paramExternalID].(string)
	if strings.TrimSpace(externalID) == "" {
		return core.OrderJob{}, fmt.Errorf("tasks: message is missing external id")
	}
	payload, _ := msg.Parameters[paramPayload].(map[string]any)
	sendEmail, _ := msg.Parameters[paramSendEmail].(bool)
	return core.OrderJob{
		Vendor:     vendor,
		ExternalID: strings.TrimSpace(externalID),
		Payload:    payload,
		SendEmail:  sendEmail,
	}, nil
}

// NewExecutionID returns a fresh unique id for queue-level tracing.
func NewExecutionID() string {
	return uuid.NewString()
}
