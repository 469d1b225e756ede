// Package providers carries the pieces shared by every vendor's inbound
// webhook handler: recording the order aggregate and scheduling it for
// asynchronous processing.
package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hastexo/webhook-receiver/core"
	"github.com/hastexo/webhook-receiver/tasks"
	"github.com/hastexo/webhook-receiver/webhooks"
)

// VerificationStatus maps a verifier error to the status the vendor gets
// back: an absent header is the caller's mistake (400), anything else is
// a refusal (403).
func VerificationStatus(err error) int {
	if errors.Is(err, webhooks.ErrHeaderMissing) {
		return http.StatusBadRequest
	}
	return http.StatusForbidden
}

// RecordOrder finds or creates the durable order row for one verified
// webhook payload. The returned flag reports whether the row was created.
func RecordOrder(
	ctx context.Context,
	orders core.OrderStore,
	vendor core.Vendor,
	header core.OrderHeader,
	webhookID string,
) (*core.Order, bool, error) {
	if orders == nil {
		return nil, false, fmt.Errorf("providers: order store is required")
	}
	order, created, err := orders.GetOrCreate(ctx, &core.Order{
		Vendor:     vendor,
		ExternalID: header.ExternalID,
		Email:      header.Email,
		FirstName:  header.FirstName,
		LastName:   header.LastName,
		Received:   time.Now().UTC(),
		Status:     core.StateNew,
		WebhookID:  webhookID,
	})
	if err != nil {
		return nil, false, fmt.Errorf("providers: record order %s: %w", header.ExternalID, err)
	}
	return order, created, nil
}

// ScheduleOrder enqueues one order for asynchronous processing. Orders
// already past the new state are left alone: a replayed webhook for a
// finished order is a logged no-op.
func ScheduleOrder(
	ctx context.Context,
	enqueuer core.JobEnqueuer,
	order *core.Order,
	payload map[string]any,
	sendEmail bool,
	logger core.Logger,
) error {
	if enqueuer == nil {
		return fmt.Errorf("providers: job enqueuer is required")
	}
	if order == nil {
		return fmt.Errorf("providers: order is required")
	}
	if order.Status != core.StateNew {
		if logger != nil {
			logger.Info("order already scheduled, nothing to do",
				"order_id", order.ID,
				"external_id", order.ExternalID,
				"status", order.Status.String(),
			)
		}
		return nil
	}

	msg, err := tasks.EncodeOrderJob(core.OrderJob{
		Vendor:     order.Vendor,
		ExternalID: order.ExternalID,
		Payload:    payload,
		SendEmail:  sendEmail,
	})
	if err != nil {
		return err
	}
	if err := enqueuer.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("providers: schedule order %s: %w", order.ExternalID, err)
	}
	if logger != nil {
		logger.Info("scheduled order for processing", "order_id", order.ID, "external_id", order.ExternalID)
	}
	return nil
}
