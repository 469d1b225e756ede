package woocommerce

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/hastexo/webhook-receiver/core"
	"github.com/hastexo/webhook-receiver/providers"
	"github.com/hastexo/webhook-receiver/webhooks"
)

const (
	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"
)

type HandlerConfig struct {
	Config   core.VendorConfig
	Ingest   *webhooks.IngestService
	Orders   core.OrderStore
	Enqueuer core.JobEnqueuer
	Logger   core.Logger
}

// Handler processes WooCommerce order webhooks. WooCommerce sends a
// form-encoded activation ping when a webhook is first created or
// enabled; those are acknowledged without creating an ingest record.
// Everything else must be JSON.
type Handler struct {
	config         core.VendorConfig
	ingest         *webhooks.IngestService
	orders         core.OrderStore
	enqueuer       core.JobEnqueuer
	logger         core.Logger
	sourceCheck    webhooks.Verifier
	signatureCheck webhooks.Verifier
}

func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.Ingest == nil {
		return nil, fmt.Errorf("woocommerce: ingest service is required")
	}
	if cfg.Orders == nil {
		return nil, fmt.Errorf("woocommerce: order store is required")
	}
	if cfg.Enqueuer == nil {
		return nil, fmt.Errorf("woocommerce: job enqueuer is required")
	}
	return &Handler{
		config:         cfg.Config,
		ingest:         cfg.Ingest,
		orders:         cfg.Orders,
		enqueuer:       cfg.Enqueuer,
		logger:         cfg.Logger,
		sourceCheck:    webhooks.HeaderSourceVerifier{Header: HeaderSource, Source: cfg.Config.Source},
		signatureCheck: webhooks.HeaderHMACVerifier{Header: HeaderSignature, Secret: cfg.Config.Secret},
	}, nil
}

func (h *Handler) Vendor() core.Vendor {
	return VendorID
}

func (h *Handler) Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if h == nil {
		return reject(http.StatusInternalServerError), fmt.Errorf("woocommerce: handler is not configured")
	}
	req.Vendor = VendorID

	contentType := normalizeContentType(req.ContentType)
	if contentType != contentTypeJSON {
		if contentType == contentTypeForm {
			webhookID := strings.TrimSpace(req.Form[WebhookIDFormKey])
			if webhookID != "" {
				h.info("webhook created or enabled", "webhook_id_param", webhookID, "remote_addr", req.RemoteAddr)
				return core.InboundResult{Accepted: true, StatusCode: http.StatusOK}, nil
			}
			h.warn("form-encoded request without a webhook_id parameter", "remote_addr", req.RemoteAddr)
			return reject(http.StatusBadRequest), fmt.Errorf("woocommerce: form request is missing %s", WebhookIDFormKey)
		}
		h.warn("unexpected content type", "content_type", req.ContentType, "remote_addr", req.RemoteAddr)
		return reject(http.StatusBadRequest), fmt.Errorf("woocommerce: unexpected content type %q", req.ContentType)
	}

	record, err := h.ingest.Receive(ctx, req)
	if err != nil {
		return reject(http.StatusBadRequest), err
	}

	if err := h.sourceCheck.Verify(ctx, req); err != nil {
		h.error("failed to verify source", "webhook_id", record.ID, "error", err)
		return h.fail(ctx, record, providers.VerificationStatus(err), fmt.Errorf("woocommerce: %w", err))
	}
	if err := h.signatureCheck.Verify(ctx, req); err != nil {
		h.error("failed to verify signature", "webhook_id", record.ID, "error", err)
		return h.fail(ctx, record, providers.VerificationStatus(err), fmt.Errorf("woocommerce: %w", err))
	}

	content := record.Content
	if err := h.ingest.Finish(ctx, record); err != nil {
		return reject(http.StatusInternalServerError), err
	}

	// An unpaid order waits for a later update webhook carrying the
	// payment timestamp.
	if h.config.RequirePayment {
		if ok := h.orderIsPaid(record.ID, content); !ok {
			return reject(http.StatusPaymentRequired), fmt.Errorf("woocommerce: order is not paid yet")
		}
	}

	header, err := OrderHeaderFromPayload(content)
	if err != nil {
		return reject(http.StatusBadRequest), err
	}
	order, created, err := providers.RecordOrder(ctx, h.orders, VendorID, header, record.ID)
	if err != nil {
		return reject(http.StatusInternalServerError), err
	}
	if created {
		h.info("created order", "order_id", order.ID, "external_id", order.ExternalID)
	} else {
		h.info("retrieved order", "order_id", order.ID, "external_id", order.ExternalID)
	}

	if err := providers.ScheduleOrder(ctx, h.enqueuer, order, content, h.config.SendEmail, h.logger); err != nil {
		return reject(http.StatusInternalServerError), err
	}

	return core.InboundResult{Accepted: true, StatusCode: http.StatusOK}, nil
}

func (h *Handler) orderIsPaid(webhookID string, content map[string]any) bool {
	datePaid, _ := content["date_paid_gmt"].(string)
	datePaid = strings.TrimSpace(datePaid)
	if datePaid == "" {
		h.warn("payload contains empty value for date_paid_gmt", "webhook_id", webhookID)
		return false
	}
	if _, err := time.Parse("2006-01-02T15:04:05", datePaid); err != nil {
		// A malformed timestamp is logged, but the order still counts
		// as paid: the field was present.
		h.error("payload contains invalid value for date_paid_gmt",
			"webhook_id", webhookID,
			"date_paid_gmt", datePaid,
		)
	}
	return true
}

func (h *Handler) fail(ctx context.Context, record *core.WebhookRecord, status int, cause error) (core.InboundResult, error) {
	if err := h.ingest.Fail(ctx, record); err != nil {
		h.error("failed to mark webhook as errored", "webhook_id", record.ID, "error", err)
	}
	return reject(status), cause
}

func normalizeContentType(value string) string {
	parsed, _, err := mime.ParseMediaType(strings.TrimSpace(value))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(value))
	}
	return parsed
}

func (h *Handler) info(msg string, args ...any) {
	if h.logger != nil {
		h.logger.Info(msg, args...)
	}
}

func (h *Handler) warn(msg string, args ...any) {
	if h.logger != nil {
		h.logger.Warn(msg, args...)
	}
}

func (h *Handler) error(msg string, args ...any) {
	if h.logger != nil {
		h.logger.Error(msg, args...)
	}
}

func reject(status int) core.InboundResult {
	return core.InboundResult{Accepted: false, StatusCode: status}
}

var _ core.InboundHandler = (*Handler)(nil)
