package shopify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hastexo/webhook-receiver/core"
	"github.com/hastexo/webhook-receiver/providers"
	"github.com/hastexo/webhook-receiver/webhooks"
)

// HandlerConfig wires the collaborators the Shopify webhook handler
// needs. Config carries the shop's shared secret and expected domain.
type HandlerConfig struct {
	Config   core.VendorConfig
	Ingest   *webhooks.IngestService
	Orders   core.OrderStore
	Enqueuer core.JobEnqueuer
	Logger   core.Logger
}

// Handler processes Shopify order-creation webhooks. Every request leaves
// a durable ingest record with its parsed payload before any validation
// runs; header and signature failures mark that record errored and answer
// 400 or 403.
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
		return nil, fmt.Errorf("shopify: ingest service is required")
	}
	if cfg.Orders == nil {
		return nil, fmt.Errorf("shopify: order store is required")
	}
	if cfg.Enqueuer == nil {
		return nil, fmt.Errorf("shopify: job enqueuer is required")
	}
	return &Handler{
		config:         cfg.Config,
		ingest:         cfg.Ingest,
		orders:         cfg.Orders,
		enqueuer:       cfg.Enqueuer,
		logger:         cfg.Logger,
		sourceCheck:    webhooks.HeaderSourceVerifier{Header: HeaderShopDomain, Source: cfg.Config.Source},
		signatureCheck: webhooks.HeaderHMACVerifier{Header: HeaderSignature, Secret: cfg.Config.Secret},
	}, nil
}

func (h *Handler) Vendor() core.Vendor {
	return VendorID
}

func (h *Handler) Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if h == nil {
		return reject(http.StatusInternalServerError), fmt.Errorf("shopify: handler is not configured")
	}
	req.Vendor = VendorID

	record, err := h.ingest.Receive(ctx, req)
	if err != nil {
		return reject(http.StatusBadRequest), err
	}

	if err := h.sourceCheck.Verify(ctx, req); err != nil {
		h.error("failed to verify shop domain", "webhook_id", record.ID, "error", err)
		return h.fail(ctx, record, providers.VerificationStatus(err), fmt.Errorf("shopify: %w", err))
	}
	if err := h.signatureCheck.Verify(ctx, req); err != nil {
		h.error("failed to verify signature", "webhook_id", record.ID, "error", err)
		return h.fail(ctx, record, providers.VerificationStatus(err), fmt.Errorf("shopify: %w", err))
	}

	content := record.Content
	if err := h.ingest.Finish(ctx, record); err != nil {
		return reject(http.StatusInternalServerError), err
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

func (h *Handler) fail(ctx context.Context, record *core.WebhookRecord, status int, cause error) (core.InboundResult, error) {
	if err := h.ingest.Fail(ctx, record); err != nil {
		h.error("failed to mark webhook as errored", "webhook_id", record.ID, "error", err)
	}
	return reject(status), cause
}

func (h *Handler) info(msg string, args ...any) {
	if h.logger != nil {
		h.logger.Info(msg, args...)
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
