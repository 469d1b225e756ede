package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hastexo/webhook-receiver/core"
)

// IngestService persists inbound webhook payloads before any validation
// runs, then walks each record through its processing lifecycle.
type IngestService struct {
	store  core.WebhookStore
	logger core.Logger
}

func NewIngestService(store core.WebhookStore, logger core.Logger) *IngestService {
	return &IngestService{store: store, logger: logger}
}

// Receive stores the raw payload as a new record, claims it, and decodes
// the body as JSON before any vendor validation gets a look at it. The
// record is created in the new state and immediately moved to processing;
// the caller holds the only in-flight claim on it. The source address is
// recorded best effort. Malformed JSON fails the record and propagates.
func (s *IngestService) Receive(ctx context.Context, req core.InboundRequest) (*core.WebhookRecord, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("webhooks: ingest service is not configured")
	}
	record := &core.WebhookRecord{
		ID:       uuid.NewString(),
		Vendor:   req.Vendor,
		Status:   core.StateNew,
		Received: time.Now().UTC(),
		Headers:  cloneHeaders(req.Headers),
		Body:     append([]byte(nil), req.Body...),
	}
	stored, err := s.store.Create(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("webhooks: store webhook: %w", err)
	}
	record = stored
	if err := s.store.Transition(ctx, record.ID, core.StateNew, core.StateProcessing); err != nil {
		return nil, fmt.Errorf("webhooks: claim webhook %s: %w", record.ID, err)
	}
	record.Status = core.StateProcessing

	if source := strings.TrimSpace(req.RemoteAddr); source != "" {
		if err := s.store.SetSource(ctx, record.ID, source); err != nil {
			s.warn("failed to record webhook source", "webhook_id", record.ID, "error", err)
		} else {
			record.Source = source
		}
	} else {
		s.warn("request has no discernible source address", "webhook_id", record.ID)
	}

	var content map[string]any
	if err := json.Unmarshal(record.Body, &content); err != nil {
		s.failRecord(ctx, record)
		return nil, fmt.Errorf("webhooks: parse webhook %s payload: %w", record.ID, err)
	}
	if err := s.store.SetContent(ctx, record.ID, content); err != nil {
		return nil, fmt.Errorf("webhooks: store webhook %s content: %w", record.ID, err)
	}
	record.Content = content
	return record, nil
}

// Fail moves a processing record to the error state.
func (s *IngestService) Fail(ctx context.Context, record *core.WebhookRecord) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("webhooks: ingest service is not configured")
	}
	if record == nil {
		return fmt.Errorf("webhooks: record is required")
	}
	if err := s.store.Transition(ctx, record.ID, core.StateProcessing, core.StateError); err != nil {
		return fmt.Errorf("webhooks: fail webhook %s: %w", record.ID, err)
	}
	record.Status = core.StateError
	return nil
}

// Finish moves a processing record to the processed state.
func (s *IngestService) Finish(ctx context.Context, record *core.WebhookRecord) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("webhooks: ingest service is not configured")
	}
	if record == nil {
		return fmt.Errorf("webhooks: record is required")
	}
	if err := s.store.Transition(ctx, record.ID, core.StateProcessing, core.StateProcessed); err != nil {
		return fmt.Errorf("webhooks: finish webhook %s: %w", record.ID, err)
	}
	record.Status = core.StateProcessed
	return nil
}

func (s *IngestService) failRecord(ctx context.Context, record *core.WebhookRecord) {
	if err := s.Fail(ctx, record); err != nil {
		s.warn("failed to mark webhook as errored", "webhook_id", record.ID, "error", err)
	}
}

func (s *IngestService) warn(msg string, args ...any) {
	if s == nil || s.logger == nil {
		return
	}
	s.logger.Warn(msg, args...)
}

func cloneHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[k] = v
	}
	return out
}
