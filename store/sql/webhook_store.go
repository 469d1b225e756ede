package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/hastexo/webhook-receiver/core"
)

// WebhookStore persists ingest records in webhook_records. State changes
// go through conditional updates keyed on the previously read status, so
// two writers racing on the same record cannot both win.
type WebhookStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookRow]
}

func NewWebhookStore(db *bun.DB) (*WebhookStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookRow](db, webhookHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid webhook repository wiring: %w", err)
		}
	}
	return &WebhookStore{db: db, repo: repo}, nil
}

func (s *WebhookStore) Create(ctx context.Context, record *core.WebhookRecord) (*core.WebhookRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: webhook store is not configured")
	}
	if record == nil {
		return nil, fmt.Errorf("sqlstore: webhook record is required")
	}
	if err := record.Vendor.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	row := &webhookRow{
		ID:         strings.TrimSpace(record.ID),
		Vendor:     string(record.Vendor),
		Status:     int(record.Status),
		Source:     record.Source,
		ReceivedAt: record.Received,
		Headers:    record.Headers,
		Body:       append([]byte(nil), record.Body...),
		Content:    record.Content,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.ReceivedAt.IsZero() {
		row.ReceivedAt = now
	}
	if row.Headers == nil {
		row.Headers = map[string]string{}
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return nil, err
	}
	return webhookToDomain(row), nil
}

func (s *WebhookStore) Get(ctx context.Context, id string) (*core.WebhookRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: webhook store is not configured")
	}
	row := &webhookRow{}
	err := s.db.NewSelect().
		Model(row).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", core.ErrWebhookNotFound, id)
		}
		return nil, err
	}
	return webhookToDomain(row), nil
}

func (s *WebhookStore) SetSource(ctx context.Context, id string, source string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook store is not configured")
	}
	res, err := s.db.NewUpdate().
		Model((*webhookRow)(nil)).
		Set("source = ?", strings.TrimSpace(source)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res, core.ErrWebhookNotFound, id)
}

func (s *WebhookStore) SetContent(ctx context.Context, id string, content map[string]any) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook store is not configured")
	}
	row := &webhookRow{
		ID:        strings.TrimSpace(id),
		Content:   content,
		UpdatedAt: time.Now().UTC(),
	}
	res, err := s.db.NewUpdate().
		Model(row).
		Column("content", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res, core.ErrWebhookNotFound, id)
}

func (s *WebhookStore) Transition(ctx context.Context, id string, from core.State, to core.State) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook store is not configured")
	}
	if err := core.CheckTransition(from, to); err != nil {
		return err
	}
	res, err := s.db.NewUpdate().
		Model((*webhookRow)(nil)).
		Set("status = ?", int(to)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", strings.TrimSpace(id)).
		Where("status = ?", int(from)).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	if _, getErr := s.Get(ctx, id); getErr != nil {
		return getErr
	}
	return fmt.Errorf("%w: webhook %s expected %s", core.ErrStateConflict, id, from)
}

func webhookToDomain(row *webhookRow) *core.WebhookRecord {
	if row == nil {
		return nil
	}
	record := &core.WebhookRecord{
		ID:       row.ID,
		Vendor:   core.Vendor(row.Vendor),
		Status:   core.State(row.Status),
		Source:   row.Source,
		Received: row.ReceivedAt,
		Headers:  row.Headers,
		Body:     append([]byte(nil), row.Body...),
		Content:  row.Content,
	}
	if record.Headers == nil {
		record.Headers = map[string]string{}
	}
	return record
}
