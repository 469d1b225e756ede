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

// OrderStore persists orders in webhook_orders. (vendor, external_id) is
// unique; GetOrCreate resolves a lost insert race to the winner's row.
type OrderStore struct {
	db   *bun.DB
	repo repository.Repository[*orderRow]
}

func NewOrderStore(db *bun.DB) (*OrderStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*orderRow](db, orderHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid order repository wiring: %w", err)
		}
	}
	return &OrderStore{db: db, repo: repo}, nil
}

func (s *OrderStore) GetOrCreate(ctx context.Context, order *core.Order) (*core.Order, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, fmt.Errorf("sqlstore: order store is not configured")
	}
	if order == nil {
		return nil, false, fmt.Errorf("sqlstore: order is required")
	}
	if err := order.Vendor.Validate(); err != nil {
		return nil, false, err
	}
	externalID := strings.TrimSpace(order.ExternalID)
	if externalID == "" {
		return nil, false, fmt.Errorf("sqlstore: order external id is required")
	}

	now := time.Now().UTC()
	row := &orderRow{
		ID:         strings.TrimSpace(order.ID),
		Vendor:     string(order.Vendor),
		ExternalID: externalID,
		Email:      strings.TrimSpace(order.Email),
		FirstName:  order.FirstName,
		LastName:   order.LastName,
		ReceivedAt: order.Received,
		Status:     int(order.Status),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if webhookID := strings.TrimSpace(order.WebhookID); webhookID != "" {
		row.WebhookID = &webhookID
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.ReceivedAt.IsZero() {
		row.ReceivedAt = now
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			existing, getErr := s.Get(ctx, order.Vendor, externalID)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		return nil, false, err
	}
	return orderToDomain(row), true, nil
}

func (s *OrderStore) Get(ctx context.Context, vendor core.Vendor, externalID string) (*core.Order, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: order store is not configured")
	}
	row := &orderRow{}
	err := s.db.NewSelect().
		Model(row).
		Where("?TableAlias.vendor = ?", string(vendor)).
		Where("?TableAlias.external_id = ?", strings.TrimSpace(externalID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s order %s", core.ErrOrderNotFound, vendor, externalID)
		}
		return nil, err
	}
	return orderToDomain(row), nil
}

func (s *OrderStore) Transition(ctx context.Context, id string, from core.State, to core.State) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: order store is not configured")
	}
	if err := core.CheckTransition(from, to); err != nil {
		return err
	}
	res, err := s.db.NewUpdate().
		Model((*orderRow)(nil)).
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
	exists, err := s.existsByID(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", core.ErrOrderNotFound, id)
	}
	return fmt.Errorf("%w: order %s expected %s", core.ErrStateConflict, id, from)
}

func (s *OrderStore) existsByID(ctx context.Context, id string) (bool, error) {
	count, err := s.db.NewSelect().
		Model((*orderRow)(nil)).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func orderToDomain(row *orderRow) *core.Order {
	if row == nil {
		return nil
	}
	order := &core.Order{
		ID:         row.ID,
		Vendor:     core.Vendor(row.Vendor),
		ExternalID: row.ExternalID,
		Email:      row.Email,
		FirstName:  row.FirstName,
		LastName:   row.LastName,
		Received:   row.ReceivedAt,
		Status:     core.State(row.Status),
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
	if row.WebhookID != nil {
		order.WebhookID = *row.WebhookID
	}
	return order
}
