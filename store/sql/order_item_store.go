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

// OrderItemStore persists line items in webhook_order_items under the
// (order_id, sku, email) uniqueness constraint. Email is mandatory: a
// line item without a learner to enroll cannot be stored.
type OrderItemStore struct {
	db   *bun.DB
	repo repository.Repository[*orderItemRow]
}

func NewOrderItemStore(db *bun.DB) (*OrderItemStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*orderItemRow](db, orderItemHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid order item repository wiring: %w", err)
		}
	}
	return &OrderItemStore{db: db, repo: repo}, nil
}

func (s *OrderItemStore) GetOrCreate(ctx context.Context, item *core.OrderItem) (*core.OrderItem, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, fmt.Errorf("sqlstore: order item store is not configured")
	}
	if item == nil {
		return nil, false, fmt.Errorf("sqlstore: order item is required")
	}
	orderID := strings.TrimSpace(item.OrderID)
	sku := strings.TrimSpace(item.SKU)
	email := strings.TrimSpace(item.Email)
	if orderID == "" || sku == "" {
		return nil, false, fmt.Errorf("sqlstore: order id and sku are required")
	}
	if email == "" {
		return nil, false, fmt.Errorf("sqlstore: order item email is required")
	}

	now := time.Now().UTC()
	row := &orderItemRow{
		ID:        strings.TrimSpace(item.ID),
		OrderID:   orderID,
		SKU:       sku,
		Email:     email,
		Status:    int(item.Status),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			existing, getErr := s.get(ctx, orderID, sku, email)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		return nil, false, err
	}
	return orderItemToDomain(row), true, nil
}

func (s *OrderItemStore) ListForOrder(ctx context.Context, orderID string) ([]*core.OrderItem, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: order item store is not configured")
	}
	var rows []*orderItemRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("?TableAlias.order_id = ?", strings.TrimSpace(orderID)).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]*core.OrderItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, orderItemToDomain(row))
	}
	return items, nil
}

func (s *OrderItemStore) Transition(ctx context.Context, id string, from core.State, to core.State) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: order item store is not configured")
	}
	if err := core.CheckTransition(from, to); err != nil {
		return err
	}
	res, err := s.db.NewUpdate().
		Model((*orderItemRow)(nil)).
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
	count, err := s.db.NewSelect().
		Model((*orderItemRow)(nil)).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Count(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", core.ErrOrderItemNotFound, id)
	}
	return fmt.Errorf("%w: order item %s expected %s", core.ErrStateConflict, id, from)
}

func (s *OrderItemStore) get(ctx context.Context, orderID string, sku string, email string) (*core.OrderItem, error) {
	row := &orderItemRow{}
	err := s.db.NewSelect().
		Model(row).
		Where("?TableAlias.order_id = ?", orderID).
		Where("?TableAlias.sku = ?", sku).
		Where("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: order %s sku %s", core.ErrOrderItemNotFound, orderID, sku)
		}
		return nil, err
	}
	return orderItemToDomain(row), nil
}

func orderItemToDomain(row *orderItemRow) *core.OrderItem {
	if row == nil {
		return nil
	}
	return &core.OrderItem{
		ID:        row.ID,
		OrderID:   row.OrderID,
		SKU:       row.SKU,
		Email:     row.Email,
		Status:    core.State(row.Status),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}
