package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type webhookRow struct {
	bun.BaseModel `bun:"table:webhook_records,alias:wr"`

	ID         string            `bun:"id,pk"`
	Vendor     string            `bun:"vendor,notnull"`
	Status     int               `bun:"status,notnull"`
	Source     string            `bun:"source,notnull,default:''"`
	ReceivedAt time.Time         `bun:"received_at,notnull"`
	Headers    map[string]string `bun:"headers,type:jsonb,notnull"`
	Body       []byte            `bun:"body,notnull"`
	Content    map[string]any    `bun:"content,type:jsonb"`
	CreatedAt  time.Time         `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time         `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type orderRow struct {
	bun.BaseModel `bun:"table:webhook_orders,alias:wo"`

	ID         string    `bun:"id,pk"`
	Vendor     string    `bun:"vendor,notnull"`
	ExternalID string    `bun:"external_id,notnull"`
	Email      string    `bun:"email,notnull"`
	FirstName  string    `bun:"first_name,notnull,default:''"`
	LastName   string    `bun:"last_name,notnull,default:''"`
	ReceivedAt time.Time `bun:"received_at,notnull"`
	Status     int       `bun:"status,notnull"`
	WebhookID  *string   `bun:"webhook_id"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type orderItemRow struct {
	bun.BaseModel `bun:"table:webhook_order_items,alias:woi"`

	ID        string    `bun:"id,pk"`
	OrderID   string    `bun:"order_id,notnull"`
	SKU       string    `bun:"sku,notnull"`
	Email     string    `bun:"email,notnull"`
	Status    int       `bun:"status,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
