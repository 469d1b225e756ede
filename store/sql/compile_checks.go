package sqlstore

import "github.com/hastexo/webhook-receiver/core"

var (
	_ core.WebhookStore   = (*WebhookStore)(nil)
	_ core.OrderStore     = (*OrderStore)(nil)
	_ core.OrderItemStore = (*OrderItemStore)(nil)
	_ core.StoreProvider  = (*RepositoryFactory)(nil)
)
