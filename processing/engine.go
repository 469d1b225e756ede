package processing

import (
	"context"
	"fmt"

	"github.com/hastexo/webhook-receiver/core"
)

const lineItemsKey = "line_items"

// EngineConfig wires the stores and external collaborators the order
// processing engine drives.
type EngineConfig struct {
	Orders   core.OrderStore
	Items    core.OrderItemStore
	Resolver core.CourseResolver
	Enroller core.Enroller
	Logger   core.Logger
}

// Engine walks one order and its line items through the shared state
// machine, enrolling each item. Every transition commits on its own so a
// crash between steps leaves the aggregate resumable. The engine never
// writes the error state: that is the task runner's job, which lets
// retries re-enter while the order is still processing.
type Engine struct {
	orders   core.OrderStore
	items    core.OrderItemStore
	resolver core.CourseResolver
	enroller core.Enroller
	logger   core.Logger
	parsers  map[core.Vendor]core.LineItemParser
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Orders == nil || cfg.Items == nil {
		return nil, fmt.Errorf("processing: order and order item stores are required")
	}
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("processing: course resolver is required")
	}
	if cfg.Enroller == nil {
		return nil, fmt.Errorf("processing: enroller is required")
	}
	return &Engine{
		orders:   cfg.Orders,
		items:    cfg.Items,
		resolver: cfg.Resolver,
		enroller: cfg.Enroller,
		logger:   cfg.Logger,
		parsers:  map[core.Vendor]core.LineItemParser{},
	}, nil
}

// RegisterParser binds a vendor's line item parser. Vendors without a
// registered parser cannot be processed.
func (e *Engine) RegisterParser(vendor core.Vendor, parser core.LineItemParser) {
	if e == nil || parser == nil {
		return
	}
	e.parsers[vendor] = parser
}

// ProcessOrder drives order through its lifecycle against payload.
//
// Processed and errored orders short-circuit: replayed webhooks for a
// finished order are a logged no-op. An order found mid-processing is
// resumed with a warning. A new order is claimed first, committing the
// transition before any line item work. Item failures propagate
// immediately and leave the order in processing.
func (e *Engine) ProcessOrder(ctx context.Context, order *core.Order, payload map[string]any, sendEmail bool) (*core.Order, error) {
	if e == nil {
		return nil, fmt.Errorf("processing: engine is not configured")
	}
	if order == nil {
		return nil, fmt.Errorf("processing: order is required")
	}

	switch order.Status {
	case core.StateProcessed:
		e.info("order already processed, skipping", "order_id", order.ID, "external_id", order.ExternalID)
		return order, nil
	case core.StateError:
		e.info("order permanently failed, skipping", "order_id", order.ID, "external_id", order.ExternalID)
		return order, nil
	case core.StateProcessing:
		e.warn("order already being processed, retrying", "order_id", order.ID, "external_id", order.ExternalID)
	case core.StateNew:
		if err := e.orders.Transition(ctx, order.ID, core.StateNew, core.StateProcessing); err != nil {
			return nil, fmt.Errorf("processing: claim order %s: %w", order.ID, err)
		}
		order.Status = core.StateProcessing
	default:
		return nil, fmt.Errorf("%w: order %s in state %s", core.ErrInvalidStateTransition, order.ID, order.Status)
	}

	parser, ok := e.parsers[order.Vendor]
	if !ok {
		return nil, fmt.Errorf("processing: no line item parser registered for vendor %q", order.Vendor)
	}

	for index, raw := range lineItems(payload) {
		entry, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("processing: order %s line item %d is not an object", order.ID, index)
		}
		if _, err := e.processLineItem(ctx, order, entry, parser, sendEmail); err != nil {
			return nil, err
		}
	}

	if err := e.orders.Transition(ctx, order.ID, core.StateProcessing, core.StateProcessed); err != nil {
		return nil, fmt.Errorf("processing: finish order %s: %w", order.ID, err)
	}
	order.Status = core.StateProcessed
	e.info("order processed", "order_id", order.ID, "external_id", order.ExternalID)
	return order, nil
}

// processLineItem parses one raw entry, finds or creates its item row, and
// enrolls the learner. Items mirror the order-level status policy.
func (e *Engine) processLineItem(ctx context.Context, order *core.Order, raw map[string]any, parser core.LineItemParser, sendEmail bool) (*core.OrderItem, error) {
	parsed, err := parser.ParseLineItem(raw)
	if err != nil {
		return nil, fmt.Errorf("processing: parse line item for order %s: %w", order.ID, err)
	}

	item, _, err := e.items.GetOrCreate(ctx, &core.OrderItem{
		OrderID: order.ID,
		SKU:     parsed.SKU,
		Email:   parsed.Email,
		Status:  core.StateNew,
	})
	if err != nil {
		return nil, fmt.Errorf("processing: store line item for order %s: %w", order.ID, err)
	}

	switch item.Status {
	case core.StateProcessed:
		e.info("order item already processed, skipping", "item_id", item.ID, "sku", item.SKU)
		return item, nil
	case core.StateError:
		e.info("order item permanently failed, skipping", "item_id", item.ID, "sku", item.SKU)
		return item, nil
	case core.StateProcessing:
		e.warn("order item already being processed, retrying", "item_id", item.ID, "sku", item.SKU)
	case core.StateNew:
		if err := e.items.Transition(ctx, item.ID, core.StateNew, core.StateProcessing); err != nil {
			return nil, fmt.Errorf("processing: claim line item %s: %w", item.ID, err)
		}
		item.Status = core.StateProcessing
	default:
		return nil, fmt.Errorf("%w: item %s in state %s", core.ErrInvalidStateTransition, item.ID, item.Status)
	}

	courseID, err := e.resolver.Resolve(ctx, item.SKU)
	if err != nil {
		return nil, fmt.Errorf("processing: resolve course for sku %q: %w", item.SKU, err)
	}
	if err := e.enroller.Enroll(ctx, courseID, item.Email, core.EnrollOptions{
		AutoEnroll:    true,
		EmailStudents: sendEmail,
	}); err != nil {
		return nil, fmt.Errorf("processing: enroll %s in %s: %w", item.Email, courseID, err)
	}

	if err := e.items.Transition(ctx, item.ID, core.StateProcessing, core.StateProcessed); err != nil {
		return nil, fmt.Errorf("processing: finish line item %s: %w", item.ID, err)
	}
	item.Status = core.StateProcessed
	return item, nil
}

func lineItems(payload map[string]any) []any {
	if payload == nil {
		return nil
	}
	items, _ := payload[lineItemsKey].([]any)
	return items
}

func (e *Engine) info(msg string, args ...any) {
	if e == nil || e.logger == nil {
		return
	}
	e.logger.Info(msg, args...)
}

func (e *Engine) warn(msg string, args ...any) {
	if e == nil || e.logger == nil {
		return
	}
	e.logger.Warn(msg, args...)
}
