// Package inbound routes raw vendor webhook requests to the handler
// registered for each vendor and normalizes failures into the receiver's
// error envelope.
package inbound

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/hastexo/webhook-receiver/core"
)

type Dispatcher struct {
	logger core.Logger

	mu       sync.RWMutex
	handlers map[core.Vendor]core.InboundHandler
}

func NewDispatcher(logger core.Logger) *Dispatcher {
	return &Dispatcher{
		logger:   logger,
		handlers: map[core.Vendor]core.InboundHandler{},
	}
}

func (d *Dispatcher) Register(handler core.InboundHandler) error {
	if d == nil {
		return statusError(http.StatusInternalServerError, "inbound: dispatcher is nil", nil)
	}
	if handler == nil {
		return statusError(http.StatusBadRequest, "inbound: handler is nil", nil)
	}
	vendor := handler.Vendor()
	if err := vendor.Validate(); err != nil {
		return statusError(http.StatusBadRequest, fmt.Sprintf("inbound: %v", err), map[string]any{"vendor": string(vendor)})
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.handlers[vendor]; exists {
		return statusError(
			http.StatusConflict,
			fmt.Sprintf("inbound: handler already registered for vendor %q", vendor),
			map[string]any{"vendor": string(vendor)},
		)
	}
	d.handlers[vendor] = handler
	return nil
}

// Dispatch hands the request to its vendor's handler. The returned result
// always carries a response status, even on error; the error itself is
// the enveloped cause for logging, never surfaced to the vendor.
func (d *Dispatcher) Dispatch(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if d == nil {
		return reject(http.StatusInternalServerError), statusError(http.StatusInternalServerError, "inbound: dispatcher is nil", nil)
	}
	vendor := core.NormalizeVendor(string(req.Vendor))
	if err := vendor.Validate(); err != nil {
		return reject(http.StatusNotFound), statusError(
			http.StatusNotFound,
			fmt.Sprintf("inbound: %v", err),
			map[string]any{"vendor": string(req.Vendor)},
		)
	}
	req.Vendor = vendor

	d.mu.RLock()
	handler, ok := d.handlers[vendor]
	d.mu.RUnlock()
	if !ok {
		return reject(http.StatusNotFound), statusError(
			http.StatusNotFound,
			fmt.Sprintf("inbound: no handler registered for vendor %q", vendor),
			map[string]any{"vendor": string(vendor)},
		)
	}

	result, err := handler.Handle(ctx, req)
	if err != nil {
		if result.StatusCode == 0 {
			result.StatusCode = http.StatusInternalServerError
		}
		mapped := wrapStatus(
			core.ReceiverErrorMapper(err),
			result.StatusCode,
			fmt.Sprintf("inbound: %s webhook rejected", vendor),
			map[string]any{"vendor": string(vendor), "status": result.StatusCode},
		)
		if d.logger != nil {
			d.logger.Error("webhook rejected",
				"vendor", string(vendor),
				"status", result.StatusCode,
				"error", mapped,
			)
		}
		return result, mapped
	}
	if result.StatusCode == 0 {
		result.StatusCode = http.StatusOK
		result.Accepted = true
	}
	return result, nil
}

func reject(status int) core.InboundResult {
	return core.InboundResult{Accepted: false, StatusCode: status}
}
