// Package woocommerce receives WooCommerce order webhooks and maps their
// payloads into the vendor-independent order shape.
package woocommerce

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hastexo/webhook-receiver/core"
)

const (
	VendorID = core.VendorWooCommerce

	HeaderSource    = "X-Wc-Webhook-Source"
	HeaderSignature = "X-Wc-Webhook-Signature"

	// Activation pings arrive form-encoded with this single parameter.
	WebhookIDFormKey = "webhook_id"
)

// OrderHeaderFromPayload extracts the order identity fields from a
// WooCommerce order payload. The order id and billing email are required.
func OrderHeaderFromPayload(content map[string]any) (core.OrderHeader, error) {
	externalID := stringValue(content["id"])
	if externalID == "" {
		return core.OrderHeader{}, fmt.Errorf("woocommerce: order payload is missing id")
	}
	billing, _ := content["billing"].(map[string]any)
	email := strings.TrimSpace(stringValue(billing["email"]))
	if email == "" {
		return core.OrderHeader{}, fmt.Errorf("woocommerce: order %s payload is missing billing email", externalID)
	}
	return core.OrderHeader{
		ExternalID: externalID,
		Email:      email,
		FirstName:  stringValue(billing["first_name"]),
		LastName:   stringValue(billing["last_name"]),
	}, nil
}

// LineItemParser extracts (sku, email) from a WooCommerce line item.
//
// The meta_data list is quirky: each entry's value may be a list whose
// first element may be a map carrying a type/_value pair, and only
// type=="email" entries hold a learner address. Any shape mismatch at any
// nesting level is skipped, not an error; unknown metadata must never
// break ingestion. The email stays empty when no entry matches, which
// surfaces later as a storage constraint failure.
type LineItemParser struct {
	Logger core.Logger
}

func (p LineItemParser) ParseLineItem(raw map[string]any) (core.LineItem, error) {
	sku := stringValue(raw["sku"])
	metaData, _ := raw["meta_data"].([]any)
	for _, entry := range metaData {
		meta, ok := entry.(map[string]any)
		if !ok {
			p.skip(sku, entry)
			continue
		}
		values, ok := meta["value"].([]any)
		if !ok || len(values) == 0 {
			p.skip(sku, meta["value"])
			continue
		}
		item, ok := values[0].(map[string]any)
		if !ok {
			p.skip(sku, values[0])
			continue
		}
		if stringValue(item["type"]) != "email" {
			p.skip(sku, item)
			continue
		}
		return core.LineItem{SKU: sku, Email: stringValue(item["_value"])}, nil
	}
	return core.LineItem{SKU: sku}, nil
}

func (p LineItemParser) skip(sku string, value any) {
	if p.Logger == nil {
		return
	}
	p.Logger.Debug("ignoring unknown line item metadata", "sku", sku, "value", value)
}

func stringValue(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case float64:
		if typed == math.Trunc(typed) {
			return strconv.FormatInt(int64(typed), 10)
		}
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", typed)
	}
}

var _ core.LineItemParser = LineItemParser{}
