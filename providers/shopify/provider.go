// Package shopify receives Shopify order webhooks and maps their payloads
// into the vendor-independent order shape.
package shopify

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hastexo/webhook-receiver/core"
)

const (
	VendorID = core.VendorShopify

	HeaderShopDomain = "X-Shopify-Shop-Domain"
	HeaderSignature  = "X-Shopify-Hmac-Sha256"
)

// OrderHeaderFromPayload extracts the order identity fields from a Shopify
// order payload. The order id and customer email are required.
func OrderHeaderFromPayload(content map[string]any) (core.OrderHeader, error) {
	externalID := stringValue(content["id"])
	if externalID == "" {
		return core.OrderHeader{}, fmt.Errorf("shopify: order payload is missing id")
	}
	customer, _ := content["customer"].(map[string]any)
	email := strings.TrimSpace(stringValue(customer["email"]))
	if email == "" {
		return core.OrderHeader{}, fmt.Errorf("shopify: order %s payload is missing customer email", externalID)
	}
	return core.OrderHeader{
		ExternalID: externalID,
		Email:      email,
		FirstName:  stringValue(customer["first_name"]),
		LastName:   stringValue(customer["last_name"]),
	}, nil
}

// LineItemParser extracts (sku, email) from a Shopify line item. The email
// lives in the properties list as a name/value pair named "email"; a line
// item without one cannot be enrolled and is a hard failure.
type LineItemParser struct{}

func (LineItemParser) ParseLineItem(raw map[string]any) (core.LineItem, error) {
	sku := stringValue(raw["sku"])
	properties, _ := raw["properties"].([]any)
	for _, entry := range properties {
		property, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if stringValue(property["name"]) == "email" {
			return core.LineItem{SKU: sku, Email: stringValue(property["value"])}, nil
		}
	}
	return core.LineItem{}, fmt.Errorf("shopify: line item sku %q has no email property", sku)
}

func stringValue(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case float64:
		// JSON numbers decode as float64; order ids are integral.
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
