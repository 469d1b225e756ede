package shopify

import "testing"

func TestLineItemParser(t *testing.T) {
	parser := LineItemParser{}

	item, err := parser.ParseLineItem(map[string]any{
		"sku": "course-v1:org+course+run1",
		"properties": []any{
			map[string]any{"name": "gift_wrap", "value": "no"},
			map[string]any{"name": "email", "value": "learner@example.com"},
		},
	})
	if err != nil {
		t.Fatalf("ParseLineItem() error: %v", err)
	}
	if item.SKU != "course-v1:org+course+run1" || item.Email != "learner@example.com" {
		t.Fatalf("unexpected line item %+v", item)
	}
}

func TestLineItemParser_MissingEmail(t *testing.T) {
	parser := LineItemParser{}
	_, err := parser.ParseLineItem(map[string]any{
		"sku": "sku-1",
		"properties": []any{
			map[string]any{"name": "gift_wrap", "value": "no"},
		},
	})
	if err == nil {
		t.Fatal("expected error for line item without an email property")
	}
	if _, err := parser.ParseLineItem(map[string]any{"sku": "sku-1"}); err == nil {
		t.Fatal("expected error for line item without properties")
	}
}

func TestOrderHeaderFromPayload(t *testing.T) {
	header, err := OrderHeaderFromPayload(map[string]any{
		"id": float64(1001),
		"customer": map[string]any{
			"email":      "learner@example.com",
			"first_name": "Ada",
			"last_name":  "Lovelace",
		},
	})
	if err != nil {
		t.Fatalf("OrderHeaderFromPayload() error: %v", err)
	}
	if header.ExternalID != "1001" {
		t.Fatalf("unexpected external id %q", header.ExternalID)
	}
	if header.Email != "learner@example.com" || header.FirstName != "Ada" || header.LastName != "Lovelace" {
		t.Fatalf("unexpected header %+v", header)
	}
}

func TestOrderHeaderFromPayload_Missing(t *testing.T) {
	if _, err := OrderHeaderFromPayload(map[string]any{}); err == nil {
		t.Fatal("expected error for payload without id")
	}
	if _, err := OrderHeaderFromPayload(map[string]any{"id": float64(1)}); err == nil {
		t.Fatal("expected error for payload without customer email")
	}
}
