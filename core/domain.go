package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidStateTransition = errors.New("core: invalid state transition")
	ErrStateConflict          = errors.New("core: concurrent state change detected")
	ErrInvalidVendor          = errors.New("core: invalid vendor")
	ErrOrderNotFound          = errors.New("core: order not found")
	ErrOrderItemNotFound      = errors.New("core: order item not found")
	ErrWebhookNotFound        = errors.New("core: webhook record not found")
)

// State is the shared lifecycle state for webhook records, orders and
// order items. The zero value is StateNew so freshly constructed records
// start in the right place.
type State int

const (
	StateNew        State = 0
	StateProcessing State = 1
	StateProcessed  State = 2
	StateError      State = -1
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateProcessing:
		return "processing"
	case StateProcessed:
		return "processed"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// allowedTransitions is the full transition table. Error is terminal:
// nothing transitions out of it, and nothing reaches it except from
// Processing.
var allowedTransitions = map[State]map[State]struct{}{
	StateNew: {
		StateProcessing: {},
	},
	StateProcessing: {
		StateProcessed: {},
		StateError:     {},
	},
}

func TransitionAllowed(current, next State) bool {
	targets, ok := allowedTransitions[current]
	if !ok {
		return false
	}
	_, ok = targets[next]
	return ok
}

// CheckTransition validates a single state transition against the table.
func CheckTransition(current, next State) error {
	if !TransitionAllowed(current, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, current, next)
	}
	return nil
}

// Vendor identifies the commerce platform an order or webhook came from.
// Each vendor keeps its own order namespace: external order IDs are only
// unique per vendor.
type Vendor string

const (
	VendorShopify     Vendor = "shopify"
	VendorWooCommerce Vendor = "woocommerce"
)

func (v Vendor) Validate() error {
	switch v {
	case VendorShopify, VendorWooCommerce:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidVendor, string(v))
	}
}

func NormalizeVendor(value string) Vendor {
	return Vendor(strings.TrimSpace(strings.ToLower(value)))
}

// WebhookRecord is the durable trace of one inbound webhook request. The
// body is stored exactly as received so signatures stay verifiable; it is
// immutable once written. Content is set at most once, after the record
// has moved to Processing.
type WebhookRecord struct {
	ID       string
	Vendor   Vendor
	Status   State
	Source   string
	Received time.Time
	Headers  map[string]string
	Body     []byte
	Content  map[string]any
}

// Order is the durable record of a commerce order. ExternalID is the
// vendor-assigned order identifier; (Vendor, ExternalID) is unique.
type Order struct {
	ID         string
	Vendor     Vendor
	ExternalID string
	Email      string
	FirstName  string
	LastName   string
	Received   time.Time
	Status     State
	WebhookID  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// OrderItem is one line item of an order. The (OrderID, SKU, Email)
// triple is unique, enforced by the storage engine rather than
// application logic so racing creators collapse onto one row.
type OrderItem struct {
	ID        string
	OrderID   string
	SKU       string
	Email     string
	Status    State
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderHeader is the vendor-independent shape a payload parser extracts
// for order creation.
type OrderHeader struct {
	ExternalID string
	Email      string
	FirstName  string
	LastName   string
}

// LineItem is the vendor-independent shape a payload parser extracts for
// one line item.
type LineItem struct {
	SKU   string
	Email string
}
