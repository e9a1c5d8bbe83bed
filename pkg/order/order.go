package order

import (
	"context"
	"errors"
	"time"
)

// LineItem is one requested product and quantity, captured verbatim at
// checkout time. It is never re-derived from the catalog afterwards,
// so later price or catalog changes cannot corrupt fulfillment.
type LineItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// ClaimedKey is one issued license key and the product it unlocks.
type ClaimedKey struct {
	ProductID string `json:"productId"`
	Key       string `json:"key"`
}

// Order tracks a purchase from checkout through payment to key
// fulfillment. Claims is written by exactly one successful fulfillment
// and is immutable afterwards; it is the sole source of truth for any
// repeat fulfillment request. Shortage and Partial record an attempt
// that hit an empty pool, so retries never claim additional keys.
type Order struct {
	ID          string       `json:"id"`
	Email       string       `json:"email"`
	Items       []LineItem   `json:"items"`
	Claims      []ClaimedKey `json:"claims,omitempty"`
	Shortage    string       `json:"shortage,omitempty"`
	Partial     []ClaimedKey `json:"partial,omitempty"`
	CheckoutRef string       `json:"checkoutRef,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	FulfilledAt *time.Time   `json:"fulfilledAt,omitempty"`
}

// Fulfilled reports whether keys have been durably attached.
func (o Order) Fulfilled() bool { return len(o.Claims) > 0 }

// Repository defines behavior for persisting orders.
type Repository interface {
	Create(ctx context.Context, o Order) error
	Get(ctx context.Context, id string) (Order, error)

	// AttachClaims records the fulfillment result in one conditional
	// write: it succeeds only while the order has no claims. The loser
	// of a concurrent fulfillment race gets ErrAlreadyFulfilled, never
	// a silent overwrite.
	AttachClaims(ctx context.Context, id string, claims []ClaimedKey) error

	// RecordShortage stores the keys claimed before productID's pool
	// ran dry. Conditional on the order not being fulfilled.
	RecordShortage(ctx context.Context, id, productID string, partial []ClaimedKey) error
}

// ErrNotFound indicates the requested order does not exist.
var ErrNotFound = errors.New("order not found")

// ErrAlreadyFulfilled indicates a conditional write lost to an earlier
// fulfillment; the stored claim list stands.
var ErrAlreadyFulfilled = errors.New("order already fulfilled")
