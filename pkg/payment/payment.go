// Package payment abstracts the payment provider as an opaque oracle:
// open a checkout session, and ask whether an order has been paid.
// Provider protocol details stay behind this interface.
package payment

import (
	"context"
	"errors"

	"keyflow/pkg/order"
)

// Status is the provider's view of an order's payment.
type Status string

// Payment states observed through the oracle.
const (
	StatusPaid   Status = "paid"
	StatusUnpaid Status = "unpaid"
)

// ErrUnavailable indicates the provider could not be reached. Safe to
// retry: a status lookup has no side effects.
var ErrUnavailable = errors.New("payment provider unavailable")

// Oracle is the narrow view of the payment provider the core needs.
type Oracle interface {
	// CreateSession opens a checkout session for the order and returns
	// an opaque provider reference.
	CreateSession(ctx context.Context, orderID string, items []order.LineItem) (string, error)

	// Status reports whether the order has been paid.
	Status(ctx context.Context, orderID string) (Status, error)
}
