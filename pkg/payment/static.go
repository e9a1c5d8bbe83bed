package payment

import (
	"context"
	"sync"

	"keyflow/pkg/order"
)

// StaticOracle is an in-memory oracle for tests and local development.
// Orders are unpaid until marked otherwise.
type StaticOracle struct {
	mu      sync.Mutex
	paid    map[string]bool
	failing bool
}

// NewStatic creates an empty StaticOracle.
func NewStatic() *StaticOracle {
	return &StaticOracle{paid: make(map[string]bool)}
}

// MarkPaid records the order as paid.
func (o *StaticOracle) MarkPaid(orderID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paid[orderID] = true
}

// SetFailing makes every call return ErrUnavailable.
func (o *StaticOracle) SetFailing(failing bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failing = failing
}

// CreateSession returns a deterministic reference.
func (o *StaticOracle) CreateSession(ctx context.Context, orderID string, items []order.LineItem) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failing {
		return "", ErrUnavailable
	}
	return "cs_" + orderID, nil
}

// Status reports the recorded payment state.
func (o *StaticOracle) Status(ctx context.Context, orderID string) (Status, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failing {
		return StatusUnpaid, ErrUnavailable
	}
	if o.paid[orderID] {
		return StatusPaid, nil
	}
	return StatusUnpaid, nil
}
