// Package memory implements an in-memory order repository, for tests
// and local development.
package memory

import (
	"context"
	"sync"
	"time"

	"keyflow/pkg/order"
)

// Repository provides an in-memory implementation of order.Repository.
type Repository struct {
	mu      sync.Mutex
	orders  map[string]order.Order
	failing error
}

// New creates a new in-memory repository.
func New() *Repository {
	return &Repository{orders: make(map[string]order.Order)}
}

// FailWith makes every subsequent write return err; nil restores
// normal operation. Used to exercise persistence failure paths.
func (r *Repository) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failing = err
}

// Create stores the order.
func (r *Repository) Create(ctx context.Context, o order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing != nil {
		return r.failing
	}
	r.orders[o.ID] = o
	return nil
}

// Get retrieves an order by ID.
func (r *Repository) Get(ctx context.Context, id string) (order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	return o, nil
}

// AttachClaims records the claim list if no earlier fulfillment won.
func (r *Repository) AttachClaims(ctx context.Context, id string, claims []order.ClaimedKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing != nil {
		return r.failing
	}
	o, ok := r.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	if o.Fulfilled() {
		return order.ErrAlreadyFulfilled
	}
	now := time.Now().UTC()
	o.Claims = claims
	o.FulfilledAt = &now
	r.orders[id] = o
	return nil
}

// RecordShortage stores partial claims and the dry product.
func (r *Repository) RecordShortage(ctx context.Context, id, productID string, partial []order.ClaimedKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing != nil {
		return r.failing
	}
	o, ok := r.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	if o.Fulfilled() {
		return order.ErrAlreadyFulfilled
	}
	o.Shortage = productID
	o.Partial = partial
	r.orders[id] = o
	return nil
}
