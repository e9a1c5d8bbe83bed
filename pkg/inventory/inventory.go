// Package inventory defines the shared pool of unclaimed license keys.
package inventory

import (
	"context"
	"errors"
)

// Entry pairs a key token with the product pool it belongs to.
type Entry struct {
	ProductID string `json:"productId"`
	Key       string `json:"key"`
}

// ErrEmpty signals that a product's pool has no keys left.
var ErrEmpty = errors.New("no keys available")

// ErrUnavailable indicates the backing store could not be reached. The
// operation did not apply and is safe to retry.
var ErrUnavailable = errors.New("inventory store unavailable")

// Store is a per-product pool of single-use keys shared by every
// process of the service. A key handed out by Claim is gone for good:
// implementations never return it to a pool and never hand the same
// key to two callers.
type Store interface {
	// Stock reports the number of unclaimed keys for a product.
	// Unknown products report 0, not an error.
	Stock(ctx context.Context, productID string) (int, error)

	// StockAll reports stock for every catalog product in a single
	// round-trip to the backing store.
	StockAll(ctx context.Context) (map[string]int, error)

	// Claim atomically removes and returns the oldest key in the
	// product's pool, or ErrEmpty when none remain.
	Claim(ctx context.Context, productID string) (string, error)

	// Restock appends keys to their pools as one all-or-nothing batch.
	// Keys are not deduplicated; callers generate unique tokens.
	Restock(ctx context.Context, entries []Entry) error

	// EnsureSeeded populates the pools from initial exactly once per
	// store lifetime and reports whether seeding ran. The guard is a
	// durable marker independent of pool sizes, so a sold-out pool is
	// never mistaken for a never-seeded one and previously claimed
	// keys are never reissued.
	EnsureSeeded(ctx context.Context, initial []Entry) (bool, error)
}
