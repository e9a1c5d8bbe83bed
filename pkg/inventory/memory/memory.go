// Package memory implements the key pool in process memory, for tests
// and local development.
package memory

import (
	"context"
	"sync"

	"keyflow/pkg/inventory"
)

// Store provides an in-memory implementation of inventory.Store with
// the same FIFO and seed-once semantics as the Redis store.
type Store struct {
	mu       sync.Mutex
	pools    map[string][]string
	products []string
	seeded   bool
	failing  bool
}

// New creates a Store reporting stock for the given catalog products.
func New(products []string) *Store {
	return &Store{pools: make(map[string][]string), products: products}
}

// SetFailing makes every operation return inventory.ErrUnavailable,
// simulating a backing-store outage.
func (s *Store) SetFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
}

// Stock returns the pool length for a product.
func (s *Store) Stock(ctx context.Context, productID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return 0, inventory.ErrUnavailable
	}
	return len(s.pools[productID]), nil
}

// StockAll returns every product's pool length.
func (s *Store) StockAll(ctx context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, inventory.ErrUnavailable
	}
	out := make(map[string]int, len(s.products))
	for _, id := range s.products {
		out[id] = len(s.pools[id])
	}
	return out, nil
}

// Claim pops the oldest key from the product's pool.
func (s *Store) Claim(ctx context.Context, productID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return "", inventory.ErrUnavailable
	}
	pool := s.pools[productID]
	if len(pool) == 0 {
		return "", inventory.ErrEmpty
	}
	key := pool[0]
	s.pools[productID] = pool[1:]
	return key, nil
}

// Restock appends keys to their pools.
func (s *Store) Restock(ctx context.Context, entries []inventory.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return inventory.ErrUnavailable
	}
	for _, e := range entries {
		s.pools[e.ProductID] = append(s.pools[e.ProductID], e.Key)
	}
	return nil
}

// EnsureSeeded seeds the pools exactly once per Store. The flag is
// independent of pool sizes, so depleted pools are never re-seeded.
func (s *Store) EnsureSeeded(ctx context.Context, initial []inventory.Entry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return false, inventory.ErrUnavailable
	}
	if s.seeded {
		return false, nil
	}
	s.seeded = true
	for _, e := range initial {
		s.pools[e.ProductID] = append(s.pools[e.ProductID], e.Key)
	}
	return true, nil
}
