// Package redis implements the key pool on Redis lists.
//
// Key layout:
//
//	keys:{productID}   list of unclaimed tokens, RPUSH on seed, LPOP on claim
//	inventory:seeded   marker set once by the first successful seed
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"keyflow/pkg/inventory"
)

const seededMarker = "inventory:seeded"

// Store provides a Redis-backed inventory.Store. Claim maps to LPOP,
// which is the atomicity guarantee: each token leaves the list exactly
// once no matter how many processes race on it.
type Store struct {
	rdb      *redis.Client
	products []string
}

// New creates a Store reporting stock for the given catalog products.
func New(rdb *redis.Client, products []string) *Store {
	return &Store{rdb: rdb, products: products}
}

func listKey(productID string) string { return "keys:" + productID }

// Stock returns the pool length for a product.
func (s *Store) Stock(ctx context.Context, productID string) (int, error) {
	n, err := s.rdb.LLen(ctx, listKey(productID)).Result()
	if err != nil {
		return 0, unavailable("stock", err)
	}
	return int(n), nil
}

// StockAll returns every product's pool length via one pipelined call.
func (s *Store) StockAll(ctx context.Context) (map[string]int, error) {
	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.IntCmd, len(s.products))
	for i, id := range s.products {
		cmds[i] = pipe.LLen(ctx, listKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, unavailable("stock all", err)
	}
	out := make(map[string]int, len(s.products))
	for i, id := range s.products {
		out[id] = int(cmds[i].Val())
	}
	return out, nil
}

// Claim pops the oldest key from the product's pool.
func (s *Store) Claim(ctx context.Context, productID string) (string, error) {
	key, err := s.rdb.LPop(ctx, listKey(productID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", inventory.ErrEmpty
	}
	if err != nil {
		return "", unavailable("claim", err)
	}
	return key, nil
}

// Restock appends keys to their pools inside a single MULTI/EXEC so a
// failed batch never half-applies.
func (s *Store) Restock(ctx context.Context, entries []inventory.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	pipe := s.rdb.TxPipeline()
	for _, e := range entries {
		pipe.RPush(ctx, listKey(e.ProductID), e.Key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return unavailable("restock", err)
	}
	return nil
}

// EnsureSeeded seeds the pools exactly once. SETNX on the marker picks
// a single winner among racing processes; losers and later calls are
// no-ops even when every pool has been claimed down to zero.
func (s *Store) EnsureSeeded(ctx context.Context, initial []inventory.Entry) (bool, error) {
	won, err := s.rdb.SetNX(ctx, seededMarker, "1", 0).Result()
	if err != nil {
		return false, unavailable("seed marker", err)
	}
	if !won {
		return false, nil
	}
	if err := s.Restock(ctx, initial); err != nil {
		// Release the marker so a later attempt can seed; leaving it
		// set would strand the store empty forever.
		s.rdb.Del(ctx, seededMarker)
		return false, err
	}
	return true, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, inventory.ErrUnavailable, err)
}
