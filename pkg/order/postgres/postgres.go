// Package postgres persists orders in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"keyflow/pkg/order"
)

// Repository implements order.Repository on PostgreSQL.
type Repository struct {
	db *sql.DB
}

// New creates a PostgreSQL repository.
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates the orders table.
func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS orders (
			id           TEXT PRIMARY KEY,
			email        TEXT NOT NULL,
			items        JSONB NOT NULL,
			claims       JSONB,
			shortage     TEXT,
			partial      JSONB,
			checkout_ref TEXT,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			fulfilled_at TIMESTAMPTZ
		)`)
	return err
}

// Create inserts a new order with its cart captured verbatim.
func (r *Repository) Create(ctx context.Context, o order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encoding items: %w", err)
	}
	// lib/pq encodes []byte as bytea, so JSONB parameters go as text.
	_, err = r.db.ExecContext(ctx,
		"INSERT INTO orders (id, email, items, checkout_ref, created_at) VALUES ($1,$2,$3,$4,$5)",
		o.ID, o.Email, string(items), o.CheckoutRef, o.CreatedAt)
	return err
}

// Get retrieves an order by ID.
func (r *Repository) Get(ctx context.Context, id string) (order.Order, error) {
	var (
		o        order.Order
		items    []byte
		claims   []byte
		partial  []byte
		shortage sql.NullString
		ref      sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, email, items, claims, shortage, partial, checkout_ref, created_at, fulfilled_at FROM orders WHERE id=$1",
		id).Scan(&o.ID, &o.Email, &items, &claims, &shortage, &partial, &ref, &o.CreatedAt, &o.FulfilledAt)
	if err == sql.ErrNoRows {
		return order.Order{}, order.ErrNotFound
	}
	if err != nil {
		return order.Order{}, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return order.Order{}, fmt.Errorf("decoding items: %w", err)
	}
	if claims != nil {
		if err := json.Unmarshal(claims, &o.Claims); err != nil {
			return order.Order{}, fmt.Errorf("decoding claims: %w", err)
		}
	}
	if partial != nil {
		if err := json.Unmarshal(partial, &o.Partial); err != nil {
			return order.Order{}, fmt.Errorf("decoding partial claims: %w", err)
		}
	}
	o.Shortage = shortage.String
	o.CheckoutRef = ref.String
	return o, nil
}

// AttachClaims records the claim list with a single conditional write.
// The WHERE clause on claims IS NULL is the compare-and-swap: of two
// racing fulfillments, exactly one updates a row.
func (r *Repository) AttachClaims(ctx context.Context, id string, claims []order.ClaimedKey) error {
	buf, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("encoding claims: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE orders SET claims=$2, fulfilled_at=now() WHERE id=$1 AND claims IS NULL",
		id, string(buf))
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return r.zeroRowsReason(ctx, id)
	}
	return nil
}

// RecordShortage stores partial claims and the dry product, guarded by
// the same not-yet-fulfilled condition as AttachClaims.
func (r *Repository) RecordShortage(ctx context.Context, id, productID string, partial []order.ClaimedKey) error {
	buf, err := json.Marshal(partial)
	if err != nil {
		return fmt.Errorf("encoding partial claims: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE orders SET shortage=$2, partial=$3 WHERE id=$1 AND claims IS NULL",
		id, productID, string(buf))
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return r.zeroRowsReason(ctx, id)
	}
	return nil
}

// zeroRowsReason distinguishes a missing order from one that already
// carries claims.
func (r *Repository) zeroRowsReason(ctx context.Context, id string) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM orders WHERE id=$1)", id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return order.ErrNotFound
	}
	return order.ErrAlreadyFulfilled
}
