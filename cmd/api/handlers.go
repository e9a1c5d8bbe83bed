package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"keyflow/pkg/fulfill"
	"keyflow/pkg/inventory"
	"keyflow/pkg/keygen"
	"keyflow/pkg/metrics"
	"keyflow/pkg/order"
	"keyflow/pkg/otel"
	"keyflow/pkg/payment"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type checkoutItem struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type checkoutRequest struct {
	Email string         `json:"email" validate:"required,email"`
	Items []checkoutItem `json:"items" validate:"required,min=1,dive"`
}

type checkoutResponse struct {
	OrderID     string `json:"orderId"`
	CheckoutRef string `json:"checkoutRef"`
}

// checkoutHandler starts a checkout session. The cart is captured
// verbatim on the order record; fulfillment never re-reads the catalog.
// @Summary Start checkout
// @Accept json
// @Produce json
// @Param cart body checkoutRequest true "Cart"
// @Success 201 {object} checkoutResponse
// @Router /checkout [post]
func checkoutHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "checkoutHandler")
	defer span.End()

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items := make([]order.LineItem, len(req.Items))
	for i, it := range req.Items {
		if _, ok := catalog.Find(it.ProductID); !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown product %q", it.ProductID))
			return
		}
		items[i] = order.LineItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	o := order.Order{
		ID:        uuid.NewString(),
		Email:     req.Email,
		Items:     items,
		CreatedAt: time.Now().UTC(),
	}

	ref, err := oracle.CreateSession(ctx, o.ID, items)
	if err != nil {
		log.Error(ctx, "create checkout session", "error", err)
		writeError(w, http.StatusServiceUnavailable, "payment provider unavailable, try again")
		return
	}
	o.CheckoutRef = ref

	if err := orders.Create(ctx, o); err != nil {
		log.Error(ctx, "create order", "error", err)
		writeError(w, http.StatusInternalServerError, "could not create order")
		return
	}
	writeJSON(w, http.StatusCreated, checkoutResponse{OrderID: o.ID, CheckoutRef: ref})
}

type fulfillResponse struct {
	Keys    []order.ClaimedKey `json:"keys"`
	Warning string             `json:"warning,omitempty"`
}

// fulfillHandler claims keys for a paid order. Safe to call repeatedly:
// an already fulfilled order returns its stored keys.
// @Summary Fulfill order
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} fulfillResponse
// @Router /orders/{id}/fulfill [post]
func fulfillHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "fulfillHandler")
	defer span.End()

	id := mux.Vars(r)["id"]
	keys, err := coordinator.Fulfill(ctx, id)

	var (
		oos *fulfill.OutOfStockError
		pf  *fulfill.PersistFailedError
	)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, fulfillResponse{Keys: keys})
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, fulfill.ErrPaymentNotConfirmed):
		writeError(w, http.StatusPaymentRequired, "payment not completed")
	case errors.As(err, &oos):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":         "out of stock",
			"productId":     oos.ProductID,
			"partialClaims": oos.Partial,
		})
	case errors.As(err, &pf):
		// Keys were claimed but recording them failed: deliver them
		// anyway and flag the degraded idempotence for the operator.
		log.Error(ctx, "claims not persisted", "order_id", id, "error", err)
		writeJSON(w, http.StatusOK, fulfillResponse{
			Keys:    pf.Claims,
			Warning: "keys issued but not recorded; contact support before retrying",
		})
	case errors.Is(err, inventory.ErrUnavailable), errors.Is(err, payment.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable, safe to retry")
	default:
		log.Error(ctx, "fulfill", "order_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "fulfillment failed")
	}
}

// getOrderHandler returns the order record, including claimed keys once
// fulfilled.
// @Summary Get order
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} order.Order
// @Router /orders/{id} [get]
func getOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "getOrderHandler")
	defer span.End()

	id := mux.Vars(r)["id"]
	o, err := orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		log.Error(ctx, "get order", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load order")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// stockHandler returns a per-product stock snapshot.
// @Summary Stock snapshot
// @Produce json
// @Success 200 {object} map[string]int
// @Router /stock [get]
func stockHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "stockHandler")
	defer span.End()

	all, err := inv.StockAll(ctx)
	if err != nil {
		log.Error(ctx, "stock snapshot", "error", err)
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable, safe to retry")
		return
	}
	for id, n := range all {
		metrics.StockLevel.WithLabelValues(id).Set(float64(n))
	}
	writeJSON(w, http.StatusOK, map[string]any{"stock": all})
}

type seedRequest struct {
	Counts map[string]int `json:"counts"`
}

// seedHandler runs the one-time initial seeding. Later calls are
// no-ops regardless of current stock: a sold-out pool is never
// re-seeded.
// @Summary Seed key pools
// @Accept json
// @Produce json
// @Param counts body seedRequest false "Per-product counts"
// @Success 200 {object} map[string]any
// @Router /admin/seed [post]
func seedHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "seedHandler")
	defer span.End()

	counts := make(map[string]int, len(seedCounts))
	for id, n := range seedCounts {
		counts[id] = n
	}
	var req seedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
		for id, n := range req.Counts {
			if _, ok := catalog.Find(id); !ok {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown product %q", id))
				return
			}
			counts[id] = n
		}
	}

	seeded, err := inv.EnsureSeeded(ctx, seedEntries(counts))
	if err != nil {
		log.Error(ctx, "seed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable, safe to retry")
		return
	}
	all, err := inv.StockAll(ctx)
	if err != nil {
		log.Error(ctx, "stock after seed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable, safe to retry")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"seeded": seeded, "stock": all})
}

type restockRequest struct {
	Entries []inventory.Entry `json:"entries"`
	Counts  map[string]int    `json:"counts"`
}

// restockHandler appends keys to the pools: explicit entries, generated
// per-product counts, or both.
// @Summary Restock key pools
// @Accept json
// @Produce json
// @Param batch body restockRequest true "Keys to add"
// @Success 200 {object} map[string]any
// @Router /admin/restock [post]
func restockHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "restockHandler")
	defer span.End()

	var req restockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entries := req.Entries
	for _, e := range entries {
		if _, ok := catalog.Find(e.ProductID); !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown product %q", e.ProductID))
			return
		}
		if e.Key == "" {
			writeError(w, http.StatusBadRequest, "entries must carry a key")
			return
		}
	}
	for id, n := range req.Counts {
		if _, ok := catalog.Find(id); !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown product %q", id))
			return
		}
		for _, key := range keygen.Batch(keyPrefix, n) {
			entries = append(entries, inventory.Entry{ProductID: id, Key: key})
		}
	}
	if len(entries) == 0 {
		writeError(w, http.StatusBadRequest, "nothing to restock")
		return
	}

	if err := inv.Restock(ctx, entries); err != nil {
		log.Error(ctx, "restock", "error", err)
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable, safe to retry")
		return
	}
	all, err := inv.StockAll(ctx)
	if err != nil {
		log.Error(ctx, "stock after restock", "error", err)
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable, safe to retry")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"added": len(entries), "stock": all})
}
