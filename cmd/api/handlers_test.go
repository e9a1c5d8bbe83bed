package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyflow/pkg/fulfill"
	"keyflow/pkg/inventory"
	invmem "keyflow/pkg/inventory/memory"
	"keyflow/pkg/logger"
	"keyflow/pkg/notify"
	ordmem "keyflow/pkg/order/memory"
	"keyflow/pkg/payment"
	"keyflow/pkg/product"
)

type testEnv struct {
	router http.Handler
	inv    *invmem.Store
	orders *ordmem.Repository
	oracle *payment.StaticOracle
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	log = logger.New(io.Discard, logger.LevelInfo, "test", nil)
	catalog = product.Default()

	invStore := invmem.New(catalog.IDs())
	repo := ordmem.New()
	po := payment.NewStatic()

	inv = invStore
	orders = repo
	oracle = po
	coordinator = fulfill.New(inv, orders, oracle, notify.Noop{}, log)
	adminSecret = "test-secret"
	seedCounts = map[string]int{product.Weekly: 3, product.Monthly: 2, product.Lifetime: 1}

	return &testEnv{router: newRouter(), inv: invStore, orders: repo, oracle: po}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
}

func TestCheckoutAndFulfillFlow(t *testing.T) {
	e := setup(t)
	require.NoError(t, e.inv.Restock(context.Background(), []inventory.Entry{
		{ProductID: product.Weekly, Key: "W1"},
		{ProductID: product.Weekly, Key: "W2"},
	}))

	rec := e.do(t, http.MethodPost, "/checkout", map[string]any{
		"email": "buyer@example.com",
		"items": []map[string]any{{"productId": product.Weekly, "quantity": 2}},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created checkoutResponse
	decode(t, rec, &created)
	assert.NotEmpty(t, created.OrderID)
	assert.Equal(t, "cs_"+created.OrderID, created.CheckoutRef)

	fulfillPath := fmt.Sprintf("/orders/%s/fulfill", created.OrderID)

	// Not paid yet.
	rec = e.do(t, http.MethodPost, fulfillPath, nil, nil)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	e.oracle.MarkPaid(created.OrderID)

	rec = e.do(t, http.MethodPost, fulfillPath, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var first fulfillResponse
	decode(t, rec, &first)
	require.Len(t, first.Keys, 2)

	// Reload of the confirmation page: identical keys, no new claims.
	rec = e.do(t, http.MethodPost, fulfillPath, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var second fulfillResponse
	decode(t, rec, &second)
	assert.Equal(t, first.Keys, second.Keys)

	n, err := e.inv.Stock(context.Background(), product.Weekly)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCheckoutValidation(t *testing.T) {
	e := setup(t)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing email", map[string]any{
			"items": []map[string]any{{"productId": product.Weekly, "quantity": 1}},
		}},
		{"bad email", map[string]any{
			"email": "nope",
			"items": []map[string]any{{"productId": product.Weekly, "quantity": 1}},
		}},
		{"empty cart", map[string]any{"email": "a@b.com", "items": []map[string]any{}}},
		{"zero quantity", map[string]any{
			"email": "a@b.com",
			"items": []map[string]any{{"productId": product.Weekly, "quantity": 0}},
		}},
		{"unknown product", map[string]any{
			"email": "a@b.com",
			"items": []map[string]any{{"productId": "bogus", "quantity": 1}},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, "/checkout", tc.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestFulfillUnknownOrder(t *testing.T) {
	e := setup(t)
	rec := e.do(t, http.MethodPost, "/orders/nope/fulfill", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFulfillOutOfStock(t *testing.T) {
	e := setup(t)

	rec := e.do(t, http.MethodPost, "/checkout", map[string]any{
		"email": "buyer@example.com",
		"items": []map[string]any{{"productId": product.Monthly, "quantity": 1}},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created checkoutResponse
	decode(t, rec, &created)
	e.oracle.MarkPaid(created.OrderID)

	rec = e.do(t, http.MethodPost, fmt.Sprintf("/orders/%s/fulfill", created.OrderID), nil, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	var body struct {
		ProductID string `json:"productId"`
	}
	decode(t, rec, &body)
	assert.Equal(t, product.Monthly, body.ProductID)
}

func TestStockSnapshot(t *testing.T) {
	e := setup(t)
	require.NoError(t, e.inv.Restock(context.Background(), []inventory.Entry{
		{ProductID: product.Weekly, Key: "W1"},
	}))

	rec := e.do(t, http.MethodGet, "/stock", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Stock map[string]int `json:"stock"`
	}
	decode(t, rec, &body)
	assert.Equal(t, 1, body.Stock[product.Weekly])
	assert.Equal(t, 0, body.Stock[product.Monthly])
}

func TestAdminSeedGuard(t *testing.T) {
	e := setup(t)

	rec := e.do(t, http.MethodPost, "/admin/seed", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, "/admin/seed", nil, map[string]string{"X-Admin-Secret": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminSeedIdempotent(t *testing.T) {
	e := setup(t)
	auth := map[string]string{"X-Admin-Secret": "test-secret"}

	rec := e.do(t, http.MethodPost, "/admin/seed", seedRequest{}, auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var first struct {
		Seeded bool           `json:"seeded"`
		Stock  map[string]int `json:"stock"`
	}
	decode(t, rec, &first)
	assert.True(t, first.Seeded)
	assert.Equal(t, 3, first.Stock[product.Weekly])

	rec = e.do(t, http.MethodPost, "/admin/seed", seedRequest{}, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	var second struct {
		Seeded bool           `json:"seeded"`
		Stock  map[string]int `json:"stock"`
	}
	decode(t, rec, &second)
	assert.False(t, second.Seeded)
	assert.Equal(t, first.Stock, second.Stock, "repeat seed adds nothing")
}

func TestAdminRestock(t *testing.T) {
	e := setup(t)
	auth := map[string]string{"X-Admin-Secret": "test-secret"}

	rec := e.do(t, http.MethodPost, "/admin/restock", restockRequest{
		Entries: []inventory.Entry{{ProductID: product.Lifetime, Key: "SHADOW-AAAA-BBBB"}},
		Counts:  map[string]int{product.Weekly: 2},
	}, auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Added int            `json:"added"`
		Stock map[string]int `json:"stock"`
	}
	decode(t, rec, &body)
	assert.Equal(t, 3, body.Added)
	assert.Equal(t, 2, body.Stock[product.Weekly])
	assert.Equal(t, 1, body.Stock[product.Lifetime])

	rec = e.do(t, http.MethodPost, "/admin/restock", restockRequest{}, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
