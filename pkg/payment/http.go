package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"keyflow/pkg/order"
)

// HTTPOracle talks JSON over HTTP to the payment provider's API. Every
// call is bounded by the client timeout; a timeout surfaces as
// ErrUnavailable and is safe to retry.
type HTTPOracle struct {
	base   string
	apiKey string
	client *http.Client
}

// NewHTTP creates an oracle for the provider API at base.
func NewHTTP(base, apiKey string, timeout time.Duration) *HTTPOracle {
	return &HTTPOracle{
		base:   base,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

type sessionRequest struct {
	OrderID string           `json:"orderId"`
	Items   []order.LineItem `json:"items"`
}

type sessionResponse struct {
	Ref           string `json:"ref"`
	PaymentStatus string `json:"paymentStatus"`
}

// CreateSession opens a checkout session.
func (o *HTTPOracle) CreateSession(ctx context.Context, orderID string, items []order.LineItem) (string, error) {
	body, err := json.Marshal(sessionRequest{OrderID: orderID, Items: items})
	if err != nil {
		return "", fmt.Errorf("encoding session request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.base+"/sessions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	var resp sessionResponse
	if err := o.do(req, &resp); err != nil {
		return "", err
	}
	return resp.Ref, nil
}

// Status reports the provider's payment state for the order.
func (o *HTTPOracle) Status(ctx context.Context, orderID string) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.base+"/sessions/"+orderID, nil)
	if err != nil {
		return StatusUnpaid, err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	var resp sessionResponse
	if err := o.do(req, &resp); err != nil {
		return StatusUnpaid, err
	}
	if resp.PaymentStatus == string(StatusPaid) {
		return StatusPaid, nil
	}
	return StatusUnpaid, nil
}

func (o *HTTPOracle) do(req *http.Request, out any) error {
	res, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("%w: provider returned %s", ErrUnavailable, res.Status)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	return nil
}
