// Package notify delivers issued keys by email, best effort. Failures
// here are logged, never propagated into the claim logic.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"keyflow/pkg/logger"
	"keyflow/pkg/order"
)

// Notifier announces fulfillment outcomes.
type Notifier interface {
	// KeysIssued delivers the claimed keys to the customer and alerts
	// the operator. Overall success is at least one delivery landing.
	KeysIssued(ctx context.Context, email, orderID string, claims []order.ClaimedKey) error
}

// Mailer posts messages to an HTTP email API.
type Mailer struct {
	endpoint string
	apiKey   string
	from     string
	operator string
	client   *http.Client
	log      *logger.Logger
}

// NewMailer creates a Mailer sending through the API at endpoint.
// operator is the address alerted on every sale.
func NewMailer(endpoint, apiKey, from, operator string, log *logger.Logger) *Mailer {
	return &Mailer{
		endpoint: endpoint,
		apiKey:   apiKey,
		from:     from,
		operator: operator,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

type message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// KeysIssued sends the customer and operator emails concurrently. The
// two sends are independent: one failing does not stop the other, and
// both outcomes are logged.
func (m *Mailer) KeysIssued(ctx context.Context, email, orderID string, claims []order.ClaimedKey) error {
	var (
		g           errgroup.Group
		customerErr error
		operatorErr error
	)
	g.Go(func() error {
		customerErr = m.send(ctx, message{
			From:    m.from,
			To:      email,
			Subject: "Your license keys",
			Text:    customerBody(orderID, claims),
		})
		return nil
	})
	g.Go(func() error {
		operatorErr = m.send(ctx, message{
			From:    m.from,
			To:      m.operator,
			Subject: fmt.Sprintf("Keys issued for order %s", orderID),
			Text:    operatorBody(orderID, email, claims),
		})
		return nil
	})
	_ = g.Wait()

	m.log.Info(ctx, "notification results",
		"order_id", orderID,
		"customer_ok", customerErr == nil,
		"operator_ok", operatorErr == nil)
	if customerErr != nil {
		m.log.Error(ctx, "customer email failed", "order_id", orderID, "error", customerErr)
	}
	if operatorErr != nil {
		m.log.Error(ctx, "operator email failed", "order_id", orderID, "error", operatorErr)
	}

	if customerErr != nil && operatorErr != nil {
		return fmt.Errorf("both deliveries failed: customer: %v; operator: %v", customerErr, operatorErr)
	}
	return nil
}

func (m *Mailer) send(ctx context.Context, msg message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	res, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("email api returned %s", res.Status)
	}
	return nil
}

func customerBody(orderID string, claims []order.ClaimedKey) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Thanks for your purchase (order %s). Your keys:\n\n", orderID)
	for _, c := range claims {
		fmt.Fprintf(&b, "  %s: %s\n", c.ProductID, c.Key)
	}
	b.WriteString("\nKeep these safe; each key is single-use.\n")
	return b.String()
}

func operatorBody(orderID, email string, claims []order.ClaimedKey) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s fulfilled for %s:\n\n", orderID, email)
	for _, c := range claims {
		fmt.Fprintf(&b, "  %s: %s\n", c.ProductID, c.Key)
	}
	return b.String()
}

// Noop discards every notification. Useful when no email API is
// configured.
type Noop struct{}

// KeysIssued does nothing.
func (Noop) KeysIssued(context.Context, string, string, []order.ClaimedKey) error { return nil }
