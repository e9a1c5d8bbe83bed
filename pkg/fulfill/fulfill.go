// Package fulfill turns one verified-paid order into a durable set of
// claimed license keys, exactly once.
package fulfill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"keyflow/pkg/inventory"
	"keyflow/pkg/logger"
	"keyflow/pkg/metrics"
	"keyflow/pkg/notify"
	"keyflow/pkg/order"
	"keyflow/pkg/otel"
	"keyflow/pkg/payment"
)

// ErrPaymentNotConfirmed indicates the provider has not recorded the
// order as paid. Terminal for this call; re-check payment later.
var ErrPaymentNotConfirmed = errors.New("payment not confirmed")

// OutOfStockError reports a shortage together with the keys claimed
// before the pool ran dry, so an operator can complete or refund the
// order. Claimed keys are not restocked automatically.
type OutOfStockError struct {
	ProductID string
	Partial   []order.ClaimedKey
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("out of stock for %s (%d keys claimed before shortage)", e.ProductID, len(e.Partial))
}

// PersistFailedError means keys were claimed but attaching them to the
// order failed. The caller still receives the keys once; idempotent
// re-delivery on a future call needs operator reconciliation.
type PersistFailedError struct {
	Claims []order.ClaimedKey
	Err    error
}

func (e *PersistFailedError) Error() string {
	return fmt.Sprintf("claimed %d keys but persisting the claim list failed: %v", len(e.Claims), e.Err)
}

func (e *PersistFailedError) Unwrap() error { return e.Err }

// Coordinator drives fulfillment against the inventory store, the
// order repository and the payment oracle.
type Coordinator struct {
	inventory inventory.Store
	orders    order.Repository
	oracle    payment.Oracle
	notifier  notify.Notifier
	log       *logger.Logger
}

// New constructs a Coordinator.
func New(inv inventory.Store, orders order.Repository, oracle payment.Oracle, notifier notify.Notifier, log *logger.Logger) *Coordinator {
	return &Coordinator{
		inventory: inv,
		orders:    orders,
		oracle:    oracle,
		notifier:  notifier,
		log:       log,
	}
}

// Fulfill claims one key per purchased unit and records the result on
// the order. Repeat calls for a fulfilled order return the stored
// claim list verbatim and touch no stock.
func (c *Coordinator) Fulfill(ctx context.Context, orderID string) ([]order.ClaimedKey, error) {
	ctx, span := otel.AddSpan(ctx, "fulfill")
	defer span.End()

	o, err := c.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	// A prior success wins outright: the stored list is the sole
	// source of truth for repeat requests.
	if o.Fulfilled() {
		return o.Claims, nil
	}

	status, err := c.oracle.Status(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("payment lookup: %w", err)
	}
	if status != payment.StatusPaid {
		return nil, ErrPaymentNotConfirmed
	}

	// A prior attempt hit a dry pool. Claiming again here would issue
	// keys beyond what is recorded, so surface the stored shortage
	// until an operator resolves it.
	if o.Shortage != "" {
		return nil, &OutOfStockError{ProductID: o.Shortage, Partial: o.Partial}
	}

	claimed, err := c.claimAll(ctx, o)
	if err != nil {
		return nil, err
	}

	if err := c.orders.AttachClaims(ctx, o.ID, claimed); err != nil {
		if errors.Is(err, order.ErrAlreadyFulfilled) {
			// Lost the conditional write to a concurrent fulfillment
			// of this order. Hand back the winner's list and flag our
			// claims for reconciliation.
			if cur, gerr := c.orders.Get(ctx, o.ID); gerr == nil && cur.Fulfilled() {
				c.log.Error(ctx, "orphaned claims after fulfillment race",
					"order_id", o.ID, "orphaned", len(claimed))
				return cur.Claims, nil
			}
		}
		return claimed, &PersistFailedError{Claims: claimed, Err: err}
	}

	c.log.Info(ctx, "order fulfilled", "order_id", o.ID, "keys", len(claimed))
	c.notifyIssued(ctx, o.Email, o.ID, claimed)
	return claimed, nil
}

// claimAll walks line items and units in recorded order. On shortage it
// records the partial claims, then fails the whole operation: keys are
// never silently under-delivered and never auto-restocked.
func (c *Coordinator) claimAll(ctx context.Context, o order.Order) ([]order.ClaimedKey, error) {
	var claimed []order.ClaimedKey
	for _, item := range o.Items {
		for i := 0; i < item.Quantity; i++ {
			key, err := c.inventory.Claim(ctx, item.ProductID)
			if errors.Is(err, inventory.ErrEmpty) {
				metrics.ClaimsTotal.WithLabelValues(item.ProductID, "empty").Inc()
				c.recordShortage(ctx, o.ID, item.ProductID, claimed)
				return nil, &OutOfStockError{ProductID: item.ProductID, Partial: claimed}
			}
			if err != nil {
				metrics.ClaimsTotal.WithLabelValues(item.ProductID, "error").Inc()
				if len(claimed) > 0 {
					// Keys were already claimed, so a blind retry
					// would claim them again. Park the order for the
					// operator, same as a shortage.
					c.recordShortage(ctx, o.ID, item.ProductID, claimed)
				}
				return nil, fmt.Errorf("claiming %s (unit %d, %d already claimed): %w",
					item.ProductID, i+1, len(claimed), err)
			}
			metrics.ClaimsTotal.WithLabelValues(item.ProductID, "ok").Inc()
			claimed = append(claimed, order.ClaimedKey{ProductID: item.ProductID, Key: key})
		}
	}
	return claimed, nil
}

func (c *Coordinator) recordShortage(ctx context.Context, orderID, productID string, partial []order.ClaimedKey) {
	if err := c.orders.RecordShortage(ctx, orderID, productID, partial); err != nil {
		c.log.Error(ctx, "recording shortage failed",
			"order_id", orderID, "product", productID, "partial", len(partial), "error", err)
	}
}

// notifyIssued fires the notification without blocking fulfillment;
// delivery failure never fails the claim.
func (c *Coordinator) notifyIssued(ctx context.Context, email, orderID string, claims []order.ClaimedKey) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := c.notifier.KeysIssued(ctx, email, orderID, claims); err != nil {
			c.log.Error(ctx, "notification failed", "order_id", orderID, "error", err)
		}
	}()
}
