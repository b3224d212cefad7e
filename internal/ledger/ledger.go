// Package ledger implements the order lifecycle state machine.
//
// States: pending → confirmed → preparing → ready → delivered, with
// cancelled reachable from any non-terminal state. All functions mutate the
// order in place and must run under the caller's per-order lock; totals are
// recomputed inside the same mutation, never patched incrementally.
package ledger

import (
	"time"

	"github.com/comanda-app/comanda/internal/apperr"
	"github.com/comanda-app/comanda/internal/models"
	"github.com/comanda-app/comanda/internal/money"
	"github.com/google/uuid"
)

// New creates an order in the pending state for a session.
func New(sessionID string, now time.Time) *models.Order {
	return &models.Order{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Status:    models.OrderPending,
		CreatedAt: now.Unix(),
	}
}

// AddLine appends a line item and recomputes totals. Lines may only be
// mutated while the order is pending and before a split batch is sealed;
// afterwards the client must re-fetch and re-confirm before retrying.
func AddLine(o *models.Order, line models.OrderLine) error {
	if err := mutable(o); err != nil {
		return err
	}
	if line.Quantity <= 0 {
		return apperr.New(apperr.CodeInvalidArgument, "line quantity must be positive")
	}
	if line.UnitPrice < 0 {
		return apperr.New(apperr.CodeInvalidArgument, "line unit price must not be negative")
	}
	if line.ID == "" {
		line.ID = uuid.New().String()
	}
	o.Lines = append(o.Lines, line)
	recompute(o)
	return nil
}

// SetCharges records tax and discount and recomputes the total. Charges
// follow the same mutation window as lines.
func SetCharges(o *models.Order, tax, discount money.Cents) error {
	if err := mutable(o); err != nil {
		return err
	}
	if tax < 0 || discount < 0 {
		return apperr.New(apperr.CodeInvalidArgument, "tax and discount must not be negative")
	}
	o.Tax = tax
	o.Discount = discount
	recompute(o)
	return nil
}

// Confirm moves a pending order to confirmed. Only staff or the session
// owner confirm; the caller enforces that and passes the check result.
func Confirm(o *models.Order, now time.Time) error {
	if o.Status != models.OrderPending {
		return invalidTransition(o, models.OrderConfirmed)
	}
	if len(o.Lines) == 0 {
		return apperr.New(apperr.CodeInvalidArgument, "cannot confirm an order with no items")
	}
	o.Status = models.OrderConfirmed
	o.ConfirmedAt = now.Unix()
	return nil
}

// StartPreparing moves the order to preparing and records the start time
// and an optional estimated-ready duration. Reachable from confirmed, or
// directly from pending as the walk-in confirm-and-start fast path.
func StartPreparing(o *models.Order, estimate time.Duration, now time.Time) error {
	switch o.Status {
	case models.OrderConfirmed:
	case models.OrderPending:
		// Fast path: confirm and start in one step.
		if len(o.Lines) == 0 {
			return apperr.New(apperr.CodeInvalidArgument, "cannot start an order with no items")
		}
		o.ConfirmedAt = now.Unix()
	default:
		return invalidTransition(o, models.OrderPreparing)
	}
	o.Status = models.OrderPreparing
	o.PreparingAt = now.Unix()
	if estimate > 0 {
		o.EstimatedReadySeconds = int64(estimate.Seconds())
	}
	return nil
}

// MarkReady moves a preparing order to ready.
func MarkReady(o *models.Order, now time.Time) error {
	if o.Status != models.OrderPreparing {
		return invalidTransition(o, models.OrderReady)
	}
	o.Status = models.OrderReady
	o.ReadyAt = now.Unix()
	return nil
}

// Deliver moves a ready order to the terminal delivered state. When the
// order is split, only the payment reconciler may deliver (viaReconciler);
// staff deliver directly only while the order is not split.
func Deliver(o *models.Order, viaReconciler bool, now time.Time) error {
	if o.Status != models.OrderReady {
		return invalidTransition(o, models.OrderDelivered)
	}
	if o.Split && !viaReconciler {
		return apperr.WithMetadata(apperr.CodeInvalidTransition,
			"split orders are delivered automatically once all payers settle",
			map[string]string{"order_id": o.ID})
	}
	o.Status = models.OrderDelivered
	o.DeliveredAt = now.Unix()
	return nil
}

// Cancel moves the order to the terminal cancelled state, recording the
// reason. Forbidden once delivered or already cancelled.
func Cancel(o *models.Order, reason string, now time.Time) error {
	if o.Status.Terminal() {
		return invalidTransition(o, models.OrderCancelled)
	}
	o.Status = models.OrderCancelled
	o.CancelReason = reason
	o.CancelledAt = now.Unix()
	return nil
}

// mutable rejects line and charge changes outside the mutation window.
// A sealed split fixes the amounts the payment batch was computed from, so
// the order total must not move again even while still pending.
func mutable(o *models.Order) error {
	if o.Status != models.OrderPending {
		return apperr.WithMetadata(apperr.CodeStaleOrderState,
			"order is no longer accepting changes",
			map[string]string{"order_id": o.ID, "status": string(o.Status)})
	}
	if o.Split {
		return apperr.WithMetadata(apperr.CodeStaleOrderState,
			"order amounts are sealed by a finalized split",
			map[string]string{"order_id": o.ID})
	}
	return nil
}

// recompute derives subtotal and total from the lines and charges.
func recompute(o *models.Order) {
	var subtotal money.Cents
	for _, l := range o.Lines {
		subtotal += l.Amount()
	}
	o.Subtotal = subtotal
	o.Total = subtotal + o.Tax - o.Discount
}

func invalidTransition(o *models.Order, to models.OrderStatus) error {
	return apperr.WithMetadata(apperr.CodeInvalidTransition,
		"order cannot move from "+string(o.Status)+" to "+string(to),
		map[string]string{
			"order_id": o.ID,
			"from":     string(o.Status),
			"to":       string(to),
		})
}
