package models

import "github.com/comanda-app/comanda/internal/money"

// PaymentStatus is the settlement state of one split payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// SplitPayment is one payer's portion of a split order. The batch for an
// order is created atomically when the split is finalized and sealed
// afterwards; each payment settles independently and exactly once.
type SplitPayment struct {
	// ID is the unique identifier for the payment (UUID format).
	ID string

	// OrderID is the order this payment belongs to.
	OrderID string

	// PayerID identifies the member responsible for this portion.
	PayerID string

	// AmountDue is the portion owed. Across an order's batch the amounts
	// sum to the order total.
	AmountDue money.Cents

	// Status is pending, paid, failed or cancelled.
	Status PaymentStatus

	// Token is the expiring access token for out-of-band payment (the pay
	// link). Expiry is a data attribute checked lazily at settlement time,
	// not an active timer.
	Token     string
	ExpiresAt int64

	// Method and GatewayRef record the outcome of the external charge:
	// how it was paid and the gateway's reference. The core never
	// initiates charges itself.
	Method     string
	GatewayRef string

	// CreatedAt and PaidAt are Unix timestamps (PaidAt zero until settled).
	CreatedAt int64
	PaidAt    int64
}
