package models

import "github.com/comanda-app/comanda/internal/money"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	// OrderPending is the initial state; lines may only be mutated here.
	OrderPending OrderStatus = "pending"
	// OrderConfirmed means staff accepted the order; lines are locked.
	OrderConfirmed OrderStatus = "confirmed"
	// OrderPreparing means the kitchen started working on the order.
	OrderPreparing OrderStatus = "preparing"
	// OrderReady means the kitchen finished and the order awaits delivery.
	OrderReady OrderStatus = "ready"
	// OrderDelivered is the terminal success state.
	OrderDelivered OrderStatus = "delivered"
	// OrderCancelled is the terminal failure state; the record is kept for
	// audit and is never hard-deleted while payments exist.
	OrderCancelled OrderStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// SplitPolicyKind names the rule used to divide an order among payers.
type SplitPolicyKind string

const (
	SplitEqual      SplitPolicyKind = "equal"
	SplitByItem     SplitPolicyKind = "by_item"
	SplitCustom     SplitPolicyKind = "custom"
	SplitPercentage SplitPolicyKind = "percentage"
)

// Order is the authoritative record for one dining order.
type Order struct {
	// ID is the unique identifier for the order (UUID format).
	ID string

	// SessionID is the table session this order belongs to.
	SessionID string

	// Lines are the line items, in the order they were added.
	Lines []OrderLine

	// Subtotal, Tax, Discount and Total are derived amounts. They are
	// recomputed whenever lines or charges change, under the same
	// per-order lock as the mutation; Total == Subtotal + Tax - Discount.
	Subtotal money.Cents
	Tax      money.Cents
	Discount money.Cents
	Total    money.Cents

	// Status is the lifecycle state.
	Status OrderStatus

	// Split is set once a split batch has been finalized for the order.
	// The batch is sealed: no further split payments can be created.
	Split       bool
	SplitPolicy SplitPolicyKind

	// CancelReason records why the order was cancelled, if it was.
	CancelReason string

	// EstimatedReadySeconds is the kitchen's optional estimate, recorded
	// when preparation starts.
	EstimatedReadySeconds int64

	// Timestamps per transition (Unix seconds, zero = not reached).
	CreatedAt   int64
	ConfirmedAt int64
	PreparingAt int64
	ReadyAt     int64
	DeliveredAt int64
	CancelledAt int64
}

// OrderLine is a single line item on an order.
type OrderLine struct {
	// ID is the unique identifier for the line (UUID format).
	ID string

	// MenuItemID references the external menu catalog entry.
	MenuItemID string

	// Name is the menu item name snapshotted at order time.
	Name string

	// UnitPrice is the price snapshotted at order time; the catalog is
	// never re-read for this line afterwards.
	UnitPrice money.Cents

	// Quantity is how many units were ordered.
	Quantity int64

	// PayerID identifies the member who owns this line, or empty when the
	// line is shared (see SharedWith) or unassigned.
	PayerID string

	// SharedWith lists member IDs splitting this line equally. Empty for
	// individually-owned or unassigned lines.
	SharedWith []string

	// Note is an optional free-form request ("no onions").
	Note string

	// Metadata is an opaque, order-preserving key-value map of
	// customizations. The core stores and forwards it, never interprets it.
	Metadata Metadata
}

// Amount is the line's full cost: unit price times quantity.
func (l OrderLine) Amount() money.Cents {
	return l.UnitPrice * money.Cents(l.Quantity)
}
