// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/comanda-app/comanda/internal/models"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrActiveSessionExists is returned when creating a session for a table
// that already has an active one.
var ErrActiveSessionExists = errors.New("table already has an active session")

// ErrEmailExists is returned when creating a staff account with an email
// that is already registered.
var ErrEmailExists = errors.New("email already registered")

// OrderStore persists orders and their lines.
type OrderStore interface {
	// CreateOrder persists a new order with its lines.
	CreateOrder(ctx context.Context, order *models.Order) error

	// GetOrder retrieves an order by ID, including its lines.
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)

	// UpdateOrder replaces an order's row and lines.
	UpdateOrder(ctx context.Context, order *models.Order) error

	// ListOrdersBySession returns all orders of one session, oldest first.
	ListOrdersBySession(ctx context.Context, sessionID string) ([]*models.Order, error)

	// ListOrdersByStatus returns orders in any of the given statuses,
	// oldest first.
	ListOrdersByStatus(ctx context.Context, statuses ...models.OrderStatus) ([]*models.Order, error)
}

// SessionStore persists table sessions and their members.
type SessionStore interface {
	// CreateSession persists a new session with its members. Fails with
	// ErrActiveSessionExists when the table already has an active session.
	CreateSession(ctx context.Context, session *models.TableSession) error

	// GetSession retrieves a session by ID, including members.
	GetSession(ctx context.Context, sessionID string) (*models.TableSession, error)

	// GetActiveSessionByTable retrieves the table's active session, or
	// ErrNotFound when the table is free.
	GetActiveSessionByTable(ctx context.Context, tableID string) (*models.TableSession, error)

	// UpdateSession replaces a session's row and members.
	UpdateSession(ctx context.Context, session *models.TableSession) error

	// ListActiveSessions returns every active session.
	ListActiveSessions(ctx context.Context) ([]*models.TableSession, error)
}

// PaymentStore persists split payments.
type PaymentStore interface {
	// CreatePayments persists an order's payment batch atomically.
	CreatePayments(ctx context.Context, payments []*models.SplitPayment) error

	// GetPayment retrieves one payment by ID.
	GetPayment(ctx context.Context, paymentID string) (*models.SplitPayment, error)

	// ListPaymentsByOrder returns the full batch for an order.
	ListPaymentsByOrder(ctx context.Context, orderID string) ([]*models.SplitPayment, error)

	// UpdatePayment replaces one payment's row.
	UpdatePayment(ctx context.Context, payment *models.SplitPayment) error
}

// StaffStore persists staff accounts.
type StaffStore interface {
	CreateStaff(ctx context.Context, staff *models.Staff) error
	GetStaffByEmail(ctx context.Context, email string) (*models.Staff, error)
	GetStaffByID(ctx context.Context, id string) (*models.Staff, error)
}

// Store is the full persistence surface of the core. The abstraction
// allows swapping storage backends without changing the service layer.
type Store interface {
	OrderStore
	SessionStore
	PaymentStore
	StaffStore

	// Close releases any resources held by the store.
	Close() error
}
