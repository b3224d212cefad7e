package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/comanda-app/comanda/internal/models"
	"github.com/comanda-app/comanda/internal/storage"
)

// CreatePayments persists an order's payment batch in one transaction so
// a sealed split is never partially visible.
func (s *SQLiteStore) CreatePayments(ctx context.Context, payments []*models.SplitPayment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for _, p := range payments {
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if p.CreatedAt == 0 {
			p.CreatedAt = now
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO split_payments (id, order_id, payer_id, amount_due, status,
				token, expires_at, method, gateway_ref, created_at, paid_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.OrderID, p.PayerID, p.AmountDue, p.Status,
			p.Token, p.ExpiresAt, p.Method, p.GatewayRef, p.CreatedAt, p.PaidAt,
		); err != nil {
			return fmt.Errorf("failed to insert payment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetPayment retrieves one payment by ID.
func (s *SQLiteStore) GetPayment(ctx context.Context, paymentID string) (*models.SplitPayment, error) {
	p := &models.SplitPayment{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, order_id, payer_id, amount_due, status, token, expires_at,
			method, gateway_ref, created_at, paid_at
		 FROM split_payments WHERE id = ?`, paymentID,
	).Scan(&p.ID, &p.OrderID, &p.PayerID, &p.AmountDue, &p.Status, &p.Token,
		&p.ExpiresAt, &p.Method, &p.GatewayRef, &p.CreatedAt, &p.PaidAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// ListPaymentsByOrder returns the full batch for an order, in creation order.
func (s *SQLiteStore) ListPaymentsByOrder(ctx context.Context, orderID string) ([]*models.SplitPayment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_id, payer_id, amount_due, status, token, expires_at,
			method, gateway_ref, created_at, paid_at
		 FROM split_payments WHERE order_id = ? ORDER BY created_at, payer_id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.SplitPayment
	for rows.Next() {
		p := &models.SplitPayment{}
		if err := rows.Scan(&p.ID, &p.OrderID, &p.PayerID, &p.AmountDue, &p.Status,
			&p.Token, &p.ExpiresAt, &p.Method, &p.GatewayRef, &p.CreatedAt, &p.PaidAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}
	return payments, nil
}

// UpdatePayment replaces one payment's row.
func (s *SQLiteStore) UpdatePayment(ctx context.Context, payment *models.SplitPayment) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE split_payments SET status = ?, method = ?, gateway_ref = ?, paid_at = ?
		 WHERE id = ?`,
		payment.Status, payment.Method, payment.GatewayRef, payment.PaidAt, payment.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
