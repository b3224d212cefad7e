package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/comanda-app/comanda/internal/models"
	"github.com/comanda-app/comanda/internal/storage"
)

// CreateOrder persists a new order with its lines.
func (s *SQLiteStore) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if order.CreatedAt == 0 {
		order.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO orders (id, session_id, subtotal, tax, discount, total, status,
			split, split_policy, cancel_reason, estimated_ready_seconds,
			created_at, confirmed_at, preparing_at, ready_at, delivered_at, cancelled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.SessionID, order.Subtotal, order.Tax, order.Discount, order.Total,
		order.Status, boolToInt(order.Split), order.SplitPolicy, order.CancelReason,
		order.EstimatedReadySeconds, order.CreatedAt, order.ConfirmedAt, order.PreparingAt,
		order.ReadyAt, order.DeliveredAt, order.CancelledAt,
	); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	if err := insertLines(ctx, tx, order); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetOrder retrieves an order by ID, including all lines.
func (s *SQLiteStore) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order := &models.Order{}
	var split int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, subtotal, tax, discount, total, status,
			split, split_policy, cancel_reason, estimated_ready_seconds,
			created_at, confirmed_at, preparing_at, ready_at, delivered_at, cancelled_at
		 FROM orders WHERE id = ?`, orderID,
	).Scan(&order.ID, &order.SessionID, &order.Subtotal, &order.Tax, &order.Discount,
		&order.Total, &order.Status, &split, &order.SplitPolicy, &order.CancelReason,
		&order.EstimatedReadySeconds, &order.CreatedAt, &order.ConfirmedAt,
		&order.PreparingAt, &order.ReadyAt, &order.DeliveredAt, &order.CancelledAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	order.Split = split != 0

	if err := s.loadLines(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateOrder replaces the order row and its lines.
func (s *SQLiteStore) UpdateOrder(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET session_id = ?, subtotal = ?, tax = ?, discount = ?, total = ?,
			status = ?, split = ?, split_policy = ?, cancel_reason = ?,
			estimated_ready_seconds = ?, confirmed_at = ?, preparing_at = ?,
			ready_at = ?, delivered_at = ?, cancelled_at = ?
		 WHERE id = ?`,
		order.SessionID, order.Subtotal, order.Tax, order.Discount, order.Total,
		order.Status, boolToInt(order.Split), order.SplitPolicy, order.CancelReason,
		order.EstimatedReadySeconds, order.ConfirmedAt, order.PreparingAt,
		order.ReadyAt, order.DeliveredAt, order.CancelledAt, order.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM order_lines WHERE order_id = ?", order.ID); err != nil {
		return fmt.Errorf("failed to clear order lines: %w", err)
	}
	if err := insertLines(ctx, tx, order); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListOrdersBySession returns all orders for a session, oldest first.
func (s *SQLiteStore) ListOrdersBySession(ctx context.Context, sessionID string) ([]*models.Order, error) {
	return s.listOrders(ctx, "WHERE session_id = ?", sessionID)
}

// ListOrdersByStatus returns orders in any of the given statuses, oldest first.
func (s *SQLiteStore) ListOrdersByStatus(ctx context.Context, statuses ...models.OrderStatus) ([]*models.Order, error) {
	if len(statuses) == 0 {
		return s.listOrders(ctx, "")
	}
	placeholders := strings.Repeat("?,", len(statuses))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = st
	}
	return s.listOrders(ctx, "WHERE status IN ("+placeholders+")", args...)
}

func (s *SQLiteStore) listOrders(ctx context.Context, where string, args ...any) ([]*models.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, subtotal, tax, discount, total, status,
			split, split_policy, cancel_reason, estimated_ready_seconds,
			created_at, confirmed_at, preparing_at, ready_at, delivered_at, cancelled_at
		 FROM orders `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order := &models.Order{}
		var split int
		if err := rows.Scan(&order.ID, &order.SessionID, &order.Subtotal, &order.Tax,
			&order.Discount, &order.Total, &order.Status, &split, &order.SplitPolicy,
			&order.CancelReason, &order.EstimatedReadySeconds, &order.CreatedAt,
			&order.ConfirmedAt, &order.PreparingAt, &order.ReadyAt, &order.DeliveredAt,
			&order.CancelledAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		order.Split = split != 0
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	for _, order := range orders {
		if err := s.loadLines(ctx, order); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (s *SQLiteStore) loadLines(ctx context.Context, order *models.Order) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, menu_item_id, name, unit_price, quantity, payer_id, shared_with, note, metadata
		 FROM order_lines WHERE order_id = ? ORDER BY position`, order.ID)
	if err != nil {
		return fmt.Errorf("failed to get order lines: %w", err)
	}
	defer rows.Close()

	order.Lines = nil
	for rows.Next() {
		var line models.OrderLine
		var sharedWith, metadata string
		if err := rows.Scan(&line.ID, &line.MenuItemID, &line.Name, &line.UnitPrice,
			&line.Quantity, &line.PayerID, &sharedWith, &line.Note, &metadata); err != nil {
			return fmt.Errorf("failed to scan order line: %w", err)
		}
		if err := json.Unmarshal([]byte(sharedWith), &line.SharedWith); err != nil {
			return fmt.Errorf("failed to decode shared payers: %w", err)
		}
		if err := json.Unmarshal([]byte(metadata), &line.Metadata); err != nil {
			return fmt.Errorf("failed to decode line metadata: %w", err)
		}
		order.Lines = append(order.Lines, line)
	}
	return rows.Err()
}

func insertLines(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	for i := range order.Lines {
		line := &order.Lines[i]
		if line.ID == "" {
			line.ID = uuid.New().String()
		}
		sharedWith, err := json.Marshal(line.SharedWith)
		if err != nil {
			return fmt.Errorf("failed to encode shared payers: %w", err)
		}
		if line.SharedWith == nil {
			sharedWith = []byte("[]")
		}
		metadata, err := json.Marshal(line.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode line metadata: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO order_lines (id, order_id, menu_item_id, name, unit_price,
				quantity, payer_id, shared_with, note, metadata, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			line.ID, order.ID, line.MenuItemID, line.Name, line.UnitPrice,
			line.Quantity, line.PayerID, string(sharedWith), line.Note, string(metadata), i,
		); err != nil {
			return fmt.Errorf("failed to insert order line: %w", err)
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
