package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/comanda-app/comanda/internal/apperr"
	"github.com/comanda-app/comanda/internal/auth"
	"github.com/comanda-app/comanda/internal/fanout"
	"github.com/comanda-app/comanda/internal/ledger"
	"github.com/comanda-app/comanda/internal/models"
	"github.com/comanda-app/comanda/internal/money"
	"github.com/comanda-app/comanda/internal/projection"
	"github.com/comanda-app/comanda/internal/splitter"
	"github.com/comanda-app/comanda/internal/storage"
)

// OrderService manages the order lifecycle, split finalization and payment
// settlement. All mutations of one order run under its keyed lock; the
// settlement path uses the same lock so the all-paid check and the
// delivered transition are atomic.
type OrderService struct {
	store       storage.Store
	broadcaster *fanout.Broadcaster
	tokens      *auth.JWTManager
	payLinkTTL  time.Duration
	locks       *keyedLocks
	now         func() time.Time
}

// NewOrderService creates a new OrderService.
func NewOrderService(store storage.Store, broadcaster *fanout.Broadcaster, tokens *auth.JWTManager, payLinkTTL time.Duration) *OrderService {
	return &OrderService{
		store:       store,
		broadcaster: broadcaster,
		tokens:      tokens,
		payLinkTTL:  payLinkTTL,
		locks:       newKeyedLocks(),
		now:         time.Now,
	}
}

// CreateOrder opens a pending order in a session, optionally with initial
// lines. Only approved members and staff place orders.
func (s *OrderService) CreateOrder(ctx context.Context, sessionID string, actor models.Actor, lines []models.OrderLine) (*models.Order, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionActive {
		return nil, apperr.New(apperr.CodeSessionClosed, "session is closed")
	}
	if err := authorizeMember(session, actor); err != nil {
		return nil, err
	}

	order := ledger.New(sessionID, s.now())
	for _, line := range lines {
		if err := ledger.AddLine(order, line); err != nil {
			return nil, err
		}
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.publishOrder(order, fanout.TypeOrderCreated, map[string]any{
		"status": string(order.Status),
		"total":  int64(order.Total),
	})
	slog.Info("order created", "order_id", order.ID, "session_id", sessionID, "by", actor.ID)
	return order, nil
}

// AddLines appends lines to a pending order and recomputes totals.
func (s *OrderService) AddLines(ctx context.Context, orderID string, actor models.Actor, lines []models.OrderLine) (*models.Order, error) {
	if len(lines) == 0 {
		return nil, apperr.New(apperr.CodeInvalidArgument, "no lines supplied")
	}
	unlock := s.locks.Lock(orderID)
	defer unlock()

	order, session, err := s.getOrderAndSession(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeMember(session, actor); err != nil {
		return nil, err
	}

	for _, line := range lines {
		if err := ledger.AddLine(order, line); err != nil {
			return nil, err
		}
	}
	if err := s.store.UpdateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	s.publishOrder(order, fanout.TypeOrderLineAdded, map[string]any{
		"line_count": len(order.Lines),
		"total":      int64(order.Total),
	})
	return order, nil
}

// SetCharges records tax and discount on a pending order. Staff only.
func (s *OrderService) SetCharges(ctx context.Context, orderID string, actor models.Actor, tax, discount money.Cents) (*models.Order, error) {
	if !actor.Role.Staff() {
		return nil, apperr.New(apperr.CodeForbidden, "only staff set charges")
	}
	unlock := s.locks.Lock(orderID)
	defer unlock()

	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := ledger.SetCharges(order, tax, discount); err != nil {
		return nil, err
	}
	if err := s.store.UpdateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}
	return order, nil
}

// Confirm locks the order's lines and hands it to the kitchen. The session
// owner or staff confirm.
func (s *OrderService) Confirm(ctx context.Context, orderID string, actor models.Actor) (*models.Order, error) {
	return s.transition(ctx, orderID, func(order *models.Order, session *models.TableSession) error {
		if err := authorizeOwnerOrStaff(session, actor); err != nil {
			return err
		}
		return ledger.Confirm(order, s.now())
	})
}

// StartPreparing moves the order into the kitchen with an optional
// readiness estimate. Staff only; also serves as the walk-in fast path from
// pending.
func (s *OrderService) StartPreparing(ctx context.Context, orderID string, actor models.Actor, estimate time.Duration) (*models.Order, error) {
	return s.transition(ctx, orderID, func(order *models.Order, _ *models.TableSession) error {
		if !actor.Role.Staff() {
			return apperr.New(apperr.CodeForbidden, "only staff start preparation")
		}
		return ledger.StartPreparing(order, estimate, s.now())
	})
}

// MarkReady marks a preparing order ready. If the order is split and every
// payer already settled, it advances straight to delivered.
func (s *OrderService) MarkReady(ctx context.Context, orderID string, actor models.Actor) (*models.Order, error) {
	return s.transition(ctx, orderID, func(order *models.Order, _ *models.TableSession) error {
		if !actor.Role.Staff() {
			return apperr.New(apperr.CodeForbidden, "only staff mark orders ready")
		}
		if err := ledger.MarkReady(order, s.now()); err != nil {
			return err
		}
		if order.Split {
			paid, err := s.allPaid(ctx, order.ID)
			if err != nil {
				return err
			}
			if paid {
				return ledger.Deliver(order, true, s.now())
			}
		}
		return nil
	})
}

// Deliver hands a ready order to the table. Split orders deliver through
// the settlement path instead.
func (s *OrderService) Deliver(ctx context.Context, orderID string, actor models.Actor) (*models.Order, error) {
	return s.transition(ctx, orderID, func(order *models.Order, _ *models.TableSession) error {
		if !actor.Role.Staff() {
			return apperr.New(apperr.CodeForbidden, "only staff deliver orders")
		}
		return ledger.Deliver(order, false, s.now())
	})
}

// Cancel moves the order to cancelled and voids any pending payments in
// its split batch. The session owner or staff cancel.
func (s *OrderService) Cancel(ctx context.Context, orderID string, actor models.Actor, reason string) (*models.Order, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	order, session, err := s.getOrderAndSession(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeOwnerOrStaff(session, actor); err != nil {
		return nil, err
	}
	from := order.Status
	if err := ledger.Cancel(order, reason, s.now()); err != nil {
		return nil, err
	}
	if err := s.store.UpdateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	if order.Split {
		if err := s.voidPendingPayments(ctx, order.ID); err != nil {
			return nil, err
		}
	}

	orderTransitions.WithLabelValues(string(from), string(order.Status)).Inc()
	s.publishOrder(order, fanout.TypeOrderStatusChanged, map[string]any{
		"status": string(order.Status),
		"reason": reason,
	})
	slog.Info("order cancelled", "order_id", orderID, "by", actor.ID, "reason", reason)
	return order, nil
}

// GetOrder returns one order.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return s.getOrder(ctx, orderID)
}

// ListSessionOrders returns a session's orders, oldest first.
func (s *OrderService) ListSessionOrders(ctx context.Context, sessionID string) ([]*models.Order, error) {
	orders, err := s.store.ListOrdersBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// FinalizeSplit computes the split, validates it against the order total
// and creates the sealed payment batch with pay links. The batch is
// all-or-nothing: a rejected split creates no payments.
func (s *OrderService) FinalizeSplit(ctx context.Context, orderID string, actor models.Actor, policy splitter.Policy) ([]*models.SplitPayment, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	order, session, err := s.getOrderAndSession(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeOwnerOrStaff(session, actor); err != nil {
		return nil, err
	}
	if order.Status == models.OrderCancelled {
		return nil, apperr.New(apperr.CodeOrderCancelled, "order was cancelled")
	}
	if order.Split {
		return nil, apperr.WithMetadata(apperr.CodeSplitSealed,
			"split already finalized for this order",
			map[string]string{"order_id": order.ID})
	}

	shares, err := splitter.Compute(splitter.SnapshotOf(order), policy)
	if err != nil {
		return nil, err
	}
	// The engine tolerates unassigned lines; finalization does not. Shares
	// that fail to cover the total mean some line has no payer.
	var sum money.Cents
	for _, share := range shares {
		sum += share.Amount
	}
	if money.Abs(sum-order.Total) > 1 {
		return nil, apperr.WithMetadata(apperr.CodeSplitMismatch,
			"computed shares do not cover the order total; assign every line to a payer",
			map[string]string{"covered": sum.String(), "total": order.Total.String()})
	}

	now := s.now()
	expiresAt := now.Add(s.payLinkTTL).Unix()
	payments := make([]*models.SplitPayment, len(shares))
	for i, share := range shares {
		paymentID := uuid.New().String()
		token, err := s.tokens.GeneratePayLink(paymentID, order.ID, s.payLinkTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to issue pay link: %w", err)
		}
		payments[i] = &models.SplitPayment{
			ID:        paymentID,
			OrderID:   order.ID,
			PayerID:   share.PayerID,
			AmountDue: share.Amount,
			Status:    models.PaymentPending,
			Token:     token,
			ExpiresAt: expiresAt,
			CreatedAt: now.Unix(),
		}
	}
	if err := s.store.CreatePayments(ctx, payments); err != nil {
		return nil, fmt.Errorf("failed to create payment batch: %w", err)
	}

	order.Split = true
	order.SplitPolicy = policy.Kind
	if err := s.store.UpdateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to seal split: %w", err)
	}

	splitsFinalized.WithLabelValues(string(policy.Kind)).Inc()
	s.publishOrder(order, fanout.TypeOrderSplit, map[string]any{
		"policy": string(policy.Kind),
		"payers": len(payments),
	})
	slog.Info("split finalized",
		"order_id", orderID, "policy", policy.Kind, "payers", len(payments))
	return payments, nil
}

// Settle records an external payment against a pay link. Each payment
// settles exactly once; when the last payer settles a ready order, the
// order is delivered in the same locked step.
func (s *OrderService) Settle(ctx context.Context, token, method, gatewayRef string) (*models.SplitPayment, *models.Order, error) {
	claims, err := s.tokens.ValidatePayLink(token)
	if err != nil {
		settlements.WithLabelValues("link_expired").Inc()
		return nil, nil, apperr.New(apperr.CodeLinkExpired, "pay link is invalid or expired")
	}

	unlock := s.locks.Lock(claims.OrderID)
	defer unlock()

	payment, err := s.getPayment(ctx, claims.PaymentID)
	if err != nil {
		return nil, nil, err
	}
	order, err := s.getOrder(ctx, claims.OrderID)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case payment.Status == models.PaymentPaid:
		settlements.WithLabelValues("already_paid").Inc()
		return nil, nil, apperr.WithMetadata(apperr.CodeAlreadyPaid,
			"this share was already paid",
			map[string]string{"payment_id": payment.ID, "paid_at": fmt.Sprint(payment.PaidAt)})
	case order.Status == models.OrderCancelled || payment.Status == models.PaymentCancelled:
		settlements.WithLabelValues("order_cancelled").Inc()
		return nil, nil, apperr.New(apperr.CodeOrderCancelled, "order was cancelled; nothing to pay")
	case s.now().Unix() > payment.ExpiresAt:
		// Expiry is checked lazily against the stored attribute, not a timer.
		settlements.WithLabelValues("link_expired").Inc()
		return nil, nil, apperr.New(apperr.CodeLinkExpired, "pay link has expired")
	}

	payment.Status = models.PaymentPaid
	payment.Method = method
	payment.GatewayRef = gatewayRef
	payment.PaidAt = s.now().Unix()
	if err := s.store.UpdatePayment(ctx, payment); err != nil {
		return nil, nil, fmt.Errorf("failed to save payment: %w", err)
	}

	settlements.WithLabelValues("paid").Inc()
	s.publishOrder(order, fanout.TypePaymentSettled, map[string]any{
		"payment_id": payment.ID,
		"payer_id":   payment.PayerID,
		"amount":     int64(payment.AmountDue),
	})
	slog.Info("payment settled",
		"payment_id", payment.ID, "order_id", order.ID, "payer", payment.PayerID)

	// Still under the order lock: the all-paid check and the delivered
	// transition cannot interleave with a concurrent settlement.
	paid, err := s.allPaid(ctx, order.ID)
	if err != nil {
		return nil, nil, err
	}
	if paid && order.Status == models.OrderReady {
		from := order.Status
		if err := ledger.Deliver(order, true, s.now()); err != nil {
			return nil, nil, err
		}
		if err := s.store.UpdateOrder(ctx, order); err != nil {
			return nil, nil, fmt.Errorf("failed to save order: %w", err)
		}
		orderTransitions.WithLabelValues(string(from), string(order.Status)).Inc()
		s.publishOrder(order, fanout.TypeOrderStatusChanged, map[string]any{
			"status": string(order.Status),
		})
		slog.Info("order delivered after final settlement", "order_id", order.ID)
	}
	return payment, order, nil
}

// ListPayments returns an order's split batch.
func (s *OrderService) ListPayments(ctx context.Context, orderID string) ([]*models.SplitPayment, error) {
	payments, err := s.store.ListPaymentsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

// KitchenQueue returns the live kitchen view.
func (s *OrderService) KitchenQueue(ctx context.Context) ([]projection.Ticket, error) {
	orders, err := s.store.ListOrdersByStatus(ctx, models.OrderConfirmed, models.OrderPreparing)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	tables, err := s.tableIndex(ctx)
	if err != nil {
		return nil, err
	}
	return projection.KitchenQueue(orders, tables, s.now()), nil
}

// WaiterBoard returns live orders grouped by status.
func (s *OrderService) WaiterBoard(ctx context.Context) (map[models.OrderStatus][]projection.Ticket, error) {
	orders, err := s.store.ListOrdersByStatus(ctx,
		models.OrderPending, models.OrderConfirmed, models.OrderPreparing, models.OrderReady)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	tables, err := s.tableIndex(ctx)
	if err != nil {
		return nil, err
	}
	return projection.WaiterBoard(orders, tables, s.now()), nil
}

// Dashboard returns the restaurant roll-up.
func (s *OrderService) Dashboard(ctx context.Context) (projection.Summary, error) {
	orders, err := s.store.ListOrdersByStatus(ctx)
	if err != nil {
		return projection.Summary{}, fmt.Errorf("failed to list orders: %w", err)
	}
	sessions, err := s.store.ListActiveSessions(ctx)
	if err != nil {
		return projection.Summary{}, fmt.Errorf("failed to list sessions: %w", err)
	}
	return projection.Summarize(orders, sessions), nil
}

// transition runs a locked load-mutate-save cycle and broadcasts the
// resulting status.
func (s *OrderService) transition(ctx context.Context, orderID string, mutate func(*models.Order, *models.TableSession) error) (*models.Order, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	order, session, err := s.getOrderAndSession(ctx, orderID)
	if err != nil {
		return nil, err
	}
	from := order.Status
	if err := mutate(order, session); err != nil {
		return nil, err
	}
	if err := s.store.UpdateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	if order.Status != from {
		orderTransitions.WithLabelValues(string(from), string(order.Status)).Inc()
		s.publishOrder(order, fanout.TypeOrderStatusChanged, map[string]any{
			"status": string(order.Status),
		})
		slog.Info("order transitioned",
			"order_id", orderID, "from", from, "to", order.Status)
	}
	return order, nil
}

func (s *OrderService) publishOrder(order *models.Order, eventType fanout.EventType, payload map[string]any) {
	s.broadcaster.Publish(
		[]fanout.Group{
			fanout.SessionGroup(order.SessionID),
			fanout.GroupKitchen,
			fanout.GroupWaiters,
			fanout.GroupDashboard,
		},
		fanout.Event{
			Type:      eventType,
			OrderID:   order.ID,
			SessionID: order.SessionID,
			Payload:   payload,
		})
}

func (s *OrderService) allPaid(ctx context.Context, orderID string) (bool, error) {
	payments, err := s.store.ListPaymentsByOrder(ctx, orderID)
	if err != nil {
		return false, fmt.Errorf("failed to list payments: %w", err)
	}
	if len(payments) == 0 {
		return false, nil
	}
	for _, p := range payments {
		if p.Status != models.PaymentPaid {
			return false, nil
		}
	}
	return true, nil
}

func (s *OrderService) voidPendingPayments(ctx context.Context, orderID string) error {
	payments, err := s.store.ListPaymentsByOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to list payments: %w", err)
	}
	for _, p := range payments {
		if p.Status != models.PaymentPending {
			continue
		}
		p.Status = models.PaymentCancelled
		if err := s.store.UpdatePayment(ctx, p); err != nil {
			return fmt.Errorf("failed to void payment: %w", err)
		}
	}
	return nil
}

func (s *OrderService) tableIndex(ctx context.Context) (map[string]string, error) {
	sessions, err := s.store.ListActiveSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	tables := make(map[string]string, len(sessions))
	for _, sess := range sessions {
		tables[sess.ID] = sess.TableID
	}
	return tables, nil
}

func (s *OrderService) getOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.New(apperr.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

func (s *OrderService) getPayment(ctx context.Context, paymentID string) (*models.SplitPayment, error) {
	payment, err := s.store.GetPayment(ctx, paymentID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.New(apperr.CodeNotFound, "payment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return payment, nil
}

func (s *OrderService) getSession(ctx context.Context, sessionID string) (*models.TableSession, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.New(apperr.CodeNotFound, "session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

func (s *OrderService) getOrderAndSession(ctx context.Context, orderID string) (*models.Order, *models.TableSession, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	session, err := s.getSession(ctx, order.SessionID)
	if err != nil {
		return nil, nil, err
	}
	return order, session, nil
}

// authorizeMember allows staff and approved members.
func authorizeMember(session *models.TableSession, actor models.Actor) error {
	if actor.Role.Staff() {
		return nil
	}
	for i := range session.Members {
		m := &session.Members[i]
		if m.ActorID == actor.ID {
			if m.Status == models.MemberApproved {
				return nil
			}
			return apperr.WithMetadata(apperr.CodeForbidden,
				"membership is not approved",
				map[string]string{"status": string(m.Status)})
		}
	}
	return apperr.New(apperr.CodeForbidden, "not a member of this session")
}

// authorizeOwnerOrStaff allows staff and the session owner.
func authorizeOwnerOrStaff(session *models.TableSession, actor models.Actor) error {
	if actor.Role.Staff() {
		return nil
	}
	for i := range session.Members {
		m := &session.Members[i]
		if m.Role == models.RoleOwner && m.Status == models.MemberApproved && m.ActorID == actor.ID {
			return nil
		}
	}
	return apperr.New(apperr.CodeForbidden, "only the session owner or staff may do this")
}
