package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/comanda-app/comanda/internal/apperr"
	"github.com/comanda-app/comanda/internal/auth"
	"github.com/comanda-app/comanda/internal/fanout"
	"github.com/comanda-app/comanda/internal/models"
	"github.com/comanda-app/comanda/internal/money"
	"github.com/comanda-app/comanda/internal/splitter"
	"github.com/comanda-app/comanda/internal/storage/sqlite"
)

func newOrderServices(t *testing.T) (*OrderService, *SessionService) {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	broadcaster := fanout.NewBroadcaster()
	tokens := auth.NewJWTManager("test-secret-key-32-bytes-long!!!", time.Hour)
	return NewOrderService(store, broadcaster, tokens, 2*time.Hour),
		NewSessionService(store, broadcaster)
}

// startTable starts a session with ana as owner and bea approved.
func startTable(t *testing.T, sessions *SessionService) *models.TableSession {
	t.Helper()
	ctx := context.Background()
	session, _, err := sessions.StartOrJoin(ctx, "table-1", ana)
	if err != nil {
		t.Fatalf("StartOrJoin: %v", err)
	}
	_, member, err := sessions.StartOrJoin(ctx, "table-1", bea)
	if err != nil {
		t.Fatalf("StartOrJoin: %v", err)
	}
	if _, err := sessions.DecideMembership(ctx, session.ID, member.ID, true, ana); err != nil {
		t.Fatalf("DecideMembership: %v", err)
	}
	return session
}

func testLines() []models.OrderLine {
	return []models.OrderLine{
		{MenuItemID: "m1", Name: "Moqueca", UnitPrice: 9150, Quantity: 1, PayerID: "ana"},
		{MenuItemID: "m2", Name: "Feijoada", UnitPrice: 5230, Quantity: 1, PayerID: "bea"},
	}
}

func TestOrderLifecycle(t *testing.T) {
	orders, sessions := newOrderServices(t)
	ctx := context.Background()
	session := startTable(t, sessions)

	order, err := orders.CreateOrder(ctx, session.ID, ana, testLines())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.Status != models.OrderPending || order.Total != 14380 {
		t.Fatalf("unexpected new order: status=%s total=%d", order.Status, order.Total)
	}

	// Staff records the service charge while the order is still open.
	order, err = orders.SetCharges(ctx, order.ID, carla, 1438, 0)
	if err != nil {
		t.Fatalf("SetCharges: %v", err)
	}
	if order.Total != 15818 {
		t.Errorf("total after tax = %d, want 15818", order.Total)
	}

	order, err = orders.Confirm(ctx, order.ID, ana)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if order.Status != models.OrderConfirmed || order.ConfirmedAt == 0 {
		t.Errorf("unexpected order after confirm: %+v", order)
	}

	// Lines are locked once confirmed; the client must re-fetch.
	_, err = orders.AddLines(ctx, order.ID, bea, []models.OrderLine{
		{MenuItemID: "m3", Name: "Guarana", UnitPrice: 800, Quantity: 1},
	})
	if apperr.CodeOf(err) != apperr.CodeStaleOrderState {
		t.Fatalf("expected STALE_ORDER_STATE, got %v", err)
	}

	order, err = orders.StartPreparing(ctx, order.ID, carla, 20*time.Minute)
	if err != nil {
		t.Fatalf("StartPreparing: %v", err)
	}
	if order.EstimatedReadySeconds != 1200 {
		t.Errorf("estimate = %d, want 1200", order.EstimatedReadySeconds)
	}

	order, err = orders.MarkReady(ctx, order.ID, carla)
	if err != nil {
		t.Fatalf("MarkReady: %v", err)
	}
	order, err = orders.Deliver(ctx, order.ID, carla)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if order.Status != models.OrderDelivered || order.DeliveredAt == 0 {
		t.Errorf("unexpected order after deliver: %+v", order)
	}
}

func TestOrderAuthorization(t *testing.T) {
	orders, sessions := newOrderServices(t)
	ctx := context.Background()
	session := startTable(t, sessions)

	// A pending member cannot place orders.
	if _, _, err := sessions.StartOrJoin(ctx, "table-1", caio); err != nil {
		t.Fatalf("StartOrJoin: %v", err)
	}
	if _, err := orders.CreateOrder(ctx, session.ID, caio, testLines()); apperr.CodeOf(err) != apperr.CodeForbidden {
		t.Fatalf("expected FORBIDDEN for pending member, got %v", err)
	}

	order, err := orders.CreateOrder(ctx, session.ID, bea, testLines())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	// A participant cannot confirm; the owner and staff can.
	if _, err := orders.Confirm(ctx, order.ID, bea); apperr.CodeOf(err) != apperr.CodeForbidden {
		t.Fatalf("expected FORBIDDEN for participant confirm, got %v", err)
	}
	if _, err := orders.Confirm(ctx, order.ID, ana); err != nil {
		t.Fatalf("owner confirm: %v", err)
	}

	// Only staff run the kitchen transitions.
	if _, err := orders.StartPreparing(ctx, order.ID, ana, 0); apperr.CodeOf(err) != apperr.CodeForbidden {
		t.Fatalf("expected FORBIDDEN for customer preparing, got %v", err)
	}
}

func TestWalkInFastPath(t *testing.T) {
	orders, sessions := newOrderServices(t)
	ctx := context.Background()
	session := startTable(t, sessions)

	order, err := orders.CreateOrder(ctx, session.ID, carla, testLines())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	order, err = orders.StartPreparing(ctx, order.ID, carla, 0)
	if err != nil {
		t.Fatalf("StartPreparing from pending: %v", err)
	}
	if order.Status != models.OrderPreparing || order.ConfirmedAt == 0 {
		t.Errorf("fast path should confirm and start: %+v", order)
	}
}

func TestCancelVoidsPayments(t *testing.T) {
	orders, sessions := newOrderServices(t)
	ctx := context.Background()
	session := startTable(t, sessions)

	order, err := orders.CreateOrder(ctx, session.ID, ana, testLines())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	payments, err := orders.FinalizeSplit(ctx, order.ID, ana, splitter.Equal([]string{"ana", "bea"}))
	if err != nil {
		t.Fatalf("FinalizeSplit: %v", err)
	}

	order, err = orders.Cancel(ctx, order.ID, ana, "changed our minds")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if order.Status != models.OrderCancelled || order.CancelReason != "changed our minds" {
		t.Errorf("unexpected order after cancel: %+v", order)
	}

	// The unpaid batch is voided and settlement reports the cancellation.
	after, err := orders.ListPayments(ctx, order.ID)
	if err != nil {
		t.Fatalf("ListPayments: %v", err)
	}
	for _, p := range after {
		if p.Status != models.PaymentCancelled {
			t.Errorf("payment %s not voided: %s", p.ID, p.Status)
		}
	}
	_, _, err = orders.Settle(ctx, payments[0].Token, "pix", "gw-1")
	if apperr.CodeOf(err) != apperr.CodeOrderCancelled {
		t.Fatalf("expected ORDER_CANCELLED, got %v", err)
	}
}

func TestFinalizeSplit(t *testing.T) {
	orders, sessions := newOrderServices(t)
	ctx := context.Background()
	session := startTable(t, sessions)

	t.Run("sealed after first finalize", func(t *testing.T) {
		order, err := orders.CreateOrder(ctx, session.ID, ana, testLines())
		if err != nil {
			t.Fatalf("CreateOrder: %v", err)
		}
		payments, err := orders.FinalizeSplit(ctx, order.ID, ana, splitter.Equal([]string{"ana", "bea"}))
		if err != nil {
			t.Fatalf("FinalizeSplit: %v", err)
		}
		if len(payments) != 2 {
			t.Fatalf("expected 2 payments, got %d", len(payments))
		}
		if payments[0].AmountDue+payments[1].AmountDue != order.Total {
			t.Errorf("shares do not sum to total")
		}
		_, err = orders.FinalizeSplit(ctx, order.ID, ana, splitter.Equal([]string{"ana"}))
		if apperr.CodeOf(err) != apperr.CodeSplitSealed {
			t.Fatalf("expected SPLIT_SEALED, got %v", err)
		}
	})

	t.Run("sealed batch keeps covering the total", func(t *testing.T) {
		order, err := orders.CreateOrder(ctx, session.ID, ana, testLines())
		if err != nil {
			t.Fatalf("CreateOrder: %v", err)
		}
		payments, err := orders.FinalizeSplit(ctx, order.ID, ana, splitter.Equal([]string{"ana", "bea"}))
		if err != nil {
			t.Fatalf("FinalizeSplit: %v", err)
		}

		// The order is still pending, but the sealed batch fixed its
		// amounts: further line or charge changes are stale.
		_, err = orders.AddLines(ctx, order.ID, ana, []models.OrderLine{
			{MenuItemID: "m3", Name: "Guarana", UnitPrice: 800, Quantity: 1, PayerID: "ana"},
		})
		if apperr.CodeOf(err) != apperr.CodeStaleOrderState {
			t.Fatalf("expected STALE_ORDER_STATE after seal, got %v", err)
		}
		if _, err := orders.SetCharges(ctx, order.ID, carla, 500, 0); apperr.CodeOf(err) != apperr.CodeStaleOrderState {
			t.Fatalf("expected STALE_ORDER_STATE for charges after seal, got %v", err)
		}

		after, err := orders.GetOrder(ctx, order.ID)
		if err != nil {
			t.Fatalf("GetOrder: %v", err)
		}
		var sum money.Cents
		for _, p := range payments {
			sum += p.AmountDue
		}
		if after.Total != order.Total || sum != after.Total {
			t.Errorf("batch sum %d must still cover total %d (was %d)", sum, after.Total, order.Total)
		}
	})

	t.Run("unassigned line fails closed", func(t *testing.T) {
		order, err := orders.CreateOrder(ctx, session.ID, ana, []models.OrderLine{
			{MenuItemID: "m1", Name: "Moqueca", UnitPrice: 9150, Quantity: 1, PayerID: "ana"},
			{MenuItemID: "m4", Name: "Pudim", UnitPrice: 1800, Quantity: 1}, // nobody assigned
		})
		if err != nil {
			t.Fatalf("CreateOrder: %v", err)
		}
		_, err = orders.FinalizeSplit(ctx, order.ID, ana, splitter.ByItem([]string{"ana", "bea"}))
		if apperr.CodeOf(err) != apperr.CodeSplitMismatch {
			t.Fatalf("expected SPLIT_MISMATCH, got %v", err)
		}
		// No payments were created by the rejected split.
		payments, err := orders.ListPayments(ctx, order.ID)
		if err != nil {
			t.Fatalf("ListPayments: %v", err)
		}
		if len(payments) != 0 {
			t.Errorf("rejected split must create no payments, got %d", len(payments))
		}
	})

	t.Run("custom amounts validated", func(t *testing.T) {
		order, err := orders.CreateOrder(ctx, session.ID, ana, testLines())
		if err != nil {
			t.Fatalf("CreateOrder: %v", err)
		}
		_, err = orders.FinalizeSplit(ctx, order.ID, ana, splitter.Custom(map[string]money.Cents{
			"ana": 1000, "bea": 1000,
		}))
		if apperr.CodeOf(err) != apperr.CodeSplitMismatch {
			t.Fatalf("expected SPLIT_MISMATCH, got %v", err)
		}
	})

	t.Run("percentage not implemented", func(t *testing.T) {
		order, err := orders.CreateOrder(ctx, session.ID, ana, testLines())
		if err != nil {
			t.Fatalf("CreateOrder: %v", err)
		}
		_, err = orders.FinalizeSplit(ctx, order.ID, ana,
			splitter.Policy{Kind: models.SplitPercentage, PayerIDs: []string{"ana"}})
		if apperr.CodeOf(err) != apperr.CodeNotImplemented {
			t.Fatalf("expected NOT_IMPLEMENTED, got %v", err)
		}
	})
}

// readySplitOrder drives an order to ready with a finalized equal split.
func readySplitOrder(t *testing.T, orders *OrderService, sessionID string) (*models.Order, []*models.SplitPayment) {
	t.Helper()
	ctx := context.Background()
	order, err := orders.CreateOrder(ctx, sessionID, ana, testLines())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, err := orders.Confirm(ctx, order.ID, ana); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if _, err := orders.StartPreparing(ctx, order.ID, carla, 0); err != nil {
		t.Fatalf("StartPreparing: %v", err)
	}
	if _, err := orders.MarkReady(ctx, order.ID, carla); err != nil {
		t.Fatalf("MarkReady: %v", err)
	}
	payments, err := orders.FinalizeSplit(ctx, order.ID, ana, splitter.Equal([]string{"ana", "bea"}))
	if err != nil {
		t.Fatalf("FinalizeSplit: %v", err)
	}
	order, err = orders.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	return order, payments
}

func TestSettleDeliversWhenAllPaid(t *testing.T) {
	orders, sessions := newOrderServices(t)
	ctx := context.Background()
	session := startTable(t, sessions)
	order, payments := readySplitOrder(t, orders, session.ID)

	// Staff cannot hand over a split order; settlement does.
	if _, err := orders.Deliver(ctx, order.ID, carla); apperr.CodeOf(err) != apperr.CodeInvalidTransition {
		t.Fatalf("expected INVALID_TRANSITION for manual deliver, got %v", err)
	}

	_, after, err := orders.Settle(ctx, payments[0].Token, "pix", "gw-1")
	if err != nil {
		t.Fatalf("Settle (first): %v", err)
	}
	if after.Status != models.OrderReady {
		t.Errorf("order should stay ready until all paid, got %s", after.Status)
	}

	// Settling the same link again is rejected, not double-counted.
	if _, _, err := orders.Settle(ctx, payments[0].Token, "pix", "gw-1b"); apperr.CodeOf(err) != apperr.CodeAlreadyPaid {
		t.Fatalf("expected ALREADY_PAID, got %v", err)
	}

	_, after, err = orders.Settle(ctx, payments[1].Token, "card", "gw-2")
	if err != nil {
		t.Fatalf("Settle (last): %v", err)
	}
	if after.Status != models.OrderDelivered {
		t.Errorf("order should deliver on final settlement, got %s", after.Status)
	}
}

func TestSettleConcurrentFinalPayers(t *testing.T) {
	orders, sessions := newOrderServices(t)
	ctx := context.Background()
	session := startTable(t, sessions)
	order, payments := readySplitOrder(t, orders, session.ID)

	var wg sync.WaitGroup
	errs := make([]error, len(payments))
	for i, p := range payments {
		wg.Add(1)
		go func(i int, token string) {
			defer wg.Done()
			_, _, errs[i] = orders.Settle(ctx, token, "pix", "gw")
		}(i, p.Token)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Settle %d: %v", i, err)
		}
	}
	final, err := orders.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if final.Status != models.OrderDelivered || final.DeliveredAt == 0 {
		t.Errorf("expected delivered exactly once, got %+v", final)
	}
}

func TestSettleBeforeReady(t *testing.T) {
	orders, sessions := newOrderServices(t)
	ctx := context.Background()
	session := startTable(t, sessions)

	order, err := orders.CreateOrder(ctx, session.ID, ana, testLines())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, err := orders.Confirm(ctx, order.ID, ana); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if _, err := orders.StartPreparing(ctx, order.ID, carla, 0); err != nil {
		t.Fatalf("StartPreparing: %v", err)
	}
	payments, err := orders.FinalizeSplit(ctx, order.ID, ana, splitter.Equal([]string{"ana", "bea"}))
	if err != nil {
		t.Fatalf("FinalizeSplit: %v", err)
	}

	// Everyone pays while the kitchen is still working.
	for _, p := range payments {
		if _, _, err := orders.Settle(ctx, p.Token, "pix", "gw"); err != nil {
			t.Fatalf("Settle: %v", err)
		}
	}
	mid, err := orders.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if mid.Status != models.OrderPreparing {
		t.Fatalf("order should still be preparing, got %s", mid.Status)
	}

	// Marking ready notices the fully-paid batch and delivers.
	final, err := orders.MarkReady(ctx, order.ID, carla)
	if err != nil {
		t.Fatalf("MarkReady: %v", err)
	}
	if final.Status != models.OrderDelivered {
		t.Errorf("expected delivered after ready with all paid, got %s", final.Status)
	}
}

func TestSettleExpiredLink(t *testing.T) {
	orders, sessions := newOrderServices(t)
	ctx := context.Background()
	session := startTable(t, sessions)
	_, payments := readySplitOrder(t, orders, session.ID)

	// Jump past the stored expiry; the check is lazy, no timers involved.
	orders.now = func() time.Time { return time.Now().Add(3 * time.Hour) }

	_, _, err := orders.Settle(ctx, payments[0].Token, "pix", "gw")
	if apperr.CodeOf(err) != apperr.CodeLinkExpired {
		t.Fatalf("expected LINK_EXPIRED, got %v", err)
	}
}

func TestProjections(t *testing.T) {
	orders, sessions := newOrderServices(t)
	ctx := context.Background()
	session := startTable(t, sessions)

	order, err := orders.CreateOrder(ctx, session.ID, ana, testLines())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, err := orders.Confirm(ctx, order.ID, ana); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	queue, err := orders.KitchenQueue(ctx)
	if err != nil {
		t.Fatalf("KitchenQueue: %v", err)
	}
	if len(queue) != 1 || queue[0].OrderID != order.ID || queue[0].TableID != "table-1" {
		t.Errorf("unexpected kitchen queue: %+v", queue)
	}

	board, err := orders.WaiterBoard(ctx)
	if err != nil {
		t.Fatalf("WaiterBoard: %v", err)
	}
	if len(board[models.OrderConfirmed]) != 1 {
		t.Errorf("unexpected waiter board: %+v", board)
	}

	summary, err := orders.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if summary.OpenSessions != 1 || summary.OrdersByStatus[models.OrderConfirmed] != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if summary.LiveRevenue != order.Total {
		t.Errorf("live revenue = %d, want %d", summary.LiveRevenue, order.Total)
	}
}
