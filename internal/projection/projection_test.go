package projection

import (
	"testing"
	"time"

	"github.com/comanda-app/comanda/internal/models"
)

var now = time.Unix(1_700_000_000, 0)

func order(id string, status models.OrderStatus, statusAge time.Duration) *models.Order {
	o := &models.Order{
		ID:        id,
		SessionID: "sess-" + id,
		Status:    status,
		CreatedAt: now.Add(-time.Hour).Unix(),
		Lines: []models.OrderLine{
			{Name: "Feijoada", Quantity: 2, Note: "extra farofa"},
		},
	}
	ts := now.Add(-statusAge).Unix()
	switch status {
	case models.OrderConfirmed:
		o.ConfirmedAt = ts
	case models.OrderPreparing:
		o.PreparingAt = ts
	case models.OrderReady:
		o.ReadyAt = ts
	}
	return o
}

func TestKitchenQueueOrdering(t *testing.T) {
	orders := []*models.Order{
		order("young-confirmed", models.OrderConfirmed, 2*time.Minute),
		order("old-confirmed", models.OrderConfirmed, 20*time.Minute),
		order("preparing", models.OrderPreparing, 5*time.Minute),
		order("ready", models.OrderReady, time.Minute),
		order("delivered", models.OrderDelivered, 0),
	}

	queue := KitchenQueue(orders, nil, now)

	want := []string{"preparing", "old-confirmed", "young-confirmed"}
	if len(queue) != len(want) {
		t.Fatalf("queue length = %d, want %d", len(queue), len(want))
	}
	for i, id := range want {
		if queue[i].OrderID != id {
			t.Errorf("queue[%d] = %s, want %s", i, queue[i].OrderID, id)
		}
	}
	if queue[0].Lines[0].Note != "extra farofa" {
		t.Errorf("kitchen ticket lost the line note")
	}
}

func TestOverdueFlag(t *testing.T) {
	o := order("slow", models.OrderPreparing, 30*time.Minute)
	o.EstimatedReadySeconds = int64((15 * time.Minute).Seconds())

	queue := KitchenQueue([]*models.Order{o}, nil, now)
	if len(queue) != 1 || !queue[0].Overdue {
		t.Errorf("expected overdue ticket, got %+v", queue)
	}
}

func TestWaiterBoardGroupsByStatus(t *testing.T) {
	orders := []*models.Order{
		order("a", models.OrderPending, 0),
		order("b", models.OrderReady, 3*time.Minute),
		order("c", models.OrderReady, 10*time.Minute),
		order("d", models.OrderCancelled, 0),
	}
	tables := map[string]string{"sess-b": "7"}

	board := WaiterBoard(orders, tables, now)

	if len(board[models.OrderReady]) != 2 {
		t.Fatalf("ready tickets = %d, want 2", len(board[models.OrderReady]))
	}
	if board[models.OrderReady][0].OrderID != "c" {
		t.Errorf("longest-waiting ready order should come first, got %s", board[models.OrderReady][0].OrderID)
	}
	if board[models.OrderReady][1].TableID != "7" {
		t.Errorf("table id not resolved: %+v", board[models.OrderReady][1])
	}
	if _, ok := board[models.OrderCancelled]; ok {
		t.Error("terminal orders must not appear on the board")
	}
}

func TestSummarize(t *testing.T) {
	orders := []*models.Order{
		{Status: models.OrderPending, Total: 1000},
		{Status: models.OrderPreparing, Total: 2000},
		{Status: models.OrderCancelled, Total: 5000},
	}
	sessions := []*models.TableSession{
		{Status: models.SessionActive},
		{Status: models.SessionClosed},
	}

	s := Summarize(orders, sessions)
	if s.OpenSessions != 1 {
		t.Errorf("open sessions = %d, want 1", s.OpenSessions)
	}
	if s.OrdersByStatus[models.OrderPreparing] != 1 {
		t.Errorf("preparing count = %d, want 1", s.OrdersByStatus[models.OrderPreparing])
	}
	if s.LiveRevenue != 3000 {
		t.Errorf("live revenue = %d, want 3000 (cancelled excluded)", s.LiveRevenue)
	}
}
