// Package projection derives read-only staff views from order state. The
// views hold no state of their own; they are recomputed from the ledger on
// every request.
package projection

import (
	"sort"
	"time"

	"github.com/comanda-app/comanda/internal/models"
	"github.com/comanda-app/comanda/internal/money"
)

// Ticket is one order as seen on a staff board.
type Ticket struct {
	OrderID   string
	SessionID string
	TableID   string
	Status    models.OrderStatus

	// Waiting is how long the order has been in its current state.
	Waiting time.Duration

	// Overdue is set when a preparing order has passed its estimate.
	Overdue bool

	ItemCount int64
	Total     money.Cents
	Lines     []TicketLine
}

// TicketLine is the kitchen-relevant slice of an order line.
type TicketLine struct {
	Name     string
	Quantity int64
	Note     string
}

// KitchenQueue returns confirmed and preparing orders, longest-waiting
// first, so the kitchen works the queue top down.
func KitchenQueue(orders []*models.Order, tables map[string]string, now time.Time) []Ticket {
	var queue []Ticket
	for _, o := range orders {
		if o.Status != models.OrderConfirmed && o.Status != models.OrderPreparing {
			continue
		}
		queue = append(queue, ticketOf(o, tables, now))
	}
	sort.SliceStable(queue, func(a, b int) bool {
		// Preparing orders outrank confirmed ones; within a status the
		// longest wait comes first.
		if queue[a].Status != queue[b].Status {
			return queue[a].Status == models.OrderPreparing
		}
		return queue[a].Waiting > queue[b].Waiting
	})
	return queue
}

// WaiterBoard groups live orders by status for the floor staff.
func WaiterBoard(orders []*models.Order, tables map[string]string, now time.Time) map[models.OrderStatus][]Ticket {
	board := make(map[models.OrderStatus][]Ticket)
	for _, o := range orders {
		if o.Status.Terminal() {
			continue
		}
		board[o.Status] = append(board[o.Status], ticketOf(o, tables, now))
	}
	for status := range board {
		tickets := board[status]
		sort.SliceStable(tickets, func(a, b int) bool {
			return tickets[a].Waiting > tickets[b].Waiting
		})
	}
	return board
}

// Summary is the restaurant dashboard roll-up.
type Summary struct {
	OrdersByStatus map[models.OrderStatus]int
	OpenSessions   int
	LiveRevenue    money.Cents // total of non-cancelled orders
}

// Summarize counts orders by status and open sessions.
func Summarize(orders []*models.Order, sessions []*models.TableSession) Summary {
	s := Summary{OrdersByStatus: make(map[models.OrderStatus]int)}
	for _, o := range orders {
		s.OrdersByStatus[o.Status]++
		if o.Status != models.OrderCancelled {
			s.LiveRevenue += o.Total
		}
	}
	for _, sess := range sessions {
		if sess.Status == models.SessionActive {
			s.OpenSessions++
		}
	}
	return s
}

func ticketOf(o *models.Order, tables map[string]string, now time.Time) Ticket {
	t := Ticket{
		OrderID:   o.ID,
		SessionID: o.SessionID,
		TableID:   tables[o.SessionID],
		Status:    o.Status,
		Total:     o.Total,
	}
	since := o.CreatedAt
	switch o.Status {
	case models.OrderConfirmed:
		since = o.ConfirmedAt
	case models.OrderPreparing:
		since = o.PreparingAt
	case models.OrderReady:
		since = o.ReadyAt
	}
	if since > 0 {
		t.Waiting = now.Sub(time.Unix(since, 0))
	}
	if o.Status == models.OrderPreparing && o.EstimatedReadySeconds > 0 {
		t.Overdue = t.Waiting > time.Duration(o.EstimatedReadySeconds)*time.Second
	}
	for _, l := range o.Lines {
		t.ItemCount += l.Quantity
		t.Lines = append(t.Lines, TicketLine{Name: l.Name, Quantity: l.Quantity, Note: l.Note})
	}
	return t
}
