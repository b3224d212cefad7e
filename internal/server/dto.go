package server

import (
	"encoding/json"

	"github.com/comanda-app/comanda/internal/models"
	"github.com/comanda-app/comanda/internal/projection"
)

// Response shapes. Monetary fields are integer minor units; the formatted
// string is included for display so clients never do float math.

type moneyJSON struct {
	Cents     int64  `json:"cents"`
	Formatted string `json:"formatted"`
}

type orderLineJSON struct {
	ID         string          `json:"id"`
	MenuItemID string          `json:"menu_item_id"`
	Name       string          `json:"name"`
	UnitPrice  moneyJSON       `json:"unit_price"`
	Quantity   int64           `json:"quantity"`
	PayerID    string          `json:"payer_id,omitempty"`
	SharedWith []string        `json:"shared_with,omitempty"`
	Note       string          `json:"note,omitempty"`
	Metadata   models.Metadata `json:"metadata,omitempty"`
}

type orderJSON struct {
	ID                    string             `json:"id"`
	SessionID             string             `json:"session_id"`
	Status                models.OrderStatus `json:"status"`
	Lines                 []orderLineJSON    `json:"lines"`
	Subtotal              moneyJSON          `json:"subtotal"`
	Tax                   moneyJSON          `json:"tax"`
	Discount              moneyJSON          `json:"discount"`
	Total                 moneyJSON          `json:"total"`
	Split                 bool               `json:"split"`
	SplitPolicy           string             `json:"split_policy,omitempty"`
	CancelReason          string             `json:"cancel_reason,omitempty"`
	EstimatedReadySeconds int64              `json:"estimated_ready_seconds,omitempty"`
	CreatedAt             int64              `json:"created_at"`
	ConfirmedAt           int64              `json:"confirmed_at,omitempty"`
	PreparingAt           int64              `json:"preparing_at,omitempty"`
	ReadyAt               int64              `json:"ready_at,omitempty"`
	DeliveredAt           int64              `json:"delivered_at,omitempty"`
	CancelledAt           int64              `json:"cancelled_at,omitempty"`
}

type memberJSON struct {
	ID        string                  `json:"id"`
	ActorID   string                  `json:"actor_id"`
	GuestName string                  `json:"guest_name,omitempty"`
	Role      models.MemberRole       `json:"role"`
	Status    models.MembershipStatus `json:"status"`
	JoinedAt  int64                   `json:"joined_at"`
	DecidedAt int64                   `json:"decided_at,omitempty"`
}

type sessionJSON struct {
	ID        string               `json:"id"`
	TableID   string               `json:"table_id"`
	Status    models.SessionStatus `json:"status"`
	Members   []memberJSON         `json:"members"`
	CreatedAt int64                `json:"created_at"`
	ClosedAt  int64                `json:"closed_at,omitempty"`
}

type paymentJSON struct {
	ID         string               `json:"id"`
	OrderID    string               `json:"order_id"`
	PayerID    string               `json:"payer_id"`
	AmountDue  moneyJSON            `json:"amount_due"`
	Status     models.PaymentStatus `json:"status"`
	Token      string               `json:"token,omitempty"`
	ExpiresAt  int64                `json:"expires_at"`
	Method     string               `json:"method,omitempty"`
	GatewayRef string               `json:"gateway_ref,omitempty"`
	PaidAt     int64                `json:"paid_at,omitempty"`
}

type ticketJSON struct {
	OrderID        string             `json:"order_id"`
	SessionID      string             `json:"session_id"`
	TableID        string             `json:"table_id"`
	Status         models.OrderStatus `json:"status"`
	WaitingSeconds int64              `json:"waiting_seconds"`
	Overdue        bool               `json:"overdue"`
	ItemCount      int64              `json:"item_count"`
	Total          moneyJSON          `json:"total"`
	Lines          []ticketLineJSON   `json:"lines"`
}

type ticketLineJSON struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
	Note     string `json:"note,omitempty"`
}

func orderView(o *models.Order) orderJSON {
	lines := make([]orderLineJSON, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = orderLineJSON{
			ID:         l.ID,
			MenuItemID: l.MenuItemID,
			Name:       l.Name,
			UnitPrice:  moneyJSON{Cents: int64(l.UnitPrice), Formatted: l.UnitPrice.String()},
			Quantity:   l.Quantity,
			PayerID:    l.PayerID,
			SharedWith: l.SharedWith,
			Note:       l.Note,
			Metadata:   l.Metadata,
		}
	}
	return orderJSON{
		ID:                    o.ID,
		SessionID:             o.SessionID,
		Status:                o.Status,
		Lines:                 lines,
		Subtotal:              moneyJSON{Cents: int64(o.Subtotal), Formatted: o.Subtotal.String()},
		Tax:                   moneyJSON{Cents: int64(o.Tax), Formatted: o.Tax.String()},
		Discount:              moneyJSON{Cents: int64(o.Discount), Formatted: o.Discount.String()},
		Total:                 moneyJSON{Cents: int64(o.Total), Formatted: o.Total.String()},
		Split:                 o.Split,
		SplitPolicy:           string(o.SplitPolicy),
		CancelReason:          o.CancelReason,
		EstimatedReadySeconds: o.EstimatedReadySeconds,
		CreatedAt:             o.CreatedAt,
		ConfirmedAt:           o.ConfirmedAt,
		PreparingAt:           o.PreparingAt,
		ReadyAt:               o.ReadyAt,
		DeliveredAt:           o.DeliveredAt,
		CancelledAt:           o.CancelledAt,
	}
}

func sessionView(s *models.TableSession) sessionJSON {
	members := make([]memberJSON, len(s.Members))
	for i, m := range s.Members {
		members[i] = memberJSON{
			ID:        m.ID,
			ActorID:   m.ActorID,
			GuestName: m.GuestName,
			Role:      m.Role,
			Status:    m.Status,
			JoinedAt:  m.JoinedAt,
			DecidedAt: m.DecidedAt,
		}
	}
	return sessionJSON{
		ID:        s.ID,
		TableID:   s.TableID,
		Status:    s.Status,
		Members:   members,
		CreatedAt: s.CreatedAt,
		ClosedAt:  s.ClosedAt,
	}
}

// paymentView renders a payment. The pay-link token is only included for
// the payer's own share or for staff.
func paymentView(p *models.SplitPayment, includeToken bool) paymentJSON {
	v := paymentJSON{
		ID:         p.ID,
		OrderID:    p.OrderID,
		PayerID:    p.PayerID,
		AmountDue:  moneyJSON{Cents: int64(p.AmountDue), Formatted: p.AmountDue.String()},
		Status:     p.Status,
		ExpiresAt:  p.ExpiresAt,
		Method:     p.Method,
		GatewayRef: p.GatewayRef,
		PaidAt:     p.PaidAt,
	}
	if includeToken {
		v.Token = p.Token
	}
	return v
}

func ticketView(t projection.Ticket) ticketJSON {
	lines := make([]ticketLineJSON, len(t.Lines))
	for i, l := range t.Lines {
		lines[i] = ticketLineJSON{Name: l.Name, Quantity: l.Quantity, Note: l.Note}
	}
	return ticketJSON{
		OrderID:        t.OrderID,
		SessionID:      t.SessionID,
		TableID:        t.TableID,
		Status:         t.Status,
		WaitingSeconds: int64(t.Waiting.Seconds()),
		Overdue:        t.Overdue,
		ItemCount:      t.ItemCount,
		Total:          moneyJSON{Cents: int64(t.Total), Formatted: t.Total.String()},
		Lines:          lines,
	}
}

// lineFromJSON decodes an incoming order line.
type lineRequest struct {
	MenuItemID string          `json:"menu_item_id" binding:"required"`
	Name       string          `json:"name" binding:"required"`
	UnitPrice  int64           `json:"unit_price_cents"`
	Quantity   int64           `json:"quantity" binding:"required"`
	PayerID    string          `json:"payer_id"`
	SharedWith []string        `json:"shared_with"`
	Note       string          `json:"note"`
	Metadata   json.RawMessage `json:"metadata"`
}
