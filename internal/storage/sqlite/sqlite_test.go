package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/comanda-app/comanda/internal/models"
	"github.com/comanda-app/comanda/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSessionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := &models.TableSession{
		TableID:   "table-7",
		Status:    models.SessionActive,
		CreatedAt: 100,
		Members: []models.Member{
			{ActorID: "ana", Role: models.RoleOwner, Status: models.MemberApproved, JoinedAt: 100},
			{ActorID: "bea", Role: models.RoleParticipant, Status: models.MemberPending, JoinedAt: 110},
		},
	}
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if session.ID == "" {
		t.Fatal("expected generated session ID")
	}

	got, err := store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.TableID != "table-7" || got.Status != models.SessionActive {
		t.Errorf("unexpected session: %+v", got)
	}
	if len(got.Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(got.Members))
	}
	if got.Members[0].ActorID != "ana" || got.Members[1].ActorID != "bea" {
		t.Errorf("member order not preserved: %+v", got.Members)
	}

	byTable, err := store.GetActiveSessionByTable(ctx, "table-7")
	if err != nil {
		t.Fatalf("GetActiveSessionByTable: %v", err)
	}
	if byTable.ID != session.ID {
		t.Errorf("expected session %s, got %s", session.ID, byTable.ID)
	}
}

func TestActiveSessionUnique(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := &models.TableSession{TableID: "table-1", Status: models.SessionActive}
	if err := store.CreateSession(ctx, first); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	second := &models.TableSession{TableID: "table-1", Status: models.SessionActive}
	if err := store.CreateSession(ctx, second); !errors.Is(err, storage.ErrActiveSessionExists) {
		t.Fatalf("expected ErrActiveSessionExists, got %v", err)
	}

	// Closing the first session frees the table.
	first.Status = models.SessionClosed
	first.ClosedAt = 200
	if err := store.UpdateSession(ctx, first); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}
	if err := store.CreateSession(ctx, second); err != nil {
		t.Fatalf("expected create to succeed after close, got %v", err)
	}
	if _, err := store.GetActiveSessionByTable(ctx, "table-1"); err != nil {
		t.Fatalf("GetActiveSessionByTable: %v", err)
	}
}

func TestOrderRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := &models.TableSession{TableID: "table-3", Status: models.SessionActive}
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	meta := models.Metadata{}
	meta.Set("course", json.RawMessage(`"main"`))
	meta.Set("spice", json.RawMessage(`2`))

	order := &models.Order{
		SessionID: session.ID,
		Status:    models.OrderPending,
		Subtotal:  5400,
		Tax:       540,
		Total:     5940,
		Lines: []models.OrderLine{
			{MenuItemID: "item-1", Name: "Moqueca", UnitPrice: 5400, Quantity: 1,
				PayerID: "ana", SharedWith: []string{"ana", "bea"},
				Note: "no cilantro", Metadata: meta},
		},
	}
	if err := store.CreateOrder(ctx, order); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	got, err := store.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.Total != 5940 || got.Status != models.OrderPending {
		t.Errorf("unexpected order: %+v", got)
	}
	if len(got.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(got.Lines))
	}
	line := got.Lines[0]
	if line.Note != "no cilantro" {
		t.Errorf("note = %q", line.Note)
	}
	if len(line.SharedWith) != 2 || line.SharedWith[0] != "ana" {
		t.Errorf("shared_with = %v", line.SharedWith)
	}
	if v, ok := line.Metadata.Get("course"); !ok || string(v) != `"main"` {
		t.Errorf("metadata course = %s, ok = %v", v, ok)
	}
	// Key order survives the round trip.
	if line.Metadata[0].Key != "course" || line.Metadata[1].Key != "spice" {
		t.Errorf("metadata order not preserved: %+v", line.Metadata)
	}

	// Update replaces lines.
	got.Status = models.OrderConfirmed
	got.ConfirmedAt = 150
	got.Lines = append(got.Lines, models.OrderLine{
		MenuItemID: "item-2", Name: "Guarana", UnitPrice: 800, Quantity: 2, PayerID: "bea",
	})
	if err := store.UpdateOrder(ctx, got); err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	updated, err := store.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder after update: %v", err)
	}
	if updated.Status != models.OrderConfirmed || len(updated.Lines) != 2 {
		t.Errorf("update not applied: status=%s lines=%d", updated.Status, len(updated.Lines))
	}

	byStatus, err := store.ListOrdersByStatus(ctx, models.OrderConfirmed, models.OrderPreparing)
	if err != nil {
		t.Fatalf("ListOrdersByStatus: %v", err)
	}
	if len(byStatus) != 1 || byStatus[0].ID != order.ID {
		t.Errorf("unexpected status listing: %+v", byStatus)
	}
}

func TestOrderNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetOrder(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.UpdateOrder(ctx, &models.Order{ID: "missing"}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
}

func TestPaymentBatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := &models.TableSession{TableID: "table-5", Status: models.SessionActive}
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	order := &models.Order{SessionID: session.ID, Status: models.OrderReady, Total: 3000}
	if err := store.CreateOrder(ctx, order); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	batch := []*models.SplitPayment{
		{OrderID: order.ID, PayerID: "ana", AmountDue: 1500, Status: models.PaymentPending, Token: "tok-a", ExpiresAt: 9999},
		{OrderID: order.ID, PayerID: "bea", AmountDue: 1500, Status: models.PaymentPending, Token: "tok-b", ExpiresAt: 9999},
	}
	if err := store.CreatePayments(ctx, batch); err != nil {
		t.Fatalf("CreatePayments: %v", err)
	}

	list, err := store.ListPaymentsByOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("ListPaymentsByOrder: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(list))
	}

	p := list[0]
	p.Status = models.PaymentPaid
	p.Method = "pix"
	p.GatewayRef = "gw-123"
	p.PaidAt = 500
	if err := store.UpdatePayment(ctx, p); err != nil {
		t.Fatalf("UpdatePayment: %v", err)
	}
	got, err := store.GetPayment(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPayment: %v", err)
	}
	if got.Status != models.PaymentPaid || got.GatewayRef != "gw-123" || got.PaidAt != 500 {
		t.Errorf("update not applied: %+v", got)
	}
}

func TestStaffUniqueEmail(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	staff := &models.Staff{Email: "carla@example.com", Name: "Carla", Role: models.ActorWaiter, PasswordHash: "x"}
	if err := store.CreateStaff(ctx, staff); err != nil {
		t.Fatalf("CreateStaff: %v", err)
	}

	dup := &models.Staff{Email: "carla@example.com", Name: "Other", Role: models.ActorManager, PasswordHash: "y"}
	if err := store.CreateStaff(ctx, dup); !errors.Is(err, storage.ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}

	byEmail, err := store.GetStaffByEmail(ctx, "carla@example.com")
	if err != nil {
		t.Fatalf("GetStaffByEmail: %v", err)
	}
	if byEmail.ID != staff.ID {
		t.Errorf("expected %s, got %s", staff.ID, byEmail.ID)
	}
	byID, err := store.GetStaffByID(ctx, staff.ID)
	if err != nil {
		t.Fatalf("GetStaffByID: %v", err)
	}
	if byID.Email != "carla@example.com" {
		t.Errorf("unexpected staff: %+v", byID)
	}
}
