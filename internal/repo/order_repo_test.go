package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/treehouse/go-batch-backend/internal/domain"
)

func seedCustomer(t *testing.T, db *gorm.DB, phone string) *domain.Customer {
	t.Helper()
	c, err := GetOrCreateCustomer(context.Background(), db, phone)
	if err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return c
}

func seedOrder(t *testing.T, db *gorm.DB, customerID, restaurant string, closesAt time.Time, status string) *domain.Order {
	t.Helper()
	o := &domain.Order{
		ID:               uuid.NewString(),
		CustomerID:       customerID,
		Restaurant:       restaurant,
		WindowClosesAt:   closesAt,
		Identifier:       "A17",
		DeliveryLocation: "Library",
		FeeCents:         200,
		Status:           status,
	}
	if err := CreateOrder(context.Background(), db, o); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return o
}

func TestUpdateOrderStatus_Guarded(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := seedCustomer(t, db, "+15550001111")
	closes := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	o := seedOrder(t, db, c.ID, "Chipotle", closes, domain.OrderStatusPending)

	if err := UpdateOrderStatus(ctx, db, o.ID, domain.OrderStatusPending, domain.OrderStatusPaid); err != nil {
		t.Fatalf("UpdateOrderStatus: %v", err)
	}
	// Guard: the order is no longer pending, so the stale transition loses.
	err := UpdateOrderStatus(ctx, db, o.ID, domain.OrderStatusPending, domain.OrderStatusCancelled)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("stale transition err = %v, want ErrNotFound", err)
	}

	got, err := GetOrder(ctx, db, o.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.Status != domain.OrderStatusPaid {
		t.Fatalf("Status = %q, want paid", got.Status)
	}
}

func TestLatestActiveOrder_SkipsCancelled(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := seedCustomer(t, db, "+15550001111")
	closes := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	if _, err := LatestActiveOrder(ctx, db, c.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("no orders err = %v", err)
	}

	older := seedOrder(t, db, c.ID, "Chipotle", closes, domain.OrderStatusPending)
	db.Model(&domain.Order{}).Where("id = ?", older.ID).
		Update("created_at", time.Now().Add(-time.Minute))
	cancelled := seedOrder(t, db, c.ID, "McDonald's", closes, domain.OrderStatusCancelled)
	_ = cancelled

	got, err := LatestActiveOrder(ctx, db, c.ID)
	if err != nil {
		t.Fatalf("LatestActiveOrder: %v", err)
	}
	if got.ID != older.ID {
		t.Fatalf("latest active = %q, want the pending order %q", got.ID, older.ID)
	}
}

func TestClosedWindowGroups(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := seedCustomer(t, db, "+15550001111")

	closed := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	open := closed.Add(30 * time.Minute)

	seedOrder(t, db, c.ID, "Chipotle", closed, domain.OrderStatusPending)
	seedOrder(t, db, c.ID, "Chipotle", closed, domain.OrderStatusPaid)
	seedOrder(t, db, c.ID, "McDonald's", closed, domain.OrderStatusPending)
	seedOrder(t, db, c.ID, "Chipotle", closed, domain.OrderStatusCancelled) // excluded
	seedOrder(t, db, c.ID, "Chipotle", open, domain.OrderStatusPending)     // window still open

	groups, err := ClosedWindowGroups(ctx, db, closed.Add(time.Minute))
	if err != nil {
		t.Fatalf("ClosedWindowGroups: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d, want 2: %+v", len(groups), groups)
	}
	for _, g := range groups {
		if !g.WindowClosesAt.Equal(closed) {
			t.Fatalf("group window = %v, want %v", g.WindowClosesAt, closed)
		}
	}
}

func TestActiveOrdersForWindow_PreloadsCustomer(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := seedCustomer(t, db, "+15550001111")
	closes := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	seedOrder(t, db, c.ID, "Chipotle", closes, domain.OrderStatusPending)
	seedOrder(t, db, c.ID, "Chipotle", closes, domain.OrderStatusPaid)
	seedOrder(t, db, c.ID, "Chipotle", closes, domain.OrderStatusCancelled)

	out, err := ActiveOrdersForWindow(ctx, db, "Chipotle", closes)
	if err != nil {
		t.Fatalf("ActiveOrdersForWindow: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2 undelivered orders", len(out))
	}
	for _, o := range out {
		if o.Customer.Phone != "+15550001111" {
			t.Fatalf("customer not preloaded on order %q", o.ID)
		}
	}
}

func TestMarkWindowDispatched(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := seedCustomer(t, db, "+15550001111")
	closes := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	seedOrder(t, db, c.ID, "Chipotle", closes, domain.OrderStatusPending)
	seedOrder(t, db, c.ID, "Chipotle", closes, domain.OrderStatusPaid)
	kept := seedOrder(t, db, c.ID, "Chipotle", closes, domain.OrderStatusCancelled)

	if err := MarkWindowDispatched(ctx, db, "Chipotle", closes); err != nil {
		t.Fatalf("MarkWindowDispatched: %v", err)
	}

	out, err := ActiveOrdersForWindow(ctx, db, "Chipotle", closes)
	if err != nil {
		t.Fatalf("ActiveOrdersForWindow: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("window still has %d undelivered orders", len(out))
	}
	got, err := GetOrder(ctx, db, kept.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.Status != domain.OrderStatusCancelled {
		t.Fatalf("cancelled order status mutated to %q", got.Status)
	}
}

func TestCountAndListOrdersPage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := seedCustomer(t, db, "+15550001111")
	closes := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		seedOrder(t, db, c.ID, "Chipotle", closes, domain.OrderStatusPending)
	}

	total, err := CountOrders(ctx, db)
	if err != nil || total != 5 {
		t.Fatalf("CountOrders = (%d, %v), want 5", total, err)
	}
	page, err := ListOrdersPage(ctx, db, 2, 2)
	if err != nil || len(page) != 2 {
		t.Fatalf("ListOrdersPage = (%d items, %v), want 2", len(page), err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(gorm.ErrDuplicatedKey) {
		t.Fatalf("gorm.ErrDuplicatedKey not recognized")
	}
	if !isUniqueViolation(errors.New("UNIQUE constraint failed: customers.phone")) {
		t.Fatalf("sqlite message not recognized")
	}
	if isUniqueViolation(errors.New("disk I/O error")) {
		t.Fatalf("unrelated error treated as unique violation")
	}
}
