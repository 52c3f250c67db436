package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/treehouse/go-batch-backend/internal/repo"
)

func TestCustomerService_Identify_Registers(t *testing.T) {
	db := newSvcDB(t)
	s := &CustomerService{DB: db}
	ctx := context.Background()

	c, err := s.Identify(ctx, "+15550001111")
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if c.Phone != "+15550001111" || c.ID == "" {
		t.Fatalf("customer = %+v", c)
	}

	again, err := s.Identify(ctx, "+15550001111")
	if err != nil {
		t.Fatalf("second Identify: %v", err)
	}
	if again.ID != c.ID {
		t.Fatalf("Identify created a second row: %q vs %q", again.ID, c.ID)
	}
}

func TestCustomerService_Identify_OptedOut(t *testing.T) {
	db := newSvcDB(t)
	s := &CustomerService{DB: db}
	ctx := context.Background()

	c, err := s.Identify(ctx, "+15550001111")
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if err := s.SetOptedOut(ctx, c.ID, true); err != nil {
		t.Fatalf("SetOptedOut: %v", err)
	}

	got, err := s.Identify(ctx, "+15550001111")
	if !errors.Is(err, ErrOptedOut) {
		t.Fatalf("err = %v, want ErrOptedOut", err)
	}
	if got == nil || got.ID != c.ID {
		t.Fatalf("opted-out customer not returned alongside the error")
	}

	// START clears the flag.
	if err := s.SetOptedOut(ctx, c.ID, false); err != nil {
		t.Fatalf("clear opt-out: %v", err)
	}
	if _, err := s.Identify(ctx, "+15550001111"); err != nil {
		t.Fatalf("Identify after START: %v", err)
	}
}

func TestCustomerService_SetName(t *testing.T) {
	db := newSvcDB(t)
	s := &CustomerService{DB: db}
	ctx := context.Background()

	c, err := s.Identify(ctx, "+15550001111")
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}

	if err := s.SetName(ctx, c.ID, "  Alex  "); err != nil {
		t.Fatalf("SetName: %v", err)
	}
	got, err := repo.GetCustomerByPhone(ctx, db, c.Phone)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Name != "Alex" {
		t.Fatalf("Name = %q, want trimmed Alex", got.Name)
	}

	if err := s.SetName(ctx, c.ID, "   "); !errors.Is(err, ErrEmptyIdentifier) {
		t.Fatalf("blank name err = %v", err)
	}
	if err := s.SetName(ctx, uuid.NewString(), "Alex"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("unknown id err = %v", err)
	}
}

func TestCustomerService_SetDefaultLocation(t *testing.T) {
	db := newSvcDB(t)
	s := &CustomerService{DB: db}
	ctx := context.Background()

	c, err := s.Identify(ctx, "+15550001111")
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}

	if err := s.SetDefaultLocation(ctx, c.ID, "Library"); err != nil {
		t.Fatalf("SetDefaultLocation: %v", err)
	}
	got, err := repo.GetCustomerByPhone(ctx, db, c.Phone)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.DefaultLocation != "Library" {
		t.Fatalf("DefaultLocation = %q", got.DefaultLocation)
	}

	if err := s.SetDefaultLocation(ctx, c.ID, " "); !errors.Is(err, ErrEmptyLocation) {
		t.Fatalf("blank location err = %v", err)
	}
}
