// Package services – CustomerService
//
// This file implements CustomerService, which owns the customer profile
// lifecycle: first-contact registration keyed by phone number, name and
// default-location capture during the conversational flow, and STOP/START
// opt-out handling.
package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/treehouse/go-batch-backend/internal/domain"
	"github.com/treehouse/go-batch-backend/internal/repo"
)

// CustomerService coordinates customer profile persistence.
type CustomerService struct {
	DB *gorm.DB
}

// Identify fetches or registers the customer for a phone number. It returns
// ErrOptedOut for customers who previously sent STOP, so callers suppress
// further engagement.
func (s *CustomerService) Identify(ctx context.Context, phone string) (*domain.Customer, error) {
	tr := otel.Tracer("services/CustomerService")
	ctx, span := tr.Start(ctx, "Identify")
	defer span.End()

	c, err := repo.GetOrCreateCustomer(ctx, s.DB, phone)
	if err != nil {
		return nil, err
	}
	if c.OptedOut {
		return c, ErrOptedOut
	}
	return c, nil
}

// SetName stores the customer's display name for reuse on later orders.
func (s *CustomerService) SetName(ctx context.Context, customerID, name string) error {
	tr := otel.Tracer("services/CustomerService")
	ctx, span := tr.Start(ctx, "SetName",
		trace.WithAttributes(attribute.String("customer.id", customerID)),
	)
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyIdentifier
	}
	return repo.UpdateCustomerName(ctx, s.DB, customerID, name)
}

// SetDefaultLocation stores the customer's preferred drop-off point.
func (s *CustomerService) SetDefaultLocation(ctx context.Context, customerID, location string) error {
	tr := otel.Tracer("services/CustomerService")
	ctx, span := tr.Start(ctx, "SetDefaultLocation",
		trace.WithAttributes(attribute.String("customer.id", customerID)),
	)
	defer span.End()

	location = strings.TrimSpace(location)
	if location == "" {
		return ErrEmptyLocation
	}
	return repo.UpdateCustomerLocation(ctx, s.DB, customerID, location)
}

// SetOptedOut records a STOP (true) or START (false) request.
func (s *CustomerService) SetOptedOut(ctx context.Context, customerID string, optedOut bool) error {
	tr := otel.Tracer("services/CustomerService")
	ctx, span := tr.Start(ctx, "SetOptedOut",
		trace.WithAttributes(
			attribute.String("customer.id", customerID),
			attribute.Bool("opted_out", optedOut),
		),
	)
	defer span.End()

	return repo.SetCustomerOptedOut(ctx, s.DB, customerID, optedOut)
}
