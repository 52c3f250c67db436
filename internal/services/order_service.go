// Package services – OrderService
//
// This file implements OrderService, the application-level component that
// owns the order lifecycle: placement against the capacity registry,
// time-boxed cancellation, payment transitions, and the operator listing.
//
// Placement is a two-phase operation: capacity is reserved in the in-memory
// registry first, then the order row is persisted. A failed insert releases
// the reservation so the slot never leaks capacity.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include restaurant and customer identifiers where applicable.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/treehouse/go-batch-backend/internal/batching"
	"github.com/treehouse/go-batch-backend/internal/catalog"
	"github.com/treehouse/go-batch-backend/internal/domain"
	"github.com/treehouse/go-batch-backend/internal/repo"
)

// OrderService coordinates order persistence and window capacity.
type OrderService struct {
	DB       *gorm.DB
	Catalog  *catalog.Catalog
	Registry *batching.Registry
	Windows  batching.Calculator

	// CancelWindow bounds how long after placement an order may be cancelled.
	CancelWindow time.Duration

	// Now overrides the clock in tests; nil means time.Now.
	Now func() time.Time
}

func (s *OrderService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// PlaceOrder reserves capacity in the current window for the restaurant and
// persists the order. The restaurant name may be any catalog name or alias;
// the stored order carries the canonical name. On capacity exhaustion it
// returns ErrSlotFull together with the slot snapshot so the caller can
// tell the customer when the next window opens.
func (s *OrderService) PlaceOrder(ctx context.Context, customer *domain.Customer, restaurant, identifier string, identifierIsName bool, location string) (*domain.Order, batching.Slot, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "PlaceOrder",
		trace.WithAttributes(
			attribute.String("customer.id", customer.ID),
			attribute.String("restaurant", restaurant),
		),
	)
	defer span.End()

	rest, ok := s.Catalog.Lookup(restaurant)
	if !ok {
		return nil, batching.Slot{}, ErrUnknownRestaurant
	}
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, batching.Slot{}, ErrEmptyIdentifier
	}
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, batching.Slot{}, ErrEmptyLocation
	}

	window := s.Windows.Current(s.now())
	slot, ok := s.Registry.Reserve(rest.Name, window)
	if !ok {
		return nil, slot, ErrSlotFull
	}

	o := &domain.Order{
		ID:               uuid.NewString(),
		CustomerID:       customer.ID,
		Restaurant:       rest.Name,
		WindowClosesAt:   window.ClosesAt.UTC(),
		Identifier:       identifier,
		IdentifierIsName: identifierIsName,
		DeliveryLocation: location,
		FeeCents:         slot.FeeCents,
		Status:           domain.OrderStatusPending,
	}
	if err := repo.CreateOrder(ctx, s.DB, o); err != nil {
		s.Registry.Release(rest.Name, window)
		return nil, slot, err
	}
	return o, slot, nil
}

// CancelOrder cancels the given order, or the customer's latest active order
// when orderID is empty. Cancellation is only honored inside CancelWindow
// after placement and before the window is dispatched; a successful cancel
// returns the freed capacity to the registry.
func (s *OrderService) CancelOrder(ctx context.Context, customerID, orderID string) (*domain.Order, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "CancelOrder",
		trace.WithAttributes(attribute.String("customer.id", customerID)),
	)
	defer span.End()

	o, err := s.findOwned(ctx, customerID, orderID)
	if err != nil {
		return nil, err
	}

	switch o.Status {
	case domain.OrderStatusCancelled:
		return nil, ErrAlreadyCancelled
	case domain.OrderStatusDispatched:
		return nil, ErrAlreadyDispatched
	}
	now := s.now()
	if s.CancelWindow > 0 && now.Sub(o.CreatedAt) > s.CancelWindow {
		return nil, ErrCancelTooLate
	}

	if err := repo.UpdateOrderStatus(ctx, s.DB, o.ID, o.Status, domain.OrderStatusCancelled); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Lost the race against dispatch or a concurrent cancel.
			return nil, ErrAlreadyDispatched
		}
		return nil, err
	}
	o.Status = domain.OrderStatusCancelled

	s.Registry.Release(o.Restaurant, batching.Window{ClosesAt: o.WindowClosesAt})
	return o, nil
}

// MarkPaid transitions a pending order to paid after payment confirmation.
func (s *OrderService) MarkPaid(ctx context.Context, orderID string) (*domain.Order, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "MarkPaid",
		trace.WithAttributes(attribute.String("order.id", orderID)),
	)
	defer span.End()

	o, err := repo.GetOrder(ctx, s.DB, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if o.Status == domain.OrderStatusPaid {
		return o, nil // confirmation replays are fine
	}
	if o.Status != domain.OrderStatusPending {
		return nil, ErrAlreadyDispatched
	}
	if err := repo.UpdateOrderStatus(ctx, s.DB, o.ID, domain.OrderStatusPending, domain.OrderStatusPaid); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlreadyDispatched
		}
		return nil, err
	}
	o.Status = domain.OrderStatusPaid
	return o, nil
}

// CurrentSlots returns capacity snapshots for every restaurant in the window
// open at now, for the menu reply and the batches endpoint.
func (s *OrderService) CurrentSlots(ctx context.Context) (batching.Window, []batching.Slot) {
	tr := otel.Tracer("services/OrderService")
	_, span := tr.Start(ctx, "CurrentSlots")
	defer span.End()

	w := s.Windows.Current(s.now())
	return w, s.Registry.ActiveSlots(w)
}

// ListPage returns paginated orders for the operator listing.
func (s *OrderService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Order, int64, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountOrders(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Order{}, 0, nil
	}
	items, err := repo.ListOrdersPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}

// findOwned resolves orderID (or the latest active order when empty) and
// enforces ownership.
func (s *OrderService) findOwned(ctx context.Context, customerID, orderID string) (*domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		o, err := repo.LatestActiveOrder(ctx, s.DB, customerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrOrderNotFound
			}
			return nil, err
		}
		return o, nil
	}
	o, err := repo.GetOrder(ctx, s.DB, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if o.CustomerID != customerID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}
