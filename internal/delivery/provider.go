// Package delivery integrates courier providers. The dispatcher talks to the
// Provider interface only; the Uber Direct adapter in this package is the
// production implementation and tests substitute fakes.
package delivery

import (
	"context"
	"time"

	"github.com/treehouse/go-batch-backend/internal/catalog"
)

// ManifestItem is one package handed to the courier at pickup. Couriers
// identify packages by the item name, so it carries the order number or
// customer name rather than food items.
type ManifestItem struct {
	Identifier string // order number ("1047") or customer name ("Alex P")
	IsName     bool
}

// Request describes one consolidated courier run: everything from one
// restaurant's closed window, delivered to the fixed drop-off point.
type Request struct {
	Restaurant catalog.Restaurant
	Dropoff    catalog.Location
	Items      []ManifestItem

	// WindowClosesAt anchors the pickup/drop-off scheduling windows and the
	// provider-side external id.
	WindowClosesAt time.Time
}

// Quote is a priced offer from the provider, valid for a short time.
type Quote struct {
	ID       string
	FeeCents int64
	Currency string
}

// Delivery is an accepted courier request.
type Delivery struct {
	ID          string
	Status      string
	TrackingURL string
}

// Provider is a courier service capable of quoting and creating deliveries.
type Provider interface {
	// Quote prices the run described by req.
	Quote(ctx context.Context, req Request) (Quote, error)
	// CreateDelivery books a courier against a previously obtained quote.
	CreateDelivery(ctx context.Context, req Request, q Quote) (Delivery, error)
}
