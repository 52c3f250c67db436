// Package dispatch runs the background consolidation loop. Once a window
// closes, every non-cancelled order for a restaurant in that window becomes
// one courier request: quote, create delivery, notify. The dispatch record's
// delivery id is the idempotency anchor — a window that already holds one is
// never sent to the provider again, no matter how often the ticker fires.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/treehouse/go-batch-backend/internal/batching"
	"github.com/treehouse/go-batch-backend/internal/catalog"
	"github.com/treehouse/go-batch-backend/internal/delivery"
	"github.com/treehouse/go-batch-backend/internal/domain"
	"github.com/treehouse/go-batch-backend/internal/msg"
	"github.com/treehouse/go-batch-backend/internal/repo"
)

// registryRetention keeps slot counters around after close long enough for
// late cancels and menu queries before eviction.
const registryRetention = 2 * time.Hour

// Dispatcher consolidates closed windows into courier requests.
type Dispatcher struct {
	DB       *gorm.DB
	Catalog  *catalog.Catalog
	Registry *batching.Registry
	Provider delivery.Provider
	Channel  msg.Channel
	Notifier *msg.Notifier

	// Interval is the tick period; RetryMax and RetryBase bound the
	// exponential backoff around provider calls; CallTimeout caps each
	// individual provider call.
	Interval    time.Duration
	RetryMax    int
	RetryBase   time.Duration
	CallTimeout time.Duration

	// Now overrides the clock in tests; nil means time.Now.
	Now func() time.Time
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Run ticks until ctx is cancelled. A tick fires immediately on start so a
// restarted process picks up windows that closed while it was down.
func (d *Dispatcher) Run(ctx context.Context) {
	interval := d.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	d.Tick(ctx)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			d.Tick(ctx)
		}
	}
}

// Tick processes every closed window with undelivered orders. Safe to call
// concurrently with itself: the dispatch record guards double-dispatch.
func (d *Dispatcher) Tick(ctx context.Context) {
	tr := otel.Tracer("dispatch/Dispatcher")
	ctx, span := tr.Start(ctx, "Tick")
	defer span.End()

	now := d.now()
	groups, err := repo.ClosedWindowGroups(ctx, d.DB, now)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("listing closed windows failed")
		return
	}
	for _, g := range groups {
		d.dispatchGroup(ctx, g)
	}

	d.Registry.Evict(now.Add(-registryRetention))
	if err := repo.PurgeExpiredInbound(ctx, d.DB, now); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("purging expired webhook dedupe rows failed")
	}
}

// dispatchGroup handles one (restaurant, window) pair end to end.
func (d *Dispatcher) dispatchGroup(ctx context.Context, g repo.WindowGroup) {
	tr := otel.Tracer("dispatch/Dispatcher")
	ctx, span := tr.Start(ctx, "dispatchGroup",
		trace.WithAttributes(
			attribute.String("restaurant", g.Restaurant),
			attribute.String("window", g.WindowClosesAt.Format(time.RFC3339)),
		),
	)
	defer span.End()

	logger := log.Ctx(ctx).With().
		Str("restaurant", g.Restaurant).
		Time("window_closes_at", g.WindowClosesAt).
		Logger()

	rec, err := repo.GetOrCreateDispatch(ctx, d.DB, g.Restaurant, g.WindowClosesAt)
	if err != nil {
		logger.Error().Err(err).Msg("loading dispatch record failed")
		return
	}
	if rec.DeliveryID != "" {
		// Already accepted by the provider; only the order status update can
		// still be outstanding from a crash between the two writes.
		if err := repo.MarkWindowDispatched(ctx, d.DB, g.Restaurant, g.WindowClosesAt); err != nil {
			logger.Error().Err(err).Msg("marking orders dispatched failed")
		}
		return
	}
	if rec.Status == domain.DispatchStatusFailed {
		// Terminal: orders stay pending for operator intervention.
		return
	}

	orders, err := repo.ActiveOrdersForWindow(ctx, d.DB, g.Restaurant, g.WindowClosesAt)
	if err != nil {
		logger.Error().Err(err).Msg("loading window orders failed")
		return
	}
	if len(orders) == 0 {
		return
	}

	rest, ok := d.Catalog.Lookup(g.Restaurant)
	if !ok {
		logger.Error().Msg("restaurant missing from catalog, cannot dispatch")
		return
	}

	req := delivery.Request{
		Restaurant:     rest,
		Dropoff:        d.Catalog.Dropoff,
		WindowClosesAt: g.WindowClosesAt,
		Items:          make([]delivery.ManifestItem, 0, len(orders)),
	}
	for _, o := range orders {
		req.Items = append(req.Items, delivery.ManifestItem{
			Identifier: o.Identifier,
			IsName:     o.IdentifierIsName,
		})
	}

	del, attempts, err := d.requestDelivery(ctx, req, rec)
	if err != nil {
		logger.Error().Err(err).Int("attempts", attempts).Msg("dispatch failed, surfacing to operator")
		if mErr := repo.MarkDispatchFailed(ctx, d.DB, rec.ID, attempts, err.Error()); mErr != nil {
			logger.Error().Err(mErr).Msg("recording dispatch failure failed")
		}
		d.Notifier.DispatchFailed(ctx, g.Restaurant, g.WindowClosesAt, err)
		return
	}

	rec.DeliveryID = del.ID
	rec.TrackingURL = del.TrackingURL
	rec.Attempts = attempts
	if err := repo.MarkDispatched(ctx, d.DB, rec.ID, rec); err != nil {
		// A concurrent tick won the race; its delivery stands.
		logger.Warn().Err(err).Msg("dispatch record already finalized elsewhere")
		return
	}
	if err := repo.MarkWindowDispatched(ctx, d.DB, g.Restaurant, g.WindowClosesAt); err != nil {
		logger.Error().Err(err).Msg("marking orders dispatched failed")
	}

	d.notifyCustomers(ctx, orders, del)
	d.Notifier.DispatchSummary(ctx, g.Restaurant, g.WindowClosesAt, len(orders), del.TrackingURL)
	logger.Info().
		Str("delivery_id", del.ID).
		Int("orders", len(orders)).
		Msg("window dispatched")
}

// requestDelivery runs quote + create with bounded exponential backoff. The
// returned attempt count includes the failed tries.
func (d *Dispatcher) requestDelivery(ctx context.Context, req delivery.Request, rec *domain.Dispatch) (delivery.Delivery, int, error) {
	max := d.RetryMax
	if max < 1 {
		max = 1
	}
	base := d.RetryBase
	if base <= 0 {
		base = 2 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= max; attempt++ {
		if attempt > 1 {
			backoff := base << (attempt - 2)
			select {
			case <-ctx.Done():
				return delivery.Delivery{}, attempt - 1, ctx.Err()
			case <-time.After(backoff):
			}
		}

		quote, err := d.callQuote(ctx, req)
		if err != nil {
			lastErr = fmt.Errorf("quote: %w", err)
			continue
		}
		rec.QuoteID = quote.ID
		rec.FeeCents = quote.FeeCents
		rec.Currency = quote.Currency

		del, err := d.callCreate(ctx, req, quote)
		if err != nil {
			lastErr = fmt.Errorf("create delivery: %w", err)
			continue
		}
		return del, attempt, nil
	}
	return delivery.Delivery{}, max, lastErr
}

func (d *Dispatcher) callQuote(ctx context.Context, req delivery.Request) (delivery.Quote, error) {
	ctx, cancel := d.callContext(ctx)
	defer cancel()
	return d.Provider.Quote(ctx, req)
}

func (d *Dispatcher) callCreate(ctx context.Context, req delivery.Request, q delivery.Quote) (delivery.Delivery, error) {
	ctx, cancel := d.callContext(ctx)
	defer cancel()
	return d.Provider.CreateDelivery(ctx, req, q)
}

func (d *Dispatcher) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := d.CallTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// notifyCustomers texts each customer a tracking reference. Failures are
// logged per customer and never abort the loop.
func (d *Dispatcher) notifyCustomers(ctx context.Context, orders []domain.Order, del delivery.Delivery) {
	if d.Channel == nil {
		return
	}
	for _, o := range orders {
		if o.Customer.Phone == "" || o.Customer.OptedOut {
			continue
		}
		body := fmt.Sprintf("Your %s order is out for delivery to %s!", o.Restaurant, o.DeliveryLocation)
		if del.TrackingURL != "" {
			body += " Track it: " + del.TrackingURL
		}
		if _, err := d.Channel.Send(ctx, o.Customer.Phone, body); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("order_id", o.ID).Msg("customer dispatch notification failed")
		}
	}
}
