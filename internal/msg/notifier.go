package msg

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/treehouse/go-batch-backend/internal/domain"
)

// Notifier pushes operator alerts over the messaging channel. Every method
// is fail-soft: a provider outage is logged but never propagated, because
// notifications must not break order placement or dispatch.
type Notifier struct {
	Channel       Channel
	OperatorPhone string
}

// OrderPlaced alerts the operator about a newly placed order.
func (n *Notifier) OrderPlaced(ctx context.Context, o *domain.Order, phone string) {
	n.send(ctx, fmt.Sprintf("New order: %s for window %s from %s (id %s)",
		o.Restaurant, o.WindowClosesAt.Format("15:04"), phone, o.ID))
}

// PaymentReceived alerts the operator that an order's payment was confirmed.
func (n *Notifier) PaymentReceived(ctx context.Context, o *domain.Order) {
	n.send(ctx, fmt.Sprintf("Payment received for order %s (%s, $%.2f)",
		o.ID, o.Restaurant, float64(o.FeeCents)/100))
}

// DispatchSummary alerts the operator about an accepted courier run.
func (n *Notifier) DispatchSummary(ctx context.Context, restaurant string, closesAt time.Time, orders int, trackingURL string) {
	body := fmt.Sprintf("Dispatched %d order(s) from %s for the %s window",
		orders, restaurant, closesAt.Format("15:04"))
	if trackingURL != "" {
		body += " — " + trackingURL
	}
	n.send(ctx, body)
}

// DispatchFailed alerts the operator that a window could not be dispatched
// and needs manual handling.
func (n *Notifier) DispatchFailed(ctx context.Context, restaurant string, closesAt time.Time, cause error) {
	n.send(ctx, fmt.Sprintf("Dispatch FAILED for %s window %s: %v",
		restaurant, closesAt.Format("15:04"), cause))
}

func (n *Notifier) send(ctx context.Context, body string) {
	if n == nil || n.Channel == nil || n.OperatorPhone == "" {
		return
	}
	if _, err := n.Channel.Send(ctx, n.OperatorPhone, body); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("operator notification failed")
	}
}
