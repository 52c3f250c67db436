package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/treehouse/go-batch-backend/internal/batching"
	"github.com/treehouse/go-batch-backend/internal/domain"
	"github.com/treehouse/go-batch-backend/internal/extract"
	"github.com/treehouse/go-batch-backend/internal/msg"
	"github.com/treehouse/go-batch-backend/internal/payments"
	"github.com/treehouse/go-batch-backend/internal/services"
)

const (
	replyFallback = "Sorry, something went wrong on our side. Please try again in a moment."
	replyHelp     = "Text ORDER followed by what you want and the restaurant (e.g. \"order 2 burritos from Chipotle\"). " +
		"MENU lists restaurants and remaining batch spots, PAY gets your payment link, CANCEL cancels within 10 minutes, STOP unsubscribes."
	replyStopped   = "You're unsubscribed and won't receive further messages. Text START to opt back in."
	replyRestarted = "Welcome back! Text MENU to see what's open right now."
)

// Machine advances conversation sessions. One Machine serves all customers;
// per-session serialization comes from the Manager.
type Machine struct {
	Sessions  *Manager
	Customers *services.CustomerService
	Orders    *services.OrderService
	Extractor extract.Extractor
	Payments  payments.LinkProvider
	Notifier  *msg.Notifier

	// Now overrides the clock in tests; nil means time.Now.
	Now func() time.Time
}

func (m *Machine) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Handle processes one inbound message and returns the reply to send back.
// An empty reply means the sender should not be engaged (opted out).
func (m *Machine) Handle(ctx context.Context, sender, text string) string {
	text = strings.TrimSpace(text)
	lower := strings.ToLower(text)

	customer, err := m.Customers.Identify(ctx, sender)
	if err != nil {
		if errors.Is(err, services.ErrOptedOut) {
			if lower == "start" {
				if err := m.Customers.SetOptedOut(ctx, customer.ID, false); err != nil {
					return replyFallback
				}
				return replyRestarted
			}
			return "" // opted out: stay silent
		}
		log.Ctx(ctx).Error().Err(err).Msg("customer identification failed")
		return replyFallback
	}

	var reply string
	m.Sessions.Do(sender, func(s *Session) {
		reply = m.step(ctx, customer, s, text, lower)
		s.Record(text, reply, m.now())
	})
	return reply
}

// step runs one transition. The session lock is held by the caller.
func (m *Machine) step(ctx context.Context, customer *domain.Customer, s *Session, text, lower string) string {
	// Commands honored in every state.
	switch lower {
	case "stop", "unsubscribe":
		if err := m.Customers.SetOptedOut(ctx, customer.ID, true); err != nil {
			return replyFallback
		}
		s.Reset()
		m.Sessions.Drop(s.Phone)
		return replyStopped
	case "help", "info":
		return replyHelp
	}
	if text == "" {
		return replyHelp
	}

	switch s.State {
	case StateIdle:
		return m.stepIdle(ctx, customer, s, text, lower)
	case StateAwaitingIdentifier:
		return m.stepAwaitingIdentifier(s, text, lower)
	case StateAwaitingCustomerName:
		return m.stepAwaitingName(ctx, customer, s, text)
	case StateAwaitingLocation:
		return m.stepAwaitingLocation(ctx, customer, s, text)
	case StateComplete:
		return m.stepComplete(ctx, customer, s, text, lower)
	default:
		s.Reset()
		return replyHelp
	}
}

func (m *Machine) stepIdle(ctx context.Context, customer *domain.Customer, s *Session, text, lower string) string {
	switch lower {
	case "menu", "batches", "restaurants":
		return m.menuReply(ctx)
	case "cancel":
		return m.cancel(ctx, customer, s, "")
	case "pay":
		return "No open order to pay for. Text ORDER to start one."
	}

	restaurant, ok := m.Extractor.ExtractRestaurant(ctx, text)
	if !ok {
		return "I couldn't tell which restaurant that's for. " + m.menuReply(ctx)
	}
	s.State = StateAwaitingIdentifier
	s.Restaurant = restaurant
	s.RawOrderText = text
	return fmt.Sprintf("Got it — %s. Do you have an order number from the restaurant? Reply with the number, or NO if you don't.", restaurant)
}

func (m *Machine) stepAwaitingIdentifier(s *Session, text, lower string) string {
	if looksLikeNo(lower) {
		s.State = StateAwaitingCustomerName
		return "No problem. What name is the order under?"
	}
	s.OrderIdentifier = text
	s.IdentifierIsName = false
	s.State = StateAwaitingLocation
	return "Thanks! Where should we deliver it?"
}

func (m *Machine) stepAwaitingName(ctx context.Context, customer *domain.Customer, s *Session, text string) string {
	// The captured name ends up on the courier manifest, so normalize the
	// casing here rather than storing the raw message text.
	name := extract.DisplayName(text)
	s.OrderIdentifier = name
	s.IdentifierIsName = true
	s.State = StateAwaitingLocation
	if err := m.Customers.SetName(ctx, customer.ID, name); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("saving customer name failed")
	}
	prompt := "Thanks! Where should we deliver it?"
	if customer.DefaultLocation != "" {
		prompt += fmt.Sprintf(" (Last time: %s.)", customer.DefaultLocation)
	}
	return prompt
}

func (m *Machine) stepAwaitingLocation(ctx context.Context, customer *domain.Customer, s *Session, text string) string {
	order, slot, err := m.Orders.PlaceOrder(ctx, customer, s.Restaurant, s.OrderIdentifier, s.IdentifierIsName, text)
	if err != nil {
		if errors.Is(err, services.ErrSlotFull) {
			restaurant := s.Restaurant
			s.Reset()
			return fmt.Sprintf("Sorry, the %s batch closing at %s is full. The next window opens at %s — text ORDER then, or pick another restaurant (MENU).",
				restaurant, slot.Window.ClosesAt.Local().Format("3:04 PM"), nextOpenAfter(slot.Window).Local().Format("3:04 PM"))
		}
		log.Ctx(ctx).Error().Err(err).Str("restaurant", s.Restaurant).Msg("order placement failed")
		return replyFallback
	}

	if err := m.Customers.SetDefaultLocation(ctx, customer.ID, text); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("saving default location failed")
	}
	m.Notifier.OrderPlaced(ctx, order, customer.Phone)

	s.DeliveryLocation = text
	s.OrderID = order.ID
	s.FeeCents = slot.FeeCents
	s.State = StateComplete
	return fmt.Sprintf("You're in! %s order for %s, delivery to %s around %s. Your delivery share is $%.2f — reply PAY for your payment link, or CANCEL within 10 minutes.",
		order.Restaurant, s.OrderIdentifier, text, slot.Window.ReadyAt.Local().Format("3:04 PM"), float64(slot.FeeCents)/100)
}

func (m *Machine) stepComplete(ctx context.Context, customer *domain.Customer, s *Session, text, lower string) string {
	switch lower {
	case "pay":
		link := m.Payments.PaymentLink(s.OrderID, s.FeeCents)
		if link == "" {
			return "Payments aren't set up yet — the operator will text you."
		}
		return fmt.Sprintf("Pay your $%.2f delivery share here: %s", float64(s.FeeCents)/100, link)
	case "cancel":
		return m.cancel(ctx, customer, s, s.OrderID)
	case "menu", "batches", "restaurants":
		return m.menuReply(ctx)
	}

	// A completed session can start another order straight away.
	if restaurant, ok := m.Extractor.ExtractRestaurant(ctx, text); ok {
		s.Reset()
		s.State = StateAwaitingIdentifier
		s.Restaurant = restaurant
		s.RawOrderText = text
		return fmt.Sprintf("Starting a new order for %s. Do you have an order number? Reply with it, or NO.", restaurant)
	}
	return "Your order is in. Reply PAY for the payment link, CANCEL within 10 minutes, or text a new order."
}

func (m *Machine) cancel(ctx context.Context, customer *domain.Customer, s *Session, orderID string) string {
	order, err := m.Orders.CancelOrder(ctx, customer.ID, orderID)
	switch {
	case err == nil:
		s.Reset()
		return fmt.Sprintf("Cancelled your %s order. Text ORDER whenever you're hungry again.", order.Restaurant)
	case errors.Is(err, services.ErrCancelTooLate):
		return "Too late to cancel — the 10 minute cancellation window has passed and your order is locked into the batch."
	case errors.Is(err, services.ErrAlreadyDispatched):
		return "Too late to cancel — your batch is already out for delivery."
	case errors.Is(err, services.ErrAlreadyCancelled):
		s.Reset()
		return "That order was already cancelled."
	case errors.Is(err, services.ErrOrderNotFound):
		return "No order of yours to cancel. Text ORDER to start one."
	default:
		log.Ctx(ctx).Error().Err(err).Msg("cancel failed")
		return replyFallback
	}
}

// menuReply lists restaurants with remaining capacity in the open window.
func (m *Machine) menuReply(ctx context.Context) string {
	w, slots := m.Orders.CurrentSlots(ctx)
	var b strings.Builder
	fmt.Fprintf(&b, "Ordering window closes at %s. Open batches:", w.ClosesAt.Local().Format("3:04 PM"))
	for _, slot := range slots {
		fmt.Fprintf(&b, "\n- %s (%d of %d spots left)", slot.Restaurant, slot.Max-slot.Current, slot.Max)
	}
	b.WriteString("\nText ORDER plus what you want to grab a spot.")
	return b.String()
}

// looksLikeNo detects "I don't have an order number" style answers.
func looksLikeNo(lower string) bool {
	switch lower {
	case "no", "nope", "nah", "n", "none", "nothing", "not yet":
		return true
	}
	return strings.Contains(lower, "don't have") || strings.Contains(lower, "dont have") ||
		strings.Contains(lower, "no number") || strings.Contains(lower, "no order number")
}

// nextOpenAfter approximates when ordering reopens after a full window.
func nextOpenAfter(w batching.Window) time.Time {
	return w.ClosesAt.Add(15 * time.Minute)
}
