// Package conversation implements the per-customer dialogue that captures
// everything needed to attach an order to a batch window: restaurant, order
// identifier, and delivery location. Each inbound message synchronously
// produces the next reply and next state; no turn ever blocks on another
// customer's session.
package conversation

import "time"

// State is the dialogue position of one session.
type State int

const (
	// StateIdle means no order capture is in progress.
	StateIdle State = iota
	// StateAwaitingIdentifier means the restaurant is known and the session
	// is waiting for an order number (or "no").
	StateAwaitingIdentifier
	// StateAwaitingCustomerName means the customer has no order number and
	// the session is waiting for a pickup name instead.
	StateAwaitingCustomerName
	// StateAwaitingLocation means the identifier is captured and the session
	// is waiting for the delivery location.
	StateAwaitingLocation
	// StateComplete means an order exists; PAY and CANCEL apply to it.
	StateComplete
)

// String returns a stable label for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingIdentifier:
		return "awaiting_identifier"
	case StateAwaitingCustomerName:
		return "awaiting_customer_name"
	case StateAwaitingLocation:
		return "awaiting_location"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// maxHistoryTurns bounds per-session memory; older turns are dropped first.
const maxHistoryTurns = 10

// Turn is one inbound/outbound exchange kept for context.
type Turn struct {
	Inbound  string
	Outbound string
	At       time.Time
}

// Session is the mutable dialogue state for one customer. All access is
// serialized by the Manager; the machine never touches a session without
// holding its lock.
type Session struct {
	Phone string
	State State

	Restaurant       string
	RawOrderText     string
	OrderIdentifier  string
	IdentifierIsName bool
	DeliveryLocation string

	// OrderID links a Complete session to its persisted order; FeeCents is
	// the delivery fee share quoted when capacity was reserved.
	OrderID  string
	FeeCents int64

	CreatedAt time.Time
	UpdatedAt time.Time
	History   []Turn
}

// Reset clears capture progress, returning the session to Idle. History is
// kept so context survives an abandoned order.
func (s *Session) Reset() {
	s.State = StateIdle
	s.Restaurant = ""
	s.RawOrderText = ""
	s.OrderIdentifier = ""
	s.IdentifierIsName = false
	s.DeliveryLocation = ""
	s.OrderID = ""
	s.FeeCents = 0
}

// Record appends one exchange to the bounded history.
func (s *Session) Record(inbound, outbound string, at time.Time) {
	s.History = append(s.History, Turn{Inbound: inbound, Outbound: outbound, At: at})
	if len(s.History) > maxHistoryTurns {
		s.History = s.History[len(s.History)-maxHistoryTurns:]
	}
	s.UpdatedAt = at
}
