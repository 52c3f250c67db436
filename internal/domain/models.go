// Package domain defines the persistence models for customers, orders, and
// dispatch records. These types are mapped with GORM and form the core data
// layer of the batch-ordering application.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Order status values. Orders move pending → paid → dispatched, or to
// cancelled when the customer cancels inside the allowed window.
const (
	OrderStatusPending    = "pending"
	OrderStatusPaid       = "paid"
	OrderStatusDispatched = "dispatched"
	OrderStatusCancelled  = "cancelled"
)

// Dispatch status values. A dispatch record is created the first time a
// closed window is picked up by the dispatcher and is the idempotency
// anchor for courier requests.
const (
	DispatchStatusPending    = "pending"
	DispatchStatusDispatched = "dispatched"
	DispatchStatusFailed     = "failed"
)

// Customer represents a person ordering over the messaging channel, keyed by
// phone number. The name and default drop-off location are captured during
// the conversational flow and reused on later orders.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Phone: E.164 phone number; unique, used as the conversational identity.
//   - Name: customer name when captured (may be empty).
//   - DefaultLocation: last delivery location the customer gave.
//   - OptedOut: set when the customer sends STOP; suppresses all processing.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Customer struct {
	ID              string    `json:"id"               gorm:"type:char(36);primaryKey"`
	Phone           string    `json:"phone"            gorm:"type:varchar(20);not null;uniqueIndex:ux_customer_phone"`
	Name            string    `json:"name"             gorm:"type:varchar(100)"`
	DefaultLocation string    `json:"default_location" gorm:"type:varchar(120)"`
	OptedOut        bool      `json:"opted_out"        gorm:"not null;default:false"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName returns the database table name for Customer.
func (Customer) TableName() string { return "customers" }

// Order represents one customer's order inside a batching window. The order
// does not carry individual food items: couriers identify packages at pickup
// by order number or customer name, so only the identifier is stored.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - CustomerID: foreign key to the ordering customer (indexed).
//   - Restaurant: canonical restaurant name from the catalog.
//   - WindowClosesAt: close boundary of the window the order belongs to;
//     indexed together with Restaurant for dispatch grouping.
//   - Identifier: order number or customer name handed to the courier.
//   - IdentifierIsName: true when Identifier is a customer name.
//   - DeliveryLocation: drop-off point given by the customer.
//   - FeeCents: delivery fee share quoted to the customer, in cents.
//   - Status: pending | paid | dispatched | cancelled (DB constraint).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM; CreatedAt anchors
//     the cancellation window.
//   - DeletedAt: soft deletion marker (retains row for audit/history).
type Order struct {
	ID               string         `json:"id"                gorm:"type:char(36);primaryKey"`
	CustomerID       string         `json:"customer_id"       gorm:"type:char(36);not null;index:idx_customer_orders"`
	Restaurant       string         `json:"restaurant"        gorm:"type:varchar(100);not null;index:idx_window_orders,priority:1"`
	WindowClosesAt   time.Time      `json:"window_closes_at"  gorm:"not null;index:idx_window_orders,priority:2"`
	Identifier       string         `json:"identifier"        gorm:"type:varchar(120);not null"`
	IdentifierIsName bool           `json:"identifier_is_name" gorm:"not null;default:false"`
	DeliveryLocation string         `json:"delivery_location" gorm:"type:varchar(120);not null"`
	FeeCents         int64          `json:"fee_cents"         gorm:"not null;default:0"`
	Status           string         `json:"status"            gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','paid','dispatched','cancelled')"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-"                 gorm:"index"`

	// Customer is the ordering customer. Orders are cascade-deleted if the
	// customer row is removed.
	Customer Customer `json:"-" gorm:"foreignKey:CustomerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Order.
func (Order) TableName() string { return "orders" }

// Dispatch represents the consolidated courier request for one restaurant in
// one window. At most one row exists per (restaurant, window) pair; a
// non-empty DeliveryID means the courier request was accepted and the window
// must never be dispatched again.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Restaurant / WindowClosesAt: dispatch group key (unique together).
//   - Status: pending | dispatched | failed.
//   - QuoteID / FeeCents / Currency: accepted provider quote.
//   - DeliveryID: provider-assigned delivery id; the idempotency key.
//   - TrackingURL: courier tracking link shared with customers.
//   - Attempts: external call attempts consumed so far.
//   - LastError: terminal provider error kept for operator triage.
type Dispatch struct {
	ID             string    `json:"id"               gorm:"type:char(36);primaryKey"`
	Restaurant     string    `json:"restaurant"       gorm:"type:varchar(100);not null;uniqueIndex:ux_dispatch_window,priority:1"`
	WindowClosesAt time.Time `json:"window_closes_at" gorm:"not null;uniqueIndex:ux_dispatch_window,priority:2"`
	Status         string    `json:"status"           gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','dispatched','failed')"`
	QuoteID        string    `json:"quote_id"         gorm:"type:varchar(64)"`
	FeeCents       int64     `json:"fee_cents"        gorm:"not null;default:0"`
	Currency       string    `json:"currency"         gorm:"type:varchar(8)"`
	DeliveryID     string    `json:"delivery_id"      gorm:"type:varchar(64);index"`
	TrackingURL    string    `json:"tracking_url"     gorm:"type:varchar(255)"`
	Attempts       int       `json:"attempts"         gorm:"not null;default:0"`
	LastError      string    `json:"last_error"       gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName returns the database table name for Dispatch.
func (Dispatch) TableName() string { return "dispatches" }

// InboundMessage records a processed webhook delivery, keyed by the
// provider's message SID. Replayed webhooks return the stored reply instead
// of advancing the conversation a second time.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - ProviderSID: provider message id (unique).
//   - Sender: sending phone number.
//   - Reply: reply text produced when the message was first processed.
//   - CreatedAt: receipt timestamp.
//   - ExpiresAt: dedupe horizon; expired rows are eligible for cleanup.
type InboundMessage struct {
	ID          string    `gorm:"type:char(36);primaryKey"`
	ProviderSID string    `gorm:"column:provider_sid;type:varchar(64);not null;uniqueIndex:ux_inbound_sid"`
	Sender      string    `gorm:"type:varchar(20);not null;index"`
	Reply       string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	ExpiresAt   time.Time `gorm:"not null;index"`
}

// TableName returns the database table name for InboundMessage.
func (InboundMessage) TableName() string { return "inbound_messages" }
