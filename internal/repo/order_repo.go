// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Order
// model.
//
// Functions:
//
//   - CreateOrder(ctx, db, o) -> error
//     Inserts a pre-populated Order row.
//
//   - GetOrder(ctx, db, id) -> *domain.Order, error
//     Fetches a single order by ID, or ErrNotFound if missing.
//
//   - LatestActiveOrder(ctx, db, customerID) -> *domain.Order, error
//     Returns the customer's most recent non-cancelled order.
//
//   - UpdateOrderStatus(ctx, db, id, from, to) -> error
//     Conditionally advances an order's status; ErrNotFound when the order
//     is missing or no longer in the expected state.
//
//   - ActiveOrdersForWindow(ctx, db, restaurant, closesAt) -> []domain.Order, error
//     Returns the orders the dispatcher consolidates into one courier run.
//
//   - ClosedWindowGroups(ctx, db, before) -> []WindowGroup, error
//     Lists distinct (restaurant, window) pairs with undelivered orders in
//     windows that closed before the given time.
//
//   - CountOrders / ListOrdersPage
//     Pagination pair for the operator order listing endpoint.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/treehouse/go-batch-backend/internal/domain"
)

// WindowGroup identifies one dispatchable (restaurant, window) pair.
type WindowGroup struct {
	Restaurant     string
	WindowClosesAt time.Time
}

// CreateOrder inserts a pre-populated Order row. The caller assigns the ID,
// window, and fee; timestamps are managed by GORM.
func CreateOrder(ctx context.Context, db *gorm.DB, o *domain.Order) error {
	return db.WithContext(ctx).Create(o).Error
}

// GetOrder fetches a single order by its ID. If the record does not exist,
// it returns ErrNotFound. On other DB errors, the raw error is returned.
func GetOrder(ctx context.Context, db *gorm.DB, id string) (*domain.Order, error) {
	var o domain.Order
	if err := db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// LatestActiveOrder returns the customer's most recent order that has not
// been cancelled, or ErrNotFound. Used to resolve bare "cancel" and "pay"
// commands that do not name an order.
func LatestActiveOrder(ctx context.Context, db *gorm.DB, customerID string) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).
		Where("customer_id = ? AND status <> ?", customerID, domain.OrderStatusCancelled).
		Order("created_at desc").
		First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateOrderStatus advances an order from one status to another. The guard
// on the current status makes concurrent transitions race-safe: the loser
// affects zero rows and gets ErrNotFound.
func UpdateOrderStatus(ctx context.Context, db *gorm.DB, id, from, to string) error {
	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ActiveOrdersForWindow returns the undelivered, non-cancelled orders for one
// restaurant's window, oldest first. These become the courier manifest.
func ActiveOrdersForWindow(ctx context.Context, db *gorm.DB, restaurant string, closesAt time.Time) ([]domain.Order, error) {
	var out []domain.Order
	err := db.WithContext(ctx).
		Preload("Customer").
		Where("restaurant = ? AND window_closes_at = ? AND status IN ?",
			restaurant, closesAt, []string{domain.OrderStatusPending, domain.OrderStatusPaid}).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// ClosedWindowGroups lists the distinct (restaurant, window) pairs that still
// have undelivered orders in windows closed before the given time. The
// dispatcher walks this list each tick.
func ClosedWindowGroups(ctx context.Context, db *gorm.DB, before time.Time) ([]WindowGroup, error) {
	var out []WindowGroup
	err := db.WithContext(ctx).
		Model(&domain.Order{}).
		Select("restaurant, window_closes_at").
		Where("window_closes_at < ? AND status IN ?",
			before, []string{domain.OrderStatusPending, domain.OrderStatusPaid}).
		Group("restaurant, window_closes_at").
		Order("window_closes_at asc").
		Scan(&out).Error
	return out, err
}

// MarkWindowDispatched transitions every undelivered order in the group to
// dispatched in a single statement.
func MarkWindowDispatched(ctx context.Context, db *gorm.DB, restaurant string, closesAt time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("restaurant = ? AND window_closes_at = ? AND status IN ?",
			restaurant, closesAt, []string{domain.OrderStatusPending, domain.OrderStatusPaid}).
		Update("status", domain.OrderStatusDispatched).Error
}

// CountOrders returns the total number of orders. On DB error, it returns
// the error.
func CountOrders(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Order{}).Count(&total).Error
	return total, err
}

// ListOrdersPage returns a paginated slice of orders, newest first. Use
// CountOrders to obtain the total for pagination metadata.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListOrdersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Order, error) {
	var out []domain.Order
	err := db.WithContext(ctx).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
