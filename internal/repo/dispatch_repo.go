// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Dispatch
// model, the idempotency anchor for courier requests.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/treehouse/go-batch-backend/internal/domain"
)

// GetOrCreateDispatch returns the dispatch record for (restaurant, closesAt),
// inserting a pending row on first sight. The unique index on the pair means
// two racing dispatcher ticks converge on the same row.
func GetOrCreateDispatch(ctx context.Context, db *gorm.DB, restaurant string, closesAt time.Time) (*domain.Dispatch, error) {
	var d domain.Dispatch
	err := db.WithContext(ctx).
		Where("restaurant = ? AND window_closes_at = ?", restaurant, closesAt).
		First(&d).Error
	if err == nil {
		return &d, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fresh := &domain.Dispatch{
		ID:             uuid.NewString(),
		Restaurant:     restaurant,
		WindowClosesAt: closesAt,
		Status:         domain.DispatchStatusPending,
	}
	if err := db.WithContext(ctx).Create(fresh).Error; err != nil {
		if isUniqueViolation(err) {
			err = db.WithContext(ctx).
				Where("restaurant = ? AND window_closes_at = ?", restaurant, closesAt).
				First(&d).Error
			if err != nil {
				return nil, err
			}
			return &d, nil
		}
		return nil, err
	}
	return fresh, nil
}

// MarkDispatched records an accepted courier request. Setting DeliveryID is
// the point of no return: subsequent ticks see it and skip the group.
func MarkDispatched(ctx context.Context, db *gorm.DB, id string, d *domain.Dispatch) error {
	res := db.WithContext(ctx).
		Model(&domain.Dispatch{}).
		Where("id = ? AND (delivery_id IS NULL OR delivery_id = '')", id).
		Updates(map[string]any{
			"status":       domain.DispatchStatusDispatched,
			"quote_id":     d.QuoteID,
			"fee_cents":    d.FeeCents,
			"currency":     d.Currency,
			"delivery_id":  d.DeliveryID,
			"tracking_url": d.TrackingURL,
			"attempts":     d.Attempts,
			"last_error":   "",
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkDispatchFailed records a terminal provider failure for operator triage.
func MarkDispatchFailed(ctx context.Context, db *gorm.DB, id string, attempts int, lastErr string) error {
	return db.WithContext(ctx).
		Model(&domain.Dispatch{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     domain.DispatchStatusFailed,
			"attempts":   attempts,
			"last_error": lastErr,
		}).Error
}
