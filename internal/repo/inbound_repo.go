// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the
// InboundMessage model used to deduplicate webhook deliveries: messaging
// providers retry webhooks, and a replayed delivery must return the original
// reply instead of advancing the conversation twice.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/treehouse/go-batch-backend/internal/domain"
)

// ErrDuplicate indicates that an inbound message with the same provider SID
// was already recorded.
var ErrDuplicate = errors.New("duplicate")

// GetInboundMessage returns a non-expired dedupe record or ErrNotFound.
func GetInboundMessage(ctx context.Context, db *gorm.DB, providerSID string, now time.Time) (*domain.InboundMessage, error) {
	if strings.TrimSpace(providerSID) == "" {
		return nil, ErrNotFound
	}
	var rec domain.InboundMessage
	err := db.WithContext(ctx).
		Where("provider_sid = ? AND expires_at > ?", providerSID, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &rec, err
}

// CreateInboundMessage inserts a dedupe record and returns ErrDuplicate on a
// unique violation.
func CreateInboundMessage(ctx context.Context, db *gorm.DB, providerSID, sender, reply string, ttl time.Duration) (*domain.InboundMessage, error) {
	now := time.Now().UTC()
	rec := &domain.InboundMessage{
		ID:          uuid.NewString(),
		ProviderSID: providerSID,
		Sender:      sender,
		Reply:       reply,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// PurgeExpiredInbound deletes dedupe rows past their horizon.
func PurgeExpiredInbound(ctx context.Context, db *gorm.DB, now time.Time) error {
	return db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.InboundMessage{}).Error
}

// isUniqueViolation recognizes unique-constraint failures across drivers.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
