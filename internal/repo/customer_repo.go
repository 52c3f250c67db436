// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Customer
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a customer is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/treehouse/go-batch-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// GetCustomerByPhone fetches a customer by phone number, or ErrNotFound.
func GetCustomerByPhone(ctx context.Context, db *gorm.DB, phone string) (*domain.Customer, error) {
	var c domain.Customer
	err := db.WithContext(ctx).Where("phone = ?", phone).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetOrCreateCustomer fetches the customer for phone, inserting a fresh row
// on first contact. A concurrent insert racing on the unique phone index is
// resolved by re-reading.
func GetOrCreateCustomer(ctx context.Context, db *gorm.DB, phone string) (*domain.Customer, error) {
	c, err := GetCustomerByPhone(ctx, db, phone)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	fresh := &domain.Customer{
		ID:        uuid.NewString(),
		Phone:     phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(fresh).Error; err != nil {
		if isUniqueViolation(err) {
			return GetCustomerByPhone(ctx, db, phone)
		}
		return nil, err
	}
	return fresh, nil
}

// UpdateCustomerName sets the customer's display name. Returns ErrNotFound
// if no row was updated.
func UpdateCustomerName(ctx context.Context, db *gorm.DB, id, name string) error {
	return updateCustomer(ctx, db, id, map[string]any{"name": name})
}

// UpdateCustomerLocation sets the customer's default drop-off location.
// Returns ErrNotFound if no row was updated.
func UpdateCustomerLocation(ctx context.Context, db *gorm.DB, id, location string) error {
	return updateCustomer(ctx, db, id, map[string]any{"default_location": location})
}

// SetCustomerOptedOut flips the STOP/START opt-out flag. Returns ErrNotFound
// if no row was updated.
func SetCustomerOptedOut(ctx context.Context, db *gorm.DB, id string, optedOut bool) error {
	return updateCustomer(ctx, db, id, map[string]any{"opted_out": optedOut})
}

func updateCustomer(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.Customer{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
