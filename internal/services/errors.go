// Package services defines the business logic for customers, orders, and
// batch capacity. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/conversation layer.
package services

import "errors"

var (
	// ErrOrderNotFound indicates that the requested order does not exist or
	// is not accessible to the current customer.
	ErrOrderNotFound = errors.New("order not found")

	// ErrSlotFull is returned when the restaurant's capacity for the current
	// window is exhausted.
	ErrSlotFull = errors.New("window capacity exhausted")

	// ErrUnknownRestaurant is returned when the requested restaurant is not
	// in the catalog.
	ErrUnknownRestaurant = errors.New("unknown restaurant")

	// ErrCancelTooLate is returned when a cancellation arrives after the
	// allowed cancellation window has elapsed.
	ErrCancelTooLate = errors.New("too late to cancel")

	// ErrAlreadyCancelled is returned when the order was cancelled before.
	ErrAlreadyCancelled = errors.New("order already cancelled")

	// ErrAlreadyDispatched is returned when an order can no longer change
	// because its window was handed to the courier.
	ErrAlreadyDispatched = errors.New("order already dispatched")

	// ErrOptedOut indicates the customer sent STOP and must not be engaged.
	ErrOptedOut = errors.New("customer opted out")

	// ErrEmptyIdentifier is returned when an order is submitted without an
	// order number or customer name for courier pickup.
	ErrEmptyIdentifier = errors.New("order identifier is empty")

	// ErrEmptyLocation is returned when an order is submitted without a
	// delivery location.
	ErrEmptyLocation = errors.New("delivery location is empty")
)
