package service

import (
	"errors"
	"fmt"

	"rentalhub/internal/database"
)

type Kind string

const (
	KindValidation      Kind = "validation"
	KindUnauthorized    Kind = "unauthorized"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindTooManyRequests Kind = "too_many_requests"
)

// Error is a failure the caller is allowed to see. Anything else is internal.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

func validationError(msg string) error   { return newError(KindValidation, msg) }
func unauthorizedError(msg string) error { return newError(KindUnauthorized, msg) }
func forbiddenError(msg string) error    { return newError(KindForbidden, msg) }
func notFoundError(msg string) error     { return newError(KindNotFound, msg) }
func conflictError(msg string) error     { return newError(KindConflict, msg) }

// AsError extracts a service error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err is a service error of kind.
func IsKind(err error, kind Kind) bool {
	e, ok := AsError(err)
	return ok && e.Kind == kind
}

// storeError translates storage sentinels; unknown errors are returned wrapped as internal.
func storeError(err error, notFound, op string) error {
	if err == nil {
		return nil
	}
	var kind Kind
	msg := ""
	switch {
	case errors.Is(err, database.ErrNotFound):
		kind, msg = KindNotFound, notFound
	case errors.Is(err, database.ErrInsufficientQuantity):
		kind, msg = KindValidation, "Equipment is not available in the requested quantity"
	case errors.Is(err, database.ErrQuantityExceedsTotal):
		kind, msg = KindValidation, "Available quantity cannot exceed total quantity"
	case errors.Is(err, database.ErrQuantityBelowReserved):
		kind, msg = KindValidation, "Total quantity cannot be less than the units currently rented"
	case errors.Is(err, database.ErrDuplicateEmail):
		kind, msg = KindConflict, "User already exists with this email"
	case errors.Is(err, database.ErrEquipmentInUse):
		kind, msg = KindConflict, "Equipment has open rentals"
	case errors.Is(err, database.ErrDeliveryExists):
		kind, msg = KindConflict, "Delivery already exists for this rental"
	case errors.Is(err, database.ErrInvalidTransition):
		kind, msg = KindValidation, "Invalid status transition"
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}
