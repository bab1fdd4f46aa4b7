package orders

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrConflict         = errors.New("products no longer available")
	ErrNotFound         = errors.New("order not found")
	ErrExpired          = errors.New("reservation expired, please reorder")
	ErrAlreadySubmitted = errors.New("payment already submitted")
	ErrAlreadySettled   = errors.New("order already settled")
	ErrNotSubmitted     = errors.New("payment not submitted yet")

	// returned by the expire transition, never surfaced to customers
	ErrNotExpired = errors.New("reservation still active")
	ErrNotLocked  = errors.New("order is not locked")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type UnavailableProduct struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ConflictError names exactly the requested products that could not be
// locked, so the client can drop just those from the cart.
type ConflictError struct {
	Unavailable []UnavailableProduct
}

func (e *ConflictError) Error() string {
	ids := make([]string, 0, len(e.Unavailable))
	for _, p := range e.Unavailable {
		ids = append(ids, p.ID)
	}
	return fmt.Sprintf("products no longer available: %s", strings.Join(ids, ","))
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }
