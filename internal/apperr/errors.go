package apperr

import (
	"errors"
	"fmt"

	"service-dispatch/internal/domain"
)

// Invalid is returned when the input fails domain validation.
var Invalid = errors.New("invalid input")

// Conflict indicates a uniqueness or state conflict (HTTP 409).
var Conflict = errors.New("conflict")

// NotFound indicates that the requested resource does not exist.
var NotFound = errors.New("not found")

// TerminalState is returned when a transition is requested for an order that
// is already delivered or cancelled.
var TerminalState = errors.New("order is in a terminal state")

// NoAvailableCourier is the expected outcome of dispatch when no eligible
// courier exists; the order stays ready for delivery and is retried later.
var NoAvailableCourier = errors.New("no available courier")

// AssignmentExpiredOrTaken is returned when a courier responds to an
// assignment that expired or already moved past the assigned state.
var AssignmentExpiredOrTaken = errors.New("assignment expired or taken")

// InvalidTransitionError is returned for a status transition that is not in
// the transition table. It carries the legal next states for client display.
type InvalidTransitionError struct {
	Current   domain.OrderStatus
	Requested domain.OrderStatus
	Allowed   []domain.OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s (allowed: %v)", e.Current, e.Requested, e.Allowed)
}

// IsInvalidTransition extracts an InvalidTransitionError from an error chain.
func IsInvalidTransition(err error) (*InvalidTransitionError, bool) {
	var ite *InvalidTransitionError
	ok := errors.As(err, &ite)
	return ite, ok
}
