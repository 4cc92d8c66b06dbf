package domain

import "time"

// AssignmentState represents the state of one courier's candidacy for an order.
type AssignmentState string

// List of possible assignment states
const (
	AssignmentAssigned  AssignmentState = "assigned"
	AssignmentAccepted  AssignmentState = "accepted"
	AssignmentInTransit AssignmentState = "in_transit"
	AssignmentDelivered AssignmentState = "delivered"
	AssignmentRejected  AssignmentState = "rejected"
	AssignmentTimedOut  AssignmentState = "timed_out"
	AssignmentCancelled AssignmentState = "cancelled"
	AssignmentFailed    AssignmentState = "failed"
)

// Terminal reports whether the state is final for the assignment row.
// Re-dispatch always creates a new row.
func (s AssignmentState) Terminal() bool {
	switch s {
	case AssignmentDelivered, AssignmentRejected, AssignmentTimedOut,
		AssignmentCancelled, AssignmentFailed:
		return true
	}
	return false
}

// Assignment represents one courier's candidacy for one order. At most one
// assignment per order may be in a non-terminal state at a time.
type Assignment struct {
	ID              string
	OrderID         string
	CourierID       string
	State           AssignmentState
	AssignedAt      time.Time
	ExpiresAt       time.Time
	AcceptedAt      *time.Time
	Pickup          Point
	Dropoff         Point
	DistanceKm      float64
	EstimatedTravel time.Duration
	EstimatedEarn   int64
}

// Expired reports whether the courier response window has elapsed at now.
func (a *Assignment) Expired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}
