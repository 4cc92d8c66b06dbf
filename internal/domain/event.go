package domain

import "time"

// StatusChangedEvent is raised after an order status transition commits.
type StatusChangedEvent struct {
	OrderID    string
	From       OrderStatus
	To         OrderStatus
	Note       string
	OccurredAt time.Time
}

// AssignmentCreatedEvent is raised when a courier is dispatched to an order.
type AssignmentCreatedEvent struct {
	AssignmentID string
	OrderID      string
	CourierID    string
	ExpiresAt    time.Time
}

// AssignmentExpiredEvent is raised when a courier fails to respond within the
// response window and the assignment times out.
type AssignmentExpiredEvent struct {
	AssignmentID string
	OrderID      string
	CourierID    string
	OccurredAt   time.Time
}

// ManualAssignmentRequiredEvent signals operations staff that automatic
// redispatch has exhausted its time budget for an order.
type ManualAssignmentRequiredEvent struct {
	OrderID         string
	Attempts        int
	FirstAssignedAt time.Time
	OccurredAt      time.Time
}

// OrderNotAcceptedEvent flags an order that sat ready for delivery past the
// store-confirmation window without a single dispatch attempt.
type OrderNotAcceptedEvent struct {
	OrderID    string
	ReadySince time.Time
	OccurredAt time.Time
}
