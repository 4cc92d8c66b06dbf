package kafka

import (
	"strings"
	"time"

	"service-dispatch/internal/service/orders"
)

// EventDTO is the wire form of an order status event.
type EventDTO struct {
	OrderID    string    `json:"order_id"`
	Status     string    `json:"status"`
	From       string    `json:"from,omitempty"`
	Note       string    `json:"note,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Order      *OrderDTO `json:"order,omitempty"`
}

// OrderDTO carries the order body on registration events.
type OrderDTO struct {
	StoreID           string   `json:"store_id"`
	CustomerID        string   `json:"customer_id"`
	Total             int64    `json:"total"`
	DeliveryFee       int64    `json:"delivery_fee"`
	Tax               int64    `json:"tax"`
	ServiceFee        int64    `json:"service_fee"`
	CommissionBps     int32    `json:"commission_bps"`
	Currency          string   `json:"currency"`
	PickupLat         float64  `json:"pickup_lat"`
	PickupLng         float64  `json:"pickup_lng"`
	DropoffLat        float64  `json:"dropoff_lat"`
	DropoffLng        float64  `json:"dropoff_lng"`
	PreferredCouriers []string `json:"preferred_couriers,omitempty"`
}

// SignalDTO is the wire form of an operational signal.
type SignalDTO struct {
	Kind            string     `json:"kind"`
	OrderID         string     `json:"order_id"`
	AssignmentID    string     `json:"assignment_id,omitempty"`
	CourierID       string     `json:"courier_id,omitempty"`
	Attempts        int        `json:"attempts,omitempty"`
	FirstAssignedAt *time.Time `json:"first_assigned_at,omitempty"`
	ReadySince      *time.Time `json:"ready_since,omitempty"`
	OccurredAt      time.Time  `json:"occurred_at"`
}

// NotificationDTO is the wire form of a courier push notification.
type NotificationDTO struct {
	CourierID    string    `json:"courier_id"`
	AssignmentID string    `json:"assignment_id"`
	OrderID      string    `json:"order_id"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ToDomain converts EventDTO to orders.Event.
func ToDomain(dto EventDTO) orders.Event {
	e := orders.Event{
		OrderID:    strings.TrimSpace(dto.OrderID),
		Status:     strings.TrimSpace(dto.Status),
		From:       strings.TrimSpace(dto.From),
		Note:       dto.Note,
		OccurredAt: dto.OccurredAt,
	}
	if dto.Order != nil {
		e.Order = &orders.OrderPayload{
			StoreID:           dto.Order.StoreID,
			CustomerID:        dto.Order.CustomerID,
			Total:             dto.Order.Total,
			DeliveryFee:       dto.Order.DeliveryFee,
			Tax:               dto.Order.Tax,
			ServiceFee:        dto.Order.ServiceFee,
			CommissionBps:     dto.Order.CommissionBps,
			Currency:          dto.Order.Currency,
			Pickup:            orders.PointPayload{Lat: dto.Order.PickupLat, Lng: dto.Order.PickupLng},
			Dropoff:           orders.PointPayload{Lat: dto.Order.DropoffLat, Lng: dto.Order.DropoffLng},
			PreferredCouriers: dto.Order.PreferredCouriers,
		}
	}
	return e
}
