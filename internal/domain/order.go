package domain

import "time"

// OrderStatus represents the lifecycle status of an order.
type OrderStatus string

// List of possible order statuses
const (
	OrderPending          OrderStatus = "pending"
	OrderConfirmed        OrderStatus = "confirmed"
	OrderProcessing       OrderStatus = "processing"
	OrderReadyForDelivery OrderStatus = "ready_for_delivery"
	OrderOnTheWay         OrderStatus = "on_the_way"
	OrderDelivered        OrderStatus = "delivered"
	OrderCancelled        OrderStatus = "cancelled"
)

// orderTransitions is the authoritative transition table. An order status only
// moves along these edges; cancellation is reachable from every state except
// on_the_way and delivered.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:          {OrderConfirmed, OrderCancelled},
	OrderConfirmed:        {OrderProcessing, OrderCancelled},
	OrderProcessing:       {OrderReadyForDelivery, OrderCancelled},
	OrderReadyForDelivery: {OrderOnTheWay, OrderCancelled},
	OrderOnTheWay:         {OrderDelivered},
}

// Valid checks if the OrderStatus is a known status value.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderProcessing, OrderReadyForDelivery,
		OrderOnTheWay, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is permitted from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// CanTransition reports whether s -> to is present in the transition table.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the list of legal next statuses from s.
func (s OrderStatus) NextStatuses() []OrderStatus {
	next := orderTransitions[s]
	out := make([]OrderStatus, len(next))
	copy(out, next)
	return out
}

// Point is a geographic coordinate in decimal degrees.
type Point struct {
	Lat float64
	Lng float64
}

// Valid checks the point is a plausible lat/lng pair.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Order represents a purchase moving through the delivery lifecycle.
// Monetary fields are integer minor-currency units.
type Order struct {
	ID                string
	Status            OrderStatus
	StoreID           string
	CustomerID        string
	CourierID         *string
	Total             int64
	DeliveryFee       int64
	Tax               int64
	ServiceFee        int64
	CommissionBps     int32
	Currency          string
	Pickup            Point
	Dropoff           Point
	PreferredCouriers []string
	CreatedAt         time.Time
	ReadyAt           *time.Time
	EstimatedDelivery *time.Time
	DeliveredAt       *time.Time
}

// Commission returns the store's commission cut of the order total.
func (o *Order) Commission() int64 {
	return o.Total * int64(o.CommissionBps) / 10000
}

// PayoutAmount returns the amount moved from the store to the courier while
// the order is in transit: total minus the store commission.
func (o *Order) PayoutAmount() int64 {
	return o.Total - o.Commission()
}

// OrderStatusHistory is one append-only row of an order's status trail.
type OrderStatusHistory struct {
	ID        int64
	OrderID   string
	Status    OrderStatus
	Note      string
	CreatedAt time.Time
}
