package orders

import (
	"time"

	"service-dispatch/internal/domain"
)

// Event is a single order event from the status stream.
type Event struct {
	OrderID    string        `json:"order_id"`
	Status     string        `json:"status"`
	From       string        `json:"from,omitempty"`
	Note       string        `json:"note,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
	Order      *OrderPayload `json:"order,omitempty"`
}

// OrderPayload carries the order body on registration events.
type OrderPayload struct {
	StoreID           string       `json:"store_id"`
	CustomerID        string       `json:"customer_id"`
	Total             int64        `json:"total"`
	DeliveryFee       int64        `json:"delivery_fee"`
	Tax               int64        `json:"tax"`
	ServiceFee        int64        `json:"service_fee"`
	CommissionBps     int32        `json:"commission_bps"`
	Currency          string       `json:"currency"`
	Pickup            PointPayload `json:"pickup"`
	Dropoff           PointPayload `json:"dropoff"`
	PreferredCouriers []string     `json:"preferred_couriers,omitempty"`
}

// PointPayload is a lat/lng pair on the wire.
type PointPayload struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ToOrder maps the payload to a domain order carrying the event's order id.
func (p *OrderPayload) ToOrder(orderID string) *domain.Order {
	return &domain.Order{
		ID:                orderID,
		StoreID:           p.StoreID,
		CustomerID:        p.CustomerID,
		Total:             p.Total,
		DeliveryFee:       p.DeliveryFee,
		Tax:               p.Tax,
		ServiceFee:        p.ServiceFee,
		CommissionBps:     p.CommissionBps,
		Currency:          p.Currency,
		Pickup:            domain.Point{Lat: p.Pickup.Lat, Lng: p.Pickup.Lng},
		Dropoff:           domain.Point{Lat: p.Dropoff.Lat, Lng: p.Dropoff.Lng},
		PreferredCouriers: p.PreferredCouriers,
	}
}

// statusChanged maps the event to the settlement listener's input.
func (e Event) statusChanged() domain.StatusChangedEvent {
	return domain.StatusChangedEvent{
		OrderID:    e.OrderID,
		From:       domain.OrderStatus(e.From),
		To:         domain.OrderStatus(e.Status),
		Note:       e.Note,
		OccurredAt: e.OccurredAt,
	}
}
