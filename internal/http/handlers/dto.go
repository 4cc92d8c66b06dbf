package handlers

import "time"

type pointDTO struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type createOrderRequest struct {
	ID                string   `json:"id,omitempty"`
	StoreID           string   `json:"store_id"`
	CustomerID        string   `json:"customer_id"`
	Total             int64    `json:"total"`
	DeliveryFee       int64    `json:"delivery_fee"`
	Tax               int64    `json:"tax"`
	ServiceFee        int64    `json:"service_fee"`
	CommissionBps     int32    `json:"commission_bps"`
	Currency          string   `json:"currency,omitempty"`
	Pickup            pointDTO `json:"pickup"`
	Dropoff           pointDTO `json:"dropoff"`
	PreferredCouriers []string `json:"preferred_couriers,omitempty"`
}

type orderResponse struct {
	ID                string     `json:"id"`
	Status            string     `json:"status"`
	StoreID           string     `json:"store_id"`
	CustomerID        string     `json:"customer_id"`
	CourierID         *string    `json:"courier_id,omitempty"`
	Total             int64      `json:"total"`
	DeliveryFee       int64      `json:"delivery_fee"`
	Tax               int64      `json:"tax"`
	ServiceFee        int64      `json:"service_fee"`
	CommissionBps     int32      `json:"commission_bps"`
	Currency          string     `json:"currency"`
	Pickup            pointDTO   `json:"pickup"`
	Dropoff           pointDTO   `json:"dropoff"`
	PreferredCouriers []string   `json:"preferred_couriers,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	ReadyAt           *time.Time `json:"ready_at,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	DeliveredAt       *time.Time `json:"delivered_at,omitempty"`
}

type historyEntryResponse struct {
	Status    string    `json:"status"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type orderDetailsResponse struct {
	Order   orderResponse          `json:"order"`
	History []historyEntryResponse `json:"history"`
}

type transitionRequest struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

type assignmentResponse struct {
	ID                string     `json:"id"`
	OrderID           string     `json:"order_id"`
	CourierID         string     `json:"courier_id"`
	State             string     `json:"state"`
	AssignedAt        time.Time  `json:"assigned_at"`
	ExpiresAt         time.Time  `json:"expires_at"`
	AcceptedAt        *time.Time `json:"accepted_at,omitempty"`
	Pickup            pointDTO   `json:"pickup"`
	Dropoff           pointDTO   `json:"dropoff"`
	DistanceKm        float64    `json:"distance_km"`
	EstimatedTravelSc int64      `json:"estimated_travel_secs"`
	EstimatedEarn     int64      `json:"estimated_earn"`
}

type assignmentActionRequest struct {
	CourierID string `json:"courier_id"`
	Reason    string `json:"reason,omitempty"`
}

type dispatchRequest struct {
	Exclude []string `json:"exclude,omitempty"`
}

type heartbeatRequest struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Available bool    `json:"available"`
}

type balanceResponse struct {
	OwnerKind string    `json:"owner_kind"`
	OwnerID   string    `json:"owner_id"`
	Available int64     `json:"available"`
	Pending   int64     `json:"pending"`
	Total     int64     `json:"total"`
	UpdatedAt time.Time `json:"updated_at"`
}

type transactionResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	OrderID   *string   `json:"order_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type withdrawRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency,omitempty"`
}
