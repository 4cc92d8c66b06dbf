package handlers

import "service-dispatch/internal/domain"

func orderFromRequest(req createOrderRequest) *domain.Order {
	return &domain.Order{
		ID:                req.ID,
		StoreID:           req.StoreID,
		CustomerID:        req.CustomerID,
		Total:             req.Total,
		DeliveryFee:       req.DeliveryFee,
		Tax:               req.Tax,
		ServiceFee:        req.ServiceFee,
		CommissionBps:     req.CommissionBps,
		Currency:          req.Currency,
		Pickup:            domain.Point{Lat: req.Pickup.Lat, Lng: req.Pickup.Lng},
		Dropoff:           domain.Point{Lat: req.Dropoff.Lat, Lng: req.Dropoff.Lng},
		PreferredCouriers: req.PreferredCouriers,
	}
}

func orderToResponse(o *domain.Order) orderResponse {
	return orderResponse{
		ID:                o.ID,
		Status:            string(o.Status),
		StoreID:           o.StoreID,
		CustomerID:        o.CustomerID,
		CourierID:         o.CourierID,
		Total:             o.Total,
		DeliveryFee:       o.DeliveryFee,
		Tax:               o.Tax,
		ServiceFee:        o.ServiceFee,
		CommissionBps:     o.CommissionBps,
		Currency:          o.Currency,
		Pickup:            pointDTO{Lat: o.Pickup.Lat, Lng: o.Pickup.Lng},
		Dropoff:           pointDTO{Lat: o.Dropoff.Lat, Lng: o.Dropoff.Lng},
		PreferredCouriers: o.PreferredCouriers,
		CreatedAt:         o.CreatedAt,
		ReadyAt:           o.ReadyAt,
		EstimatedDelivery: o.EstimatedDelivery,
		DeliveredAt:       o.DeliveredAt,
	}
}

func historyToResponse(trail []domain.OrderStatusHistory) []historyEntryResponse {
	out := make([]historyEntryResponse, 0, len(trail))
	for _, h := range trail {
		out = append(out, historyEntryResponse{
			Status:    string(h.Status),
			Note:      h.Note,
			CreatedAt: h.CreatedAt,
		})
	}
	return out
}

func assignmentToResponse(a *domain.Assignment) assignmentResponse {
	return assignmentResponse{
		ID:                a.ID,
		OrderID:           a.OrderID,
		CourierID:         a.CourierID,
		State:             string(a.State),
		AssignedAt:        a.AssignedAt,
		ExpiresAt:         a.ExpiresAt,
		AcceptedAt:        a.AcceptedAt,
		Pickup:            pointDTO{Lat: a.Pickup.Lat, Lng: a.Pickup.Lng},
		Dropoff:           pointDTO{Lat: a.Dropoff.Lat, Lng: a.Dropoff.Lng},
		DistanceKm:        a.DistanceKm,
		EstimatedTravelSc: int64(a.EstimatedTravel.Seconds()),
		EstimatedEarn:     a.EstimatedEarn,
	}
}

func balanceToResponse(b *domain.Balance) balanceResponse {
	return balanceResponse{
		OwnerKind: string(b.Owner.Kind),
		OwnerID:   b.Owner.ID,
		Available: b.Available,
		Pending:   b.Pending,
		Total:     b.Total,
		UpdatedAt: b.UpdatedAt,
	}
}

func transactionToResponse(tx domain.Transaction) transactionResponse {
	return transactionResponse{
		ID:        tx.ID,
		Type:      string(tx.Type),
		Amount:    tx.Amount,
		Currency:  tx.Currency,
		Status:    tx.Status,
		OrderID:   tx.OrderID,
		CreatedAt: tx.CreatedAt,
	}
}
