package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestToDomain_TrimsAndMapsPayload(t *testing.T) {
	t.Parallel()

	occurred := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	dto := EventDTO{
		OrderID:    "  ord-1  ",
		Status:     " created ",
		From:       "",
		Note:       "first order",
		OccurredAt: occurred,
		Order: &OrderDTO{
			StoreID:           "store-1",
			CustomerID:        "cust-1",
			Total:             1000,
			DeliveryFee:       150,
			Tax:               30,
			ServiceFee:        20,
			CommissionBps:     1000,
			Currency:          "USD",
			PickupLat:         55.75,
			PickupLng:         37.61,
			DropoffLat:        55.76,
			DropoffLng:        37.62,
			PreferredCouriers: []string{"c1", "c2"},
		},
	}

	ev := ToDomain(dto)

	require.Equal(t, "ord-1", ev.OrderID)
	require.Equal(t, "created", ev.Status)
	require.Equal(t, "first order", ev.Note)
	require.Equal(t, occurred, ev.OccurredAt)

	require.NotNil(t, ev.Order)
	require.Equal(t, "store-1", ev.Order.StoreID)
	require.Equal(t, int64(1000), ev.Order.Total)
	require.Equal(t, int32(1000), ev.Order.CommissionBps)
	require.Equal(t, 55.75, ev.Order.Pickup.Lat)
	require.Equal(t, 37.62, ev.Order.Dropoff.Lng)
	require.Equal(t, []string{"c1", "c2"}, ev.Order.PreferredCouriers)
}

func TestToDomain_NoPayload(t *testing.T) {
	t.Parallel()

	ev := ToDomain(EventDTO{OrderID: "ord-2", Status: "delivered", From: "on_the_way"})

	require.Equal(t, "ord-2", ev.OrderID)
	require.Equal(t, "delivered", ev.Status)
	require.Equal(t, "on_the_way", ev.From)
	require.Nil(t, ev.Order)
}
