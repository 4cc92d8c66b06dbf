package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"service-dispatch/internal/service/orders"
	"service-dispatch/internal/transport/kafka"
)

func TestNewEventHandler_InvalidEventIsPermanent(t *testing.T) {
	t.Parallel()

	h := newEventHandler(orders.NewProcessor(nil, nil, nil))

	// an empty order id never survives redelivery
	err := h(context.Background(), orders.Event{OrderID: ""})
	require.Error(t, err)
	require.True(t, kafka.IsPermanent(err))
}

func TestNewEventHandler_IgnoredStatusIsFine(t *testing.T) {
	t.Parallel()

	h := newEventHandler(orders.NewProcessor(nil, nil, nil))

	// statuses with no registered action are acknowledged without side effects
	err := h(context.Background(), orders.Event{OrderID: "ord-1", Status: "confirmed"})
	require.NoError(t, err)
}
