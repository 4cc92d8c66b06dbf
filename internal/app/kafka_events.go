package app

import (
	"context"
	"errors"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/service/orders"
	"service-dispatch/internal/transport/kafka"
)

// newEventHandler adapts the order event processor to the Kafka consumer.
// Validation failures are permanent: redelivering a malformed event can never
// fix it, so the consumer skips the message instead of looping on it.
func newEventHandler(p *orders.Processor) kafka.HandleFunc {
	return func(ctx context.Context, event orders.Event) error {
		err := p.Handle(ctx, event)
		if errors.Is(err, apperr.Invalid) {
			return kafka.Permanent(err)
		}
		return err
	}
}
