package orders

import (
	"context"
	"errors"
	"fmt"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
)

// Processor routes order status events to the state machine, the dispatch
// engine and the settlement listener. Events are at-least-once; every handler
// it calls tolerates redelivery, so the Processor itself stays stateless.
type Processor struct {
	state      StatePort
	dispatcher DispatchPort
	settlement SettlementPort
	factory    *actionFactory
}

// NewProcessor creates a new orders.Processor.
func NewProcessor(state StatePort, dispatcher DispatchPort, settlement SettlementPort) *Processor {
	p := &Processor{
		state:      state,
		dispatcher: dispatcher,
		settlement: settlement,
	}
	p.factory = newActionFactory(p.onCreated, p.onSettled, p.onReady, p.onCancelRequested)
	return p
}

// Handle processes a single order event. Unknown statuses are skipped.
func (p *Processor) Handle(ctx context.Context, e Event) error {
	if e.OrderID == "" {
		return fmt.Errorf("%w: event without order id", apperr.Invalid)
	}
	fn, ok := p.factory.get(e.Status)
	if !ok {
		return nil
	}
	return fn(ctx, e)
}

func (p *Processor) onCreated(ctx context.Context, e Event) error {
	if e.Order == nil {
		return fmt.Errorf("%w: created event without order payload", apperr.Invalid)
	}
	_, err := p.state.Register(ctx, e.Order.ToOrder(e.OrderID))
	if errors.Is(err, apperr.Conflict) {
		// redelivered event, the order is already registered
		return nil
	}
	return err
}

func (p *Processor) onSettled(ctx context.Context, e Event) error {
	return p.settlement.HandleStatusChanged(ctx, e.statusChanged())
}

func (p *Processor) onReady(ctx context.Context, e Event) error {
	_, err := p.dispatcher.Dispatch(ctx, e.OrderID, nil)
	if errors.Is(err, apperr.NoAvailableCourier) || errors.Is(err, apperr.Conflict) {
		// the sweep loops keep retrying ready orders with no courier
		return nil
	}
	return err
}

func (p *Processor) onCancelRequested(ctx context.Context, e Event) error {
	_, err := p.state.RequestTransition(ctx, e.OrderID, domain.OrderCancelled, e.Note)
	if err == nil {
		return nil
	}
	if errors.Is(err, apperr.TerminalState) || errors.Is(err, apperr.NotFound) {
		return nil
	}
	if _, ok := apperr.IsInvalidTransition(err); ok {
		// cancellation raced with pickup, the order is already on the way
		return nil
	}
	return err
}
