package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/IBM/sarama"

	"service-dispatch/internal/domain"
)

// Topics names the streams the producer writes to. Status is the order event
// stream the worker itself consumes; Signals carries operational alerts;
// Notify carries courier push notifications. Signals and Notify may be empty,
// which drops the corresponding messages.
type Topics struct {
	Status  string
	Signals string
	Notify  string
}

// Producer publishes order events, operational signals and courier
// notifications. Status messages are keyed by order id so one order's events
// stay on one partition, in order.
type Producer struct {
	sp     sarama.SyncProducer
	topics Topics
}

// NewProducer creates a new Kafka producer. Returns nil when brokers are
// absent, which turns every publish into a no-op.
func NewProducer(brokers []string, topics Topics) (*Producer, error) {
	if len(brokers) == 0 || strings.TrimSpace(topics.Status) == "" {
		return nil, nil
	}

	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true

	sp, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &Producer{sp: sp, topics: topics}, nil
}

func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.sp.Close()
}

// PublishStatusChanged emits the status event to the order stream.
func (p *Producer) PublishStatusChanged(_ context.Context, e domain.StatusChangedEvent) error {
	if p == nil {
		return nil
	}
	return p.send(p.topics.Status, e.OrderID, EventDTO{
		OrderID:    e.OrderID,
		Status:     string(e.To),
		From:       string(e.From),
		Note:       e.Note,
		OccurredAt: e.OccurredAt,
	})
}

// PublishAssignmentExpired emits an operational signal for a timed out offer.
func (p *Producer) PublishAssignmentExpired(_ context.Context, e domain.AssignmentExpiredEvent) error {
	if p == nil || p.topics.Signals == "" {
		return nil
	}
	return p.send(p.topics.Signals, e.OrderID, SignalDTO{
		Kind:         "assignment_expired",
		OrderID:      e.OrderID,
		AssignmentID: e.AssignmentID,
		CourierID:    e.CourierID,
		OccurredAt:   e.OccurredAt,
	})
}

// PublishManualRequired signals operations staff to assign by hand.
func (p *Producer) PublishManualRequired(_ context.Context, e domain.ManualAssignmentRequiredEvent) error {
	if p == nil || p.topics.Signals == "" {
		return nil
	}
	first := e.FirstAssignedAt
	return p.send(p.topics.Signals, e.OrderID, SignalDTO{
		Kind:            "manual_assignment_required",
		OrderID:         e.OrderID,
		Attempts:        e.Attempts,
		FirstAssignedAt: &first,
		OccurredAt:      e.OccurredAt,
	})
}

// PublishOrderNotAccepted signals an order nobody picked up on time.
func (p *Producer) PublishOrderNotAccepted(_ context.Context, e domain.OrderNotAcceptedEvent) error {
	if p == nil || p.topics.Signals == "" {
		return nil
	}
	since := e.ReadySince
	return p.send(p.topics.Signals, e.OrderID, SignalDTO{
		Kind:       "order_not_accepted",
		OrderID:    e.OrderID,
		ReadySince: &since,
		OccurredAt: e.OccurredAt,
	})
}

// NotifyAssignment pushes the offer to the courier's notification stream.
func (p *Producer) NotifyAssignment(_ context.Context, e domain.AssignmentCreatedEvent) error {
	if p == nil || p.topics.Notify == "" {
		return nil
	}
	return p.send(p.topics.Notify, e.CourierID, NotificationDTO{
		CourierID:    e.CourierID,
		AssignmentID: e.AssignmentID,
		OrderID:      e.OrderID,
		ExpiresAt:    e.ExpiresAt,
	})
}

func (p *Producer) send(topic, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", topic, err)
	}
	_, _, err = p.sp.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		return fmt.Errorf("send to %s: %w", topic, err)
	}
	return nil
}
