package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventspark/backend-booking/internal/domain"
	"github.com/eventspark/backend-booking/pkg/kafka"
	"github.com/eventspark/backend-booking/pkg/logger"
)

// Notifier publishes booking lifecycle notifications. Publishing is
// best-effort: lifecycle transitions never fail because a notification
// could not be delivered.
type Notifier interface {
	// NotifyCheckoutStarted announces a new pending booking
	NotifyCheckoutStarted(ctx context.Context, booking *domain.Booking)

	// NotifyConfirmed announces a confirmed booking
	NotifyConfirmed(ctx context.Context, booking *domain.Booking)

	// NotifyAborted announces a booking aborted on failed or expired payment
	NotifyAborted(ctx context.Context, booking *domain.Booking)

	// NotifyCancelled announces a cancelled booking
	NotifyCancelled(ctx context.Context, booking *domain.Booking)

	// NotifyRefundPending announces a cancellation awaiting manual refund
	NotifyRefundPending(ctx context.Context, booking *domain.Booking)

	// Close releases the underlying producer
	Close() error
}

// KafkaNotifier implements Notifier on top of a Kafka producer
type KafkaNotifier struct {
	producer *kafka.Producer
	topic    string
}

// KafkaNotifierConfig contains configuration for the Kafka notifier
type KafkaNotifierConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// NewKafkaNotifier creates a notifier backed by Kafka
func NewKafkaNotifier(ctx context.Context, cfg *KafkaNotifierConfig) (*KafkaNotifier, error) {
	if cfg == nil || len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = "booking-notifications"
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "backend-booking"
	}

	producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
		Brokers:  cfg.Brokers,
		ClientID: clientID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &KafkaNotifier{producer: producer, topic: topic}, nil
}

func (n *KafkaNotifier) NotifyCheckoutStarted(ctx context.Context, booking *domain.Booking) {
	n.publish(ctx, domain.BookingEventCheckoutStarted, booking)
}

func (n *KafkaNotifier) NotifyConfirmed(ctx context.Context, booking *domain.Booking) {
	n.publish(ctx, domain.BookingEventConfirmed, booking)
}

func (n *KafkaNotifier) NotifyAborted(ctx context.Context, booking *domain.Booking) {
	n.publish(ctx, domain.BookingEventAborted, booking)
}

func (n *KafkaNotifier) NotifyCancelled(ctx context.Context, booking *domain.Booking) {
	n.publish(ctx, domain.BookingEventCancelled, booking)
}

func (n *KafkaNotifier) NotifyRefundPending(ctx context.Context, booking *domain.Booking) {
	n.publish(ctx, domain.BookingEventRefundPending, booking)
}

// Close flushes and closes the producer
func (n *KafkaNotifier) Close() error {
	if n.producer != nil {
		n.producer.Close()
	}
	return nil
}

func (n *KafkaNotifier) publish(ctx context.Context, eventType domain.BookingEventType, booking *domain.Booking) {
	event := domain.NewBookingEvent(eventType, booking, uuid.New().String())

	value, err := json.Marshal(event)
	if err != nil {
		logger.Get().Error("failed to marshal booking notification",
			zap.String("type", string(eventType)),
			zap.String("booking_id", booking.ID),
			zap.Error(err),
		)
		return
	}

	// Delivery is asynchronous; failures are logged, never surfaced
	n.producer.PublishAsync(ctx, n.topic, event.Key(), value, func(err error) {
		if err != nil {
			logger.Get().Error("failed to publish booking notification",
				zap.String("type", string(eventType)),
				zap.String("booking_id", booking.ID),
				zap.Error(err),
			)
		}
	})
}

// NoOpNotifier is a no-op implementation of Notifier for testing and
// for running without Kafka
type NoOpNotifier struct{}

// NewNoOpNotifier creates a new no-op notifier
func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

func (n *NoOpNotifier) NotifyCheckoutStarted(ctx context.Context, booking *domain.Booking) {}
func (n *NoOpNotifier) NotifyConfirmed(ctx context.Context, booking *domain.Booking)       {}
func (n *NoOpNotifier) NotifyAborted(ctx context.Context, booking *domain.Booking)         {}
func (n *NoOpNotifier) NotifyCancelled(ctx context.Context, booking *domain.Booking)       {}
func (n *NoOpNotifier) NotifyRefundPending(ctx context.Context, booking *domain.Booking)   {}
func (n *NoOpNotifier) Close() error                                                       { return nil }

var _ Notifier = (*KafkaNotifier)(nil)
var _ Notifier = (*NoOpNotifier)(nil)
