package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/models"
)

// EventType represents the type of checkout event.
type EventType string

const (
	EventTypeOrderCreated          EventType = "order.created"
	EventTypeOrderPaymentSucceeded EventType = "order.payment_succeeded"
	EventTypeOrderPaymentFailed    EventType = "order.payment_failed"
	EventTypeOrderCompleted        EventType = "order.completed"
)

// CheckoutEvent is the envelope written to the checkout topic.
type CheckoutEvent struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	OrderID       string          `json:"order_id"`
	UserID        string          `json:"user_id"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes checkout events to Kafka.
type KafkaPublisher struct {
	writer messageWriter
	logger *logging.Logger
}

// NewKafkaPublisher creates a publisher writing to the checkout topic.
func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.CheckoutTopic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaPublisher(writer)
}

func newKafkaPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{
		writer: w,
		logger: logging.NewLogger("checkout-publisher"),
	}
}

func (p *KafkaPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	return p.publishOrder(ctx, EventTypeOrderCreated, order, order)
}

func (p *KafkaPublisher) PublishPaymentSucceeded(ctx context.Context, order *models.Order, payment *models.Payment) error {
	return p.publishOrder(ctx, EventTypeOrderPaymentSucceeded, order, paymentPayload(order, payment))
}

func (p *KafkaPublisher) PublishPaymentFailed(ctx context.Context, order *models.Order, payment *models.Payment) error {
	return p.publishOrder(ctx, EventTypeOrderPaymentFailed, order, paymentPayload(order, payment))
}

func (p *KafkaPublisher) PublishOrderCompleted(ctx context.Context, order *models.Order) error {
	return p.publishOrder(ctx, EventTypeOrderCompleted, order, order)
}

func paymentPayload(order *models.Order, payment *models.Payment) interface{} {
	return struct {
		Order   *models.Order   `json:"order"`
		Payment *models.Payment `json:"payment"`
	}{order, payment}
}

func (p *KafkaPublisher) publishOrder(ctx context.Context, eventType EventType, order *models.Order, payload interface{}) error {
	p.logger.Debug("Publishing checkout event", logging.Fields{
		"order_id":   order.ID,
		"event_type": eventType,
	})

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	event := &CheckoutEvent{
		ID:        "evt_" + uuid.NewString(),
		Type:      eventType,
		OrderID:   order.ID,
		UserID:    order.UserID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
	if requestID, ok := ctx.Value(middleware.RequestIDKey).(string); ok {
		event.CorrelationID = requestID
	}

	return p.publish(ctx, event)
}

func (p *KafkaPublisher) publish(ctx context.Context, event *CheckoutEvent) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID),
		Value: eventData,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish event", logging.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
			"order_id":   event.OrderID,
			"error":      err.Error(),
		})
		return err
	}

	p.logger.Info("Event published", logging.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
		"order_id":   event.OrderID,
	})
	return nil
}

// Close flushes and closes the Kafka writer.
func (p *KafkaPublisher) Close() error {
	p.logger.Info("Closing Kafka publisher")
	return p.writer.Close()
}
