// Package events carries order lifecycle events to Kafka and consumes the
// payment events that drive order confirmation.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/clock"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/service"
)

// Ensure KafkaPublisher implements service.OrderEventPublisher
var _ service.OrderEventPublisher = (*KafkaPublisher)(nil)

// EventType represents the type of order event.
type EventType string

const (
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
	EventTypeOrderCancelled     EventType = "order.cancelled"
)

// OrderEvent is the envelope written to the orders topic.
type OrderEvent struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	OrderID       string          `json:"order_id"`
	UserID        string          `json:"user_id"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

type statusChange struct {
	Order          *models.Order      `json:"order"`
	PreviousStatus models.OrderStatus `json:"previous_status"`
	NewStatus      models.OrderStatus `json:"new_status"`
}

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes order events to Kafka, keyed by order id so that
// events of one order stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	clock  clock.Clock
	logger *logging.Logger
}

// NewKafkaPublisher creates a publisher writing to the configured orders topic.
func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.OrdersTopic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaPublisher(writer, clock.System{})
}

func newKafkaPublisher(writer messageWriter, clk clock.Clock) *KafkaPublisher {
	return &KafkaPublisher{
		writer: writer,
		clock:  clk,
		logger: logging.New("order-events"),
	}
}

func (p *KafkaPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	return p.publish(ctx, EventTypeOrderCreated, order, order)
}

func (p *KafkaPublisher) PublishOrderStatusChanged(ctx context.Context, order *models.Order, previousStatus models.OrderStatus) error {
	return p.publish(ctx, EventTypeOrderStatusChanged, order, statusChange{
		Order:          order,
		PreviousStatus: previousStatus,
		NewStatus:      order.Status,
	})
}

func (p *KafkaPublisher) PublishOrderCancelled(ctx context.Context, order *models.Order, previousStatus models.OrderStatus) error {
	return p.publish(ctx, EventTypeOrderCancelled, order, statusChange{
		Order:          order,
		PreviousStatus: previousStatus,
		NewStatus:      order.Status,
	})
}

func (p *KafkaPublisher) publish(ctx context.Context, eventType EventType, order *models.Order, payload any) error {
	logger := p.logger.WithContext(ctx)

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	event := &OrderEvent{
		ID:            uuid.NewString(),
		Type:          eventType,
		OrderID:       order.ID,
		UserID:        order.UserID,
		Data:          data,
		Timestamp:     p.clock.Now(),
		CorrelationID: logging.RequestIDFromContext(ctx),
	}

	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		logger.Error("Failed to publish event", logging.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
			"order_id":   event.OrderID,
			"error":      err.Error(),
		})
		return err
	}

	logger.Info("Event published", logging.Fields{
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
