package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/logging"
)

// PaymentEventType represents the type of payment event.
type PaymentEventType string

const (
	PaymentEventCompleted PaymentEventType = "payment.completed"
	PaymentEventFailed    PaymentEventType = "payment.failed"
)

// PaymentEvent is the message published by the payments service.
type PaymentEvent struct {
	ID        string           `json:"id"`
	Type      PaymentEventType `json:"type"`
	PaymentID string           `json:"payment_id"`
	OrderID   string           `json:"order_id"`
	Timestamp time.Time        `json:"timestamp"`
}

// PaymentHandler applies payment outcomes to orders.
type PaymentHandler interface {
	HandlePaymentCompleted(ctx context.Context, orderID string) error
	HandlePaymentFailed(ctx context.Context, orderID string) error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaConsumer reads payment events and forwards them to a PaymentHandler.
type KafkaConsumer struct {
	reader   messageReader
	handler  PaymentHandler
	logger   *logging.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewKafkaConsumer creates a consumer on the configured payments topic.
func NewKafkaConsumer(cfg config.KafkaConfig, handler PaymentHandler) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.PaymentsTopic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})
	return newKafkaConsumer(reader, handler)
}

func newKafkaConsumer(reader messageReader, handler PaymentHandler) *KafkaConsumer {
	return &KafkaConsumer{
		reader:  reader,
		handler: handler,
		logger:  logging.New("payment-consumer"),
		stopCh:  make(chan struct{}),
	}
}

// Start consumes events until ctx is done or Stop is called.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	c.logger.Info("Starting Kafka consumer")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			c.logger.Info("Kafka consumer stopped")
			return nil
		default:
		}

		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			c.logger.Error("Failed to read message", logging.Fields{"error": err.Error()})
			continue
		}

		c.handleMessage(ctx, msg)
	}
}

// Stop closes the reader, which unblocks a pending read.
func (c *KafkaConsumer) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		if err := c.reader.Close(); err != nil {
			c.logger.Warn("Failed to close Kafka reader", logging.Fields{"error": err.Error()})
		}
	})
}

func (c *KafkaConsumer) handleMessage(ctx context.Context, msg kafka.Message) {
	c.logger.Debug("Received message", logging.Fields{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	var event PaymentEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Error("Failed to unmarshal event", logging.Fields{"error": err.Error()})
		return
	}
	if event.OrderID == "" {
		c.logger.Warn("Ignoring payment event without order id", logging.Fields{"event_id": event.ID})
		return
	}

	var err error
	switch event.Type {
	case PaymentEventCompleted:
		err = c.handler.HandlePaymentCompleted(ctx, event.OrderID)
	case PaymentEventFailed:
		err = c.handler.HandlePaymentFailed(ctx, event.OrderID)
	default:
		c.logger.Debug("Ignoring unknown event type", logging.Fields{"type": event.Type})
		return
	}

	if err != nil {
		c.logger.Error("Failed to apply payment event", logging.Fields{
			"event_type": event.Type,
			"payment_id": event.PaymentID,
			"order_id":   event.OrderID,
			"error":      err.Error(),
		})
		return
	}

	c.logger.Info("Payment event applied", logging.Fields{
		"event_type": event.Type,
		"payment_id": event.PaymentID,
		"order_id":   event.OrderID,
	})
}
