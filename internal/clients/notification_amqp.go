package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/service"
)

var _ service.NotificationSender = (*AMQPNotifier)(nil)

const amqpDialAttempts = 5

// amqpChannel is the subset of *amqp.Channel used for publishing.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPNotifier publishes notifications to a topic exchange with the routing
// key "notification.<type>". A mailer service consumes them.
type AMQPNotifier struct {
	conn     *amqp.Connection
	channel  amqpChannel
	exchange string
	logger   *logging.Logger
}

// NewAMQPNotifier dials the broker, retrying with backoff, and declares the
// exchange.
func NewAMQPNotifier(cfg config.NotificationConfig) (*AMQPNotifier, error) {
	if cfg.AMQPExchange == "" {
		return nil, fmt.Errorf("exchange name cannot be empty")
	}
	logger := logging.New("amqp-notifier")

	var (
		conn *amqp.Connection
		err  error
	)
	for i := 0; i < amqpDialAttempts; i++ {
		conn, err = amqp.Dial(cfg.AMQPURL)
		if err == nil {
			break
		}
		retry := time.Duration(i*i)*time.Second + time.Second
		logger.Warn("Failed to connect to RabbitMQ, retrying", logging.Fields{
			"retry_in": retry.String(),
			"error":    err.Error(),
		})
		time.Sleep(retry)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ after retries: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.AMQPExchange, // name
		"topic",          // type
		true,             // durable
		false,            // auto-deleted
		false,            // internal
		false,            // no-wait
		nil,              // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.AMQPExchange, err)
	}

	logger.Info("Declared notification exchange", logging.Fields{"exchange": cfg.AMQPExchange})

	n := newAMQPNotifier(ch, cfg.AMQPExchange)
	n.conn = conn
	return n, nil
}

func newAMQPNotifier(ch amqpChannel, exchange string) *AMQPNotifier {
	return &AMQPNotifier{
		channel:  ch,
		exchange: exchange,
		logger:   logging.New("amqp-notifier"),
	}
}

// Send publishes n as a persistent JSON message.
func (a *AMQPNotifier) Send(ctx context.Context, n *models.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	routingKey := "notification." + string(n.Type)
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	}
	if requestID := logging.RequestIDFromContext(ctx); requestID != "" {
		msg.CorrelationId = requestID
	}

	if err := a.channel.PublishWithContext(ctx, a.exchange, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish to exchange %s with routing key %s: %w", a.exchange, routingKey, err)
	}

	a.logger.WithContext(ctx).Debug("Notification published", logging.Fields{
		"exchange":    a.exchange,
		"routing_key": routingKey,
		"recipient":   n.Recipient,
	})
	return nil
}

// Close closes the channel and then the connection.
func (a *AMQPNotifier) Close() error {
	if a.channel != nil {
		if err := a.channel.Close(); err != nil {
			return err
		}
	}
	if a.conn != nil {
		return a.conn.Close()
	}
	return nil
}
