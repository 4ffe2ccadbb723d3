package clients

import (
	"context"
	"fmt"

	"github.com/tm-acme-shop/acme-shop-store-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/service"
)

// Notifier is a NotificationSender holding resources released on shutdown.
type Notifier interface {
	service.NotificationSender
	Close() error
}

// NewNotifier builds the driver selected by cfg.Driver.
func NewNotifier(ctx context.Context, cfg config.NotificationConfig) (Notifier, error) {
	switch cfg.Driver {
	case "", "http":
		return NewHTTPNotificationClient(cfg), nil
	case "amqp":
		n, err := NewAMQPNotifier(cfg)
		if err != nil {
			return nil, err
		}
		return n, nil
	case "sns":
		n, err := NewSNSNotifier(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unknown notification driver %q", cfg.Driver)
	}
}
