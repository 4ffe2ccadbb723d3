// Package service implements the store's business workflows: catalog
// maintenance, carts, checkout and the order lifecycle, and product reviews.
package service

import (
	"context"

	"github.com/tm-acme-shop/acme-shop-store-service/internal/models"
)

// NotificationSender delivers buyer and admin notifications.
type NotificationSender interface {
	Send(ctx context.Context, n *models.Notification) error
}

// OrderEventPublisher publishes order lifecycle events.
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *models.Order) error
	PublishOrderStatusChanged(ctx context.Context, order *models.Order, previousStatus models.OrderStatus) error
	PublishOrderCancelled(ctx context.Context, order *models.Order, previousStatus models.OrderStatus) error
}
