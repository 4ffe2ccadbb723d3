package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tm-acme-shop/acme-shop-store-service/internal/apperr"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/clock"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/ids"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/repository"
)

const notificationTimeout = 10 * time.Second

// OrderService handles checkout and the order lifecycle.
type OrderService struct {
	tx                 repository.TxRunner
	orderRepo          repository.OrderRepository
	carts              repository.CartStore
	orderCache         repository.OrderCache
	notificationClient NotificationSender
	eventPublisher     OrderEventPublisher
	clock              clock.Clock
	ids                ids.Generator
	config             *config.Config
	logger             *logging.Logger

	notifications sync.WaitGroup
}

// NewOrderService creates a new order service.
func NewOrderService(
	tx repository.TxRunner,
	orderRepo repository.OrderRepository,
	carts repository.CartStore,
	orderCache repository.OrderCache,
	notificationClient NotificationSender,
	eventPublisher OrderEventPublisher,
	clk clock.Clock,
	gen ids.Generator,
	cfg *config.Config,
) *OrderService {
	return &OrderService{
		tx:                 tx,
		orderRepo:          orderRepo,
		carts:              carts,
		orderCache:         orderCache,
		notificationClient: notificationClient,
		eventPublisher:     eventPublisher,
		clock:              clk,
		ids:                gen,
		config:             cfg,
		logger:             logging.New("order-service"),
	}
}

// Checkout turns the selected lines of the caller's cart into a pending order.
//
// Stock is reserved line by line inside one transaction: each product row is
// locked, a line whose product has no stock fails the checkout with
// OutOfStock, and otherwise min(requested, stock) units are reserved. Any
// failure before commit rolls back every reservation. Cart cleanup, events and
// notifications happen after commit and never fail the checkout.
func (s *OrderService) Checkout(ctx context.Context, actor models.Actor, selectedProductIDs []string) (*models.Order, error) {
	logger := s.logger.WithContext(ctx)
	logger.Info("Starting checkout", logging.Fields{
		"user_id":  actor.UserID,
		"selected": len(selectedProductIDs),
	})

	order, cart, checkedOut, err := s.checkout(ctx, actor, selectedProductIDs)
	if err != nil {
		metrics.CheckoutFailures.WithLabelValues(string(apperr.KindOf(err))).Inc()
		logger.Warn("Checkout rejected", logging.Fields{
			"user_id": actor.UserID,
			"error":   err.Error(),
		})
		return nil, err
	}

	metrics.OrdersCreated.Inc()
	for _, line := range order.Lines {
		metrics.UnitsReserved.Add(float64(line.Quantity))
	}

	s.shrinkCart(ctx, cart, checkedOut)
	s.cacheOrder(ctx, order)

	if s.config.Features.EnableOrderEvents {
		if err := s.eventPublisher.PublishOrderCreated(ctx, order); err != nil {
			logger.Error("Failed to publish order created event", logging.Fields{
				"order_id": order.ID,
				"error":    err.Error(),
			})
		}
	}

	s.notifyAsync(s.orderPlacedNotifications(order)...)

	logger.Info("Order created successfully", logging.Fields{
		"order_id": order.ID,
		"lines":    len(order.Lines),
		"total":    order.Total.String(),
	})
	return order, nil
}

func (s *OrderService) checkout(ctx context.Context, actor models.Actor, selectedProductIDs []string) (*models.Order, *models.Cart, map[string]bool, error) {
	cart, err := s.carts.Get(ctx, actor.UserID)
	if err != nil {
		return nil, nil, nil, err
	}
	if cart.IsEmpty() {
		return nil, nil, nil, apperr.ErrEmptyCart
	}

	selected := make(map[string]bool, len(selectedProductIDs))
	for _, id := range selectedProductIDs {
		selected[id] = true
	}

	var lines []models.CartLine
	checkedOut := make(map[string]bool)
	for _, line := range cart.Lines {
		if selected[line.ProductID] {
			lines = append(lines, line)
			checkedOut[line.ProductID] = true
		}
	}
	if len(lines) == 0 {
		return nil, nil, nil, apperr.ErrNoValidSelection
	}

	now := s.clock.Now()
	order := &models.Order{
		ID:        s.ids.NewID("ord"),
		UserID:    actor.UserID,
		Email:     actor.Email,
		Name:      actor.Name,
		Status:    models.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		order.Lines = make([]models.OrderLine, 0, len(lines))

		for _, line := range lines {
			product, err := tx.Products.GetForUpdate(ctx, line.ProductID)
			if err != nil {
				return err
			}
			if product.Stock <= 0 {
				return apperr.OutOfStock(product.Name)
			}

			reserved := min(line.Quantity, product.Stock)
			if err := tx.Products.DecrementStock(ctx, product.ID, reserved); err != nil {
				if errors.Is(err, apperr.ErrOutOfStock) {
					return apperr.OutOfStock(product.Name)
				}
				return err
			}

			if reserved < line.Quantity {
				s.logger.WithContext(ctx).Info("Reservation capped to available stock", logging.Fields{
					"product_id": product.ID,
					"requested":  line.Quantity,
					"reserved":   reserved,
				})
			}

			order.Lines = append(order.Lines, models.OrderLine{
				ProductID: product.ID,
				Name:      product.Name,
				Quantity:  reserved,
				Price:     product.Price,
			})
		}

		breakdown, err := CalculateBreakdown(orderPricedLines(order.Lines))
		if err != nil {
			return err
		}
		breakdown.applyTo(order)

		return tx.Orders.Create(ctx, order)
	})
	if err != nil {
		return nil, nil, nil, err
	}

	return order, cart, checkedOut, nil
}

// shrinkCart removes checked-out lines. The order is already committed, so a
// failure here only leaves stale lines behind.
func (s *OrderService) shrinkCart(ctx context.Context, cart *models.Cart, checkedOut map[string]bool) {
	cart.RemoveAll(checkedOut)
	cart.UpdatedAt = s.clock.Now()

	var err error
	if cart.IsEmpty() {
		err = s.carts.Delete(ctx, cart.UserID)
	} else {
		err = s.carts.Save(ctx, cart)
	}
	if err != nil {
		s.logger.WithContext(ctx).Error("Failed to remove checked-out lines from cart", logging.Fields{
			"user_id": cart.UserID,
			"error":   err.Error(),
		})
	}
}

// GetOrder retrieves an order visible to the actor.
func (s *OrderService) GetOrder(ctx context.Context, actor models.Actor, id string) (*models.Order, error) {
	order, err := s.getOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeOrder(actor, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderService) getOrder(ctx context.Context, id string) (*models.Order, error) {
	if s.config.Features.EnableOrderCaching {
		if order, err := s.orderCache.Get(ctx, id); err == nil && order != nil {
			return order, nil
		}
	}

	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheOrder(ctx, order)
	return order, nil
}

// ListMyOrders lists the actor's own orders, newest first.
func (s *OrderService) ListMyOrders(ctx context.Context, actor models.Actor, limit, offset int) (*models.OrderPage, error) {
	return s.ListOrders(ctx, &models.OrderListFilter{UserID: actor.UserID, Limit: limit, Offset: offset})
}

// ListOrders retrieves orders based on filter criteria.
func (s *OrderService) ListOrders(ctx context.Context, filter *models.OrderListFilter) (*models.OrderPage, error) {
	normalizeOrderFilter(filter)

	orders, total, err := s.orderRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &models.OrderPage{
		Orders: orders,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

// ConfirmOrder moves a pending order to processing.
func (s *OrderService) ConfirmOrder(ctx context.Context, id string) (*models.Order, error) {
	return s.UpdateOrderStatus(ctx, id, models.OrderStatusProcessing)
}

// UpdateOrderStatus applies an administrative status change. A cancel target
// goes through CancelOrder semantics so reserved stock is returned.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	if err := ValidateStatusTarget(status); err != nil {
		return nil, err
	}

	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if status == models.OrderStatusCanceled {
		return s.cancel(ctx, order)
	}
	return s.transition(ctx, order, status)
}

func (s *OrderService) transition(ctx context.Context, order *models.Order, status models.OrderStatus) (*models.Order, error) {
	if !order.Status.CanTransitionTo(status) {
		return nil, apperr.InvalidTransition(string(order.Status), string(status))
	}

	previousStatus := order.Status
	now := s.clock.Now()
	if err := s.orderRepo.UpdateStatus(ctx, order.ID, previousStatus, status, now); err != nil {
		return nil, err
	}
	order.Status = status
	order.UpdatedAt = now

	s.afterStatusChange(ctx, order, previousStatus)
	return order, nil
}

// CancelOrder cancels a pending or processing order and returns its reserved
// stock. Only the owner or an administrator may cancel.
func (s *OrderService) CancelOrder(ctx context.Context, actor models.Actor, id string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeOrder(actor, order); err != nil {
		return nil, err
	}
	return s.cancel(ctx, order)
}

func (s *OrderService) cancel(ctx context.Context, order *models.Order) (*models.Order, error) {
	if !order.CanCancel() {
		return nil, apperr.InvalidTransition(string(order.Status), string(models.OrderStatusCanceled))
	}

	logger := s.logger.WithContext(ctx)
	previousStatus := order.Status
	now := s.clock.Now()

	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		// The conditional status flip makes a concurrent second cancel fail
		// before it can restore stock again.
		if err := tx.Orders.UpdateStatus(ctx, order.ID, previousStatus, models.OrderStatusCanceled, now); err != nil {
			return err
		}

		for _, line := range order.Lines {
			err := tx.Products.IncrementStock(ctx, line.ProductID, line.Quantity)
			if errors.Is(err, apperr.ErrNotFound) {
				logger.Warn("Product gone, stock not restored", logging.Fields{
					"order_id":   order.ID,
					"product_id": line.ProductID,
					"quantity":   line.Quantity,
				})
				continue
			}
			if err != nil {
				return err
			}
			metrics.UnitsRestored.Add(float64(line.Quantity))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order.Status = models.OrderStatusCanceled
	order.UpdatedAt = now

	logger.Info("Order cancelled", logging.Fields{
		"order_id":        order.ID,
		"previous_status": string(previousStatus),
	})

	s.afterStatusChange(ctx, order, previousStatus)
	return order, nil
}

// DeleteOrder removes an order. A non-terminal order is cancelled first so
// its stock is returned. Delivered orders cannot be deleted.
func (s *OrderService) DeleteOrder(ctx context.Context, id string) error {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	switch {
	case order.Status == models.OrderStatusDelivered:
		return apperr.New(apperr.KindInvalidTransition, "delivered orders cannot be deleted")
	case !order.Status.IsTerminal():
		if _, err := s.cancel(ctx, order); err != nil {
			return err
		}
	}

	if err := s.orderRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.evictOrder(ctx, id)

	s.logger.WithContext(ctx).Info("Order deleted", logging.Fields{"order_id": id})
	return nil
}

// HandlePaymentCompleted confirms a pending order once its payment settles.
// Orders that already left pending are ignored, so redelivered events are safe.
func (s *OrderService) HandlePaymentCompleted(ctx context.Context, orderID string) error {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != models.OrderStatusPending {
		s.logger.WithContext(ctx).Info("Ignoring payment completion", logging.Fields{
			"order_id": orderID,
			"status":   string(order.Status),
		})
		return nil
	}
	_, err = s.transition(ctx, order, models.OrderStatusProcessing)
	return err
}

// HandlePaymentFailed cancels an order whose payment failed.
func (s *OrderService) HandlePaymentFailed(ctx context.Context, orderID string) error {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.CanCancel() {
		s.logger.WithContext(ctx).Info("Ignoring payment failure", logging.Fields{
			"order_id": orderID,
			"status":   string(order.Status),
		})
		return nil
	}
	_, err = s.cancel(ctx, order)
	return err
}

// Wait blocks until in-flight notifications have finished.
func (s *OrderService) Wait() {
	s.notifications.Wait()
}

func (s *OrderService) afterStatusChange(ctx context.Context, order *models.Order, previousStatus models.OrderStatus) {
	metrics.OrderStatusChanges.WithLabelValues(string(order.Status)).Inc()
	s.cacheOrder(ctx, order)

	if s.config.Features.EnableOrderEvents {
		var err error
		if order.Status == models.OrderStatusCanceled {
			err = s.eventPublisher.PublishOrderCancelled(ctx, order, previousStatus)
		} else {
			err = s.eventPublisher.PublishOrderStatusChanged(ctx, order, previousStatus)
		}
		if err != nil {
			s.logger.WithContext(ctx).Error("Failed to publish status change event", logging.Fields{
				"order_id": order.ID,
				"error":    err.Error(),
			})
		}
	}

	if n := statusNotification(order); n != nil {
		s.notifyAsync(n)
	}
}

// cacheOrder stores the current copy of an order. The cache keeps whichever
// copy is further along the lifecycle, so a reader that loaded the order
// before a status change cannot put its older copy back. When the write
// fails the entry is evicted instead.
func (s *OrderService) cacheOrder(ctx context.Context, order *models.Order) {
	if !s.config.Features.EnableOrderCaching {
		return
	}
	if err := s.orderCache.Set(ctx, order); err != nil {
		s.logger.WithContext(ctx).Warn("Failed to cache order", logging.Fields{
			"order_id": order.ID,
			"error":    err.Error(),
		})
		s.evictOrder(ctx, order.ID)
	}
}

func (s *OrderService) evictOrder(ctx context.Context, id string) {
	if !s.config.Features.EnableOrderCaching {
		return
	}
	if err := s.orderCache.Delete(ctx, id); err != nil {
		s.logger.WithContext(ctx).Warn("Failed to evict cached order", logging.Fields{
			"order_id": id,
			"error":    err.Error(),
		})
	}
}

// notifyAsync sends notifications in the background. Failures are logged and
// never reach the caller.
func (s *OrderService) notifyAsync(notifications ...*models.Notification) {
	if s.notificationClient == nil || len(notifications) == 0 {
		return
	}

	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()

		ctx, cancel := context.WithTimeout(context.Background(), notificationTimeout)
		defer cancel()

		for _, n := range notifications {
			if err := s.notificationClient.Send(ctx, n); err != nil {
				metrics.NotificationFailures.Inc()
				s.logger.Error("Failed to send notification", logging.Fields{
					"type":      string(n.Type),
					"recipient": n.Recipient,
					"error":     err.Error(),
				})
			}
		}
	}()
}

func (s *OrderService) orderPlacedNotifications(order *models.Order) []*models.Notification {
	metadata := map[string]string{
		"order_id": order.ID,
		"total":    order.Total.StringFixed(2),
	}

	var notifications []*models.Notification
	if order.Email != "" {
		notifications = append(notifications, &models.Notification{
			Type:      models.NotificationOrderPlaced,
			Recipient: order.Email,
			Subject:   "Order Confirmation",
			Body:      fmt.Sprintf("Your order %s has been received. Total: %s.", order.ID, order.Total.StringFixed(2)),
			Metadata:  metadata,
		})
	}

	if admin := s.config.Notification.AdminEmail; admin != "" {
		notifications = append(notifications, &models.Notification{
			Type:      models.NotificationOrderReceived,
			Recipient: admin,
			Subject:   "New Order",
			Body:      fmt.Sprintf("Order %s was placed by %s with %d line(s).", order.ID, buyerLabel(order), len(order.Lines)),
			Metadata:  metadata,
		})
	}
	return notifications
}

// buyerLabel names the buyer for staff-facing messages.
func buyerLabel(order *models.Order) string {
	switch {
	case order.Name != "" && order.Email != "":
		return fmt.Sprintf("%s <%s>", order.Name, order.Email)
	case order.Email != "":
		return order.Email
	default:
		return order.UserID
	}
}

func statusNotification(order *models.Order) *models.Notification {
	var (
		notificationType models.NotificationType
		subject, body    string
	)

	switch order.Status {
	case models.OrderStatusProcessing:
		notificationType = models.NotificationOrderConfirmed
		subject = "Order Confirmed"
		body = fmt.Sprintf("Your order %s has been confirmed.", order.ID)
	case models.OrderStatusShipped:
		notificationType = models.NotificationOrderShipped
		subject = "Order Shipped"
		body = fmt.Sprintf("Your order %s has been shipped.", order.ID)
	case models.OrderStatusDelivered:
		notificationType = models.NotificationOrderDelivered
		subject = "Order Delivered"
		body = fmt.Sprintf("Your order %s has been delivered.", order.ID)
	case models.OrderStatusCanceled:
		notificationType = models.NotificationOrderCanceled
		subject = "Order Cancelled"
		body = fmt.Sprintf("Your order %s has been cancelled.", order.ID)
	default:
		return nil
	}
	if order.Email == "" {
		return nil
	}

	return &models.Notification{
		Type:      notificationType,
		Recipient: order.Email,
		Subject:   subject,
		Body:      body,
		Metadata:  map[string]string{"order_id": order.ID},
	}
}

func authorizeOrder(actor models.Actor, order *models.Order) error {
	if actor.IsAdmin() || actor.UserID == order.UserID {
		return nil
	}
	return apperr.ErrForbidden
}
