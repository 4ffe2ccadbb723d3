package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCanceled   OrderStatus = "canceled"
)

// orderTransitions lists every permitted edge. Statuses with no entry, or an
// empty entry, are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCanceled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCanceled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCanceled:   {},
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// IsTerminal reports whether no transition leaves s.
func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

// Stage ranks s along the lifecycle. Every permitted transition moves to a
// strictly higher stage, so a copy of an order at a lower stage is older.
func (s OrderStatus) Stage() int {
	switch s {
	case OrderStatusPending:
		return 0
	case OrderStatusProcessing:
		return 1
	case OrderStatusShipped:
		return 2
	case OrderStatusDelivered, OrderStatusCanceled:
		return 3
	default:
		return -1
	}
}

// CanTransitionTo reports whether s -> to is a permitted edge.
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// OrderLine is an immutable snapshot of a purchased product. Price is the unit
// price at the time the order was placed.
type OrderLine struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Order is a placed order. Email and Name are the buyer's contact details
// captured at checkout; order notifications are addressed to Email.
type Order struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Email     string          `json:"email,omitempty"`
	Name      string          `json:"name,omitempty"`
	Lines     []OrderLine     `json:"lines"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Discount  decimal.Decimal `json:"discount"`
	Shipping  decimal.Decimal `json:"shipping"`
	Total     decimal.Decimal `json:"total"`
	Status    OrderStatus     `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// CanCancel reports whether the order may still be canceled.
func (o *Order) CanCancel() bool {
	return o.Status.CanTransitionTo(OrderStatusCanceled)
}

// OrderListFilter narrows an order listing. Empty fields do not filter.
type OrderListFilter struct {
	UserID string
	Status *OrderStatus
	Limit  int
	Offset int
}

type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required"`
}

type CheckoutRequest struct {
	SelectedProductIDs []string `json:"selectedProductIds"`
}

// OrderPage is one page of an order listing.
type OrderPage struct {
	Orders []*Order `json:"orders"`
	Total  int      `json:"total"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}
