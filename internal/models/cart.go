package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Cart holds at most one line per product, in insertion order.
type Cart struct {
	UserID    string     `json:"userId"`
	Lines     []CartLine `json:"lines"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Line returns the line for productID, if present.
func (c *Cart) Line(productID string) (CartLine, bool) {
	for _, l := range c.Lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return CartLine{}, false
}

// SetQuantity replaces the quantity of an existing line or appends a new one.
// A quantity below one removes the line.
func (c *Cart) SetQuantity(productID string, quantity int) {
	if quantity < 1 {
		c.Remove(productID)
		return
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines[i].Quantity = quantity
			return
		}
	}
	c.Lines = append(c.Lines, CartLine{ProductID: productID, Quantity: quantity})
}

// Remove drops the line for productID. Removing an absent line is a no-op.
func (c *Cart) Remove(productID string) {
	kept := c.Lines[:0]
	for _, l := range c.Lines {
		if l.ProductID != productID {
			kept = append(kept, l)
		}
	}
	c.Lines = kept
}

// RemoveAll drops every line whose product is in ids.
func (c *Cart) RemoveAll(ids map[string]bool) {
	kept := c.Lines[:0]
	for _, l := range c.Lines {
		if !ids[l.ProductID] {
			kept = append(kept, l)
		}
	}
	c.Lines = kept
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Lines) == 0
}

type CartItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity"`
}

// CartViewLine is a cart line joined with current catalog data.
type CartViewLine struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

type CartView struct {
	UserID   string          `json:"userId"`
	Lines    []CartViewLine  `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Discount decimal.Decimal `json:"discount"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}
