package service

import (
	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/apperr"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/models"
)

var (
	taxRate           = decimal.RequireFromString("0.10")
	discountRate      = decimal.RequireFromString("0.05")
	discountThreshold = decimal.NewFromInt(100)
	freeShippingAbove = decimal.NewFromInt(50)
	flatShippingFee   = decimal.NewFromInt(5)
)

// PricedLine is one (quantity, unit price) pair fed to the pricing engine.
type PricedLine struct {
	Quantity  int
	UnitPrice decimal.Decimal
}

// PriceBreakdown represents the pricing breakdown for an order or cart.
type PriceBreakdown struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Discount decimal.Decimal `json:"discount"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// CalculateBreakdown computes subtotal, tax, discount, shipping and grand
// total. Total is always exactly subtotal + tax - discount + shipping.
func CalculateBreakdown(lines []PricedLine) (PriceBreakdown, error) {
	subtotal := decimal.Zero
	for _, l := range lines {
		if l.Quantity < 0 {
			return PriceBreakdown{}, apperr.InvalidInput("quantity", "must not be negative")
		}
		if l.UnitPrice.IsNegative() {
			return PriceBreakdown{}, apperr.InvalidInput("price", "must not be negative")
		}
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimalFromInt(l.Quantity)))
	}

	tax := subtotal.Mul(taxRate)

	discount := decimal.Zero
	if subtotal.GreaterThan(discountThreshold) {
		discount = subtotal.Mul(discountRate)
	}

	shipping := flatShippingFee
	if subtotal.GreaterThan(freeShippingAbove) {
		shipping = decimal.Zero
	}

	return PriceBreakdown{
		Subtotal: subtotal,
		Tax:      tax,
		Discount: discount,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Sub(discount).Add(shipping),
	}, nil
}

func orderPricedLines(lines []models.OrderLine) []PricedLine {
	priced := make([]PricedLine, len(lines))
	for i, l := range lines {
		priced[i] = PricedLine{Quantity: l.Quantity, UnitPrice: l.Price}
	}
	return priced
}

func (b PriceBreakdown) applyTo(o *models.Order) {
	o.Subtotal = b.Subtotal
	o.Tax = b.Tax
	o.Discount = b.Discount
	o.Shipping = b.Shipping
	o.Total = b.Total
}

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}
