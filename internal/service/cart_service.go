package service

import (
	"context"
	"errors"

	"github.com/tm-acme-shop/acme-shop-store-service/internal/apperr"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/clock"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/repository"
)

// CartService manages per-user carts. Every mutating operation returns the
// priced view of the resulting cart.
type CartService struct {
	carts    repository.CartStore
	products repository.ProductRepository
	clock    clock.Clock
	logger   *logging.Logger
}

func NewCartService(carts repository.CartStore, products repository.ProductRepository, clk clock.Clock) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		clock:    clk,
		logger:   logging.New("cart-service"),
	}
}

// AddItem adds quantity units of a product, merging with an existing line.
// The merged quantity must not exceed current stock.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (*models.CartView, error) {
	if quantity < 1 {
		return nil, apperr.InvalidInput("quantity", "quantity must be at least 1")
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	wanted := quantity
	if line, ok := cart.Line(productID); ok {
		wanted += line.Quantity
	}
	if wanted > product.Stock {
		return nil, apperr.OutOfStock(product.Name)
	}

	cart.SetQuantity(productID, wanted)
	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).Debug("Cart item added", logging.Fields{
		"user_id":    userID,
		"product_id": productID,
		"quantity":   wanted,
	})
	return s.view(ctx, cart)
}

// UpdateQuantity sets the quantity of a line already in the cart. A quantity
// of zero or less removes the line.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*models.CartView, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, userID, productID)
	}

	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, ok := cart.Line(productID); !ok {
		return nil, apperr.New(apperr.KindNotFound, "product not in cart")
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if quantity > product.Stock {
		return nil, apperr.OutOfStock(product.Name)
	}

	cart.SetQuantity(productID, quantity)
	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}
	return s.view(ctx, cart)
}

// RemoveItem drops a line. Removing an absent line is not an error.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (*models.CartView, error) {
	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	if _, ok := cart.Line(productID); ok {
		cart.Remove(productID)
		if err := s.save(ctx, cart); err != nil {
			return nil, err
		}
	}
	return s.view(ctx, cart)
}

// Clear empties the cart.
func (s *CartService) Clear(ctx context.Context, userID string) error {
	return s.carts.Delete(ctx, userID)
}

// Get returns the cart joined with current catalog prices.
func (s *CartService) Get(ctx context.Context, userID string) (*models.CartView, error) {
	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cart)
}

func (s *CartService) load(ctx context.Context, userID string) (*models.Cart, error) {
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		cart = &models.Cart{UserID: userID, Lines: []models.CartLine{}}
	}
	return cart, nil
}

func (s *CartService) save(ctx context.Context, cart *models.Cart) error {
	cart.UpdatedAt = s.clock.Now()
	if cart.IsEmpty() {
		return s.carts.Delete(ctx, cart.UserID)
	}
	return s.carts.Save(ctx, cart)
}

func (s *CartService) view(ctx context.Context, cart *models.Cart) (*models.CartView, error) {
	view := &models.CartView{
		UserID: cart.UserID,
		Lines:  make([]models.CartViewLine, 0, len(cart.Lines)),
	}

	priced := make([]PricedLine, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		product, err := s.products.GetByID(ctx, line.ProductID)
		if errors.Is(err, apperr.ErrNotFound) {
			s.logger.WithContext(ctx).Warn("Skipping cart line for missing product", logging.Fields{
				"user_id":    cart.UserID,
				"product_id": line.ProductID,
			})
			continue
		}
		if err != nil {
			return nil, err
		}

		view.Lines = append(view.Lines, models.CartViewLine{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  line.Quantity,
			Price:     product.Price,
			LineTotal: product.Price.Mul(decimalFromInt(line.Quantity)),
		})
		priced = append(priced, PricedLine{Quantity: line.Quantity, UnitPrice: product.Price})
	}

	breakdown, err := CalculateBreakdown(priced)
	if err != nil {
		return nil, err
	}
	view.Subtotal = breakdown.Subtotal
	view.Tax = breakdown.Tax
	view.Discount = breakdown.Discount
	view.Shipping = breakdown.Shipping
	view.Total = breakdown.Total

	return view, nil
}
