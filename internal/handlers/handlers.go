// Package handlers exposes the store services over HTTP with gin.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/apperr"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/models"
)

// CatalogAPI is implemented by service.CatalogService.
type CatalogAPI interface {
	CreateProduct(ctx context.Context, in models.ProductInput) (*models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context, filter models.ProductFilter) (*models.ProductPage, error)
	UpdateProduct(ctx context.Context, id string, in models.ProductInput) (*models.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	CreateCategory(ctx context.Context, in models.CategoryInput) (*models.Category, error)
	GetCategory(ctx context.Context, id string) (*models.Category, error)
	ListCategories(ctx context.Context) ([]*models.Category, error)
	UpdateCategory(ctx context.Context, id string, in models.CategoryInput) (*models.Category, error)
	DeleteCategory(ctx context.Context, id string) error
}

// CartAPI is implemented by service.CartService.
type CartAPI interface {
	Get(ctx context.Context, userID string) (*models.CartView, error)
	AddItem(ctx context.Context, userID, productID string, quantity int) (*models.CartView, error)
	UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*models.CartView, error)
	RemoveItem(ctx context.Context, userID, productID string) (*models.CartView, error)
	Clear(ctx context.Context, userID string) error
}

// OrderAPI is implemented by service.OrderService.
type OrderAPI interface {
	Checkout(ctx context.Context, actor models.Actor, selectedProductIDs []string) (*models.Order, error)
	GetOrder(ctx context.Context, actor models.Actor, id string) (*models.Order, error)
	ListMyOrders(ctx context.Context, actor models.Actor, limit, offset int) (*models.OrderPage, error)
	ListOrders(ctx context.Context, filter *models.OrderListFilter) (*models.OrderPage, error)
	ConfirmOrder(ctx context.Context, id string) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error)
	CancelOrder(ctx context.Context, actor models.Actor, id string) (*models.Order, error)
	DeleteOrder(ctx context.Context, id string) error
}

// ReviewAPI is implemented by service.ReviewService.
type ReviewAPI interface {
	AddReview(ctx context.Context, actor models.Actor, productID string, in models.ReviewInput) (*models.Review, error)
	UpdateReview(ctx context.Context, actor models.Actor, productID string, in models.ReviewInput) (*models.Review, error)
	DeleteReview(ctx context.Context, actor models.Actor, productID string) error
	ListReviews(ctx context.Context, productID string) (*models.ProductReviews, error)
}

// Handlers holds all HTTP handlers for the store service.
type Handlers struct {
	catalog CatalogAPI
	carts   CartAPI
	orders  OrderAPI
	reviews ReviewAPI
	checks  []ReadinessCheck
	logger  *logging.Logger
}

// NewHandlers creates a new handlers instance. The checks back GET /ready.
func NewHandlers(catalog CatalogAPI, carts CartAPI, orders OrderAPI, reviews ReviewAPI, checks ...ReadinessCheck) *Handlers {
	return &Handlers{
		catalog: catalog,
		carts:   carts,
		orders:  orders,
		reviews: reviews,
		checks:  checks,
		logger:  logging.New("handlers"),
	}
}

// handleError writes the {"message": ...} body for err. Internal errors are
// logged and answered with a generic message.
func (h *Handlers) handleError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithContext(c.Request.Context()).Error("Request failed", logging.Fields{
			"path":  c.FullPath(),
			"error": err.Error(),
		})
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"message": apperr.PublicMessage(err)})
}

func (h *Handlers) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.logger.WithContext(c.Request.Context()).Debug("Failed to bind request", logging.Fields{"error": err.Error()})
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return false
	}
	return true
}

// currentActor returns the authenticated caller. Routes that call it are
// mounted behind RequireAuth, so a missing actor is answered with 401.
func (h *Handlers) currentActor(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		h.handleError(c, apperr.ErrUnauthorized)
	}
	return actor, ok
}
