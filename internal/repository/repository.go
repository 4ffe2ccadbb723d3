package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/tm-acme-shop/acme-shop-store-service/internal/models"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so the same repository code
// runs inside and outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ProductRepository persists catalog products and their stock counters.
type ProductRepository interface {
	Create(ctx context.Context, p *models.Product) error
	GetByID(ctx context.Context, id string) (*models.Product, error)
	// GetForUpdate reads a product and locks its row until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id string) (*models.Product, error)
	List(ctx context.Context, filter models.ProductFilter) ([]*models.Product, int, error)
	Update(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id string) error
	// DecrementStock subtracts qty in one conditional update and fails with
	// apperr.ErrOutOfStock when the result would be negative.
	DecrementStock(ctx context.Context, id string, qty int) error
	IncrementStock(ctx context.Context, id string, qty int) error
}

type CategoryRepository interface {
	Create(ctx context.Context, c *models.Category) error
	GetByID(ctx context.Context, id string) (*models.Category, error)
	List(ctx context.Context) ([]*models.Category, error)
	Update(ctx context.Context, c *models.Category) error
	Delete(ctx context.Context, id string) error
}

type OrderRepository interface {
	Create(ctx context.Context, o *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context, filter *models.OrderListFilter) ([]*models.Order, int, error)
	// UpdateStatus moves an order from -> to only if it is still in from.
	// A concurrent change surfaces as apperr.ErrInvalidTransition.
	UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// Tx exposes the repositories bound to one transaction.
type Tx struct {
	Products ProductRepository
	Orders   OrderRepository
}

// TxRunner runs fn in a transaction. The transaction commits when fn returns
// nil and rolls back otherwise.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// CartStore keeps one cart per user. Get returns nil, nil for a missing cart.
type CartStore interface {
	Get(ctx context.Context, userID string) (*models.Cart, error)
	Save(ctx context.Context, cart *models.Cart) error
	Delete(ctx context.Context, userID string) error
}

// ReviewStore keeps product ratings, at most one per user and product.
type ReviewStore interface {
	ListByProduct(ctx context.Context, productID string) ([]models.Review, error)
	Insert(ctx context.Context, r *models.Review) error
	Update(ctx context.Context, productID, userID string, input models.ReviewInput, at time.Time) (*models.Review, error)
	Delete(ctx context.Context, productID, userID string) error
	DeleteByProduct(ctx context.Context, productID string) error
}

// OrderCache defines caching operations for orders.
type OrderCache interface {
	Get(ctx context.Context, id string) (*models.Order, error)
	// Set must not replace a cached copy whose status is at a later
	// lifecycle stage (see models.OrderStatus.Stage).
	Set(ctx context.Context, order *models.Order) error
	Delete(ctx context.Context, id string) error
}
