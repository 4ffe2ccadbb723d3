package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/tm-acme-shop/acme-shop-store-service/internal/apperr"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/models"
)

const productColumns = `id, name, description, sku, price, stock, category_id, created_at, updated_at`

// PostgresProductRepository implements ProductRepository using PostgreSQL.
type PostgresProductRepository struct {
	q      DBTX
	logger *logging.Logger
}

var _ ProductRepository = (*PostgresProductRepository)(nil)

// Create inserts a new product.
func (r *PostgresProductRepository) Create(ctx context.Context, p *models.Product) error {
	r.logger.Debug("Creating product", logging.Fields{"product_id": p.ID, "name": p.Name})

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.Name, p.Description, p.SKU, p.Price, p.Stock, nullString(p.CategoryID), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create product", logging.Fields{"product_id": p.ID, "error": err.Error()})
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// GetByID retrieves a product by its identifier.
func (r *PostgresProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return r.scanOne(row, id)
}

// GetForUpdate retrieves a product and holds a row lock for the transaction.
func (r *PostgresProductRepository) GetForUpdate(ctx context.Context, id string) (*models.Product, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id)
	return r.scanOne(row, id)
}

// List retrieves products matching the filter and the total match count.
func (r *PostgresProductRepository) List(ctx context.Context, filter models.ProductFilter) ([]*models.Product, int, error) {
	r.logger.Debug("Listing products", logging.Fields{
		"category_id": filter.CategoryID,
		"search":      filter.Search,
		"page":        filter.Page,
		"limit":       filter.Limit,
	})

	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.CategoryID != "" {
		conds = append(conds, "category_id = "+arg(filter.CategoryID))
	}
	if filter.Search != "" {
		conds = append(conds, "name ILIKE "+arg("%"+filter.Search+"%"))
	}
	if filter.MinPrice != nil {
		conds = append(conds, "price >= "+arg(*filter.MinPrice))
	}
	if filter.MaxPrice != nil {
		conds = append(conds, "price <= "+arg(*filter.MaxPrice))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM products"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query := "SELECT " + productColumns + " FROM products" + where +
		" ORDER BY " + productOrderBy(filter.Sort) +
		" LIMIT " + arg(filter.Limit) + " OFFSET " + arg(filter.Offset())

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]*models.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate products: %w", err)
	}

	return products, total, nil
}

// Update overwrites the mutable product fields.
func (r *PostgresProductRepository) Update(ctx context.Context, p *models.Product) error {
	r.logger.Debug("Updating product", logging.Fields{"product_id": p.ID})

	result, err := r.q.ExecContext(ctx, `
		UPDATE products
		SET name = $2, description = $3, sku = $4, price = $5, stock = $6, category_id = $7, updated_at = $8
		WHERE id = $1`,
		p.ID, p.Name, p.Description, p.SKU, p.Price, p.Stock, nullString(p.CategoryID), p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return expectOneRow(result, "product")
}

// Delete removes a product.
func (r *PostgresProductRepository) Delete(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return expectOneRow(result, "product")
}

// DecrementStock reserves qty units with a single conditional update.
func (r *PostgresProductRepository) DecrementStock(ctx context.Context, id string, qty int) error {
	result, err := r.q.ExecContext(ctx,
		`UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`,
		id, qty,
	)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if affected == 0 {
		r.logger.Warn("Stock decrement rejected", logging.Fields{"product_id": id, "quantity": qty})
		return apperr.New(apperr.KindOutOfStock, fmt.Sprintf("insufficient stock for product %s", id))
	}

	r.logger.Debug("Stock decremented", logging.Fields{"product_id": id, "quantity": qty})
	return nil
}

// IncrementStock returns qty units to a product.
func (r *PostgresProductRepository) IncrementStock(ctx context.Context, id string, qty int) error {
	result, err := r.q.ExecContext(ctx, `UPDATE products SET stock = stock + $2 WHERE id = $1`, id, qty)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}
	return expectOneRow(result, "product")
}

func (r *PostgresProductRepository) scanOne(row *sql.Row, id string) (*models.Product, error) {
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("product")
	}
	if err != nil {
		r.logger.Error("Failed to fetch product", logging.Fields{"product_id": id, "error": err.Error()})
		return nil, err
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(s rowScanner) (*models.Product, error) {
	var p models.Product
	var categoryID sql.NullString

	err := s.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.SKU,
		&p.Price,
		&p.Stock,
		&categoryID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.CategoryID = categoryID.String
	return &p, nil
}

func productOrderBy(sort models.ProductSort) string {
	switch sort {
	case models.SortPriceAsc:
		return "price ASC, id ASC"
	case models.SortPriceDesc:
		return "price DESC, id ASC"
	case models.SortName:
		return "name ASC, id ASC"
	default:
		return "created_at DESC, id ASC"
	}
}

func expectOneRow(result sql.Result, what string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.NotFound(what)
	}
	return nil
}
