package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tm-acme-shop/acme-shop-store-service/internal/apperr"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/models"
)

const orderColumns = `id, user_id, email, name, lines, subtotal, tax, discount, shipping, total, status, created_at, updated_at`

// PostgresOrderRepository implements OrderRepository using PostgreSQL.
type PostgresOrderRepository struct {
	q      DBTX
	logger *logging.Logger
}

var _ OrderRepository = (*PostgresOrderRepository)(nil)

// Create inserts a new order with its line snapshot.
func (r *PostgresOrderRepository) Create(ctx context.Context, o *models.Order) error {
	r.logger.Info("Creating order", logging.Fields{
		"order_id": o.ID,
		"user_id":  o.UserID,
		"lines":    len(o.Lines),
	})

	lines, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("encode order lines: %w", err)
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		o.ID, o.UserID, o.Email, o.Name, lines, o.Subtotal, o.Tax, o.Discount, o.Shipping, o.Total,
		string(o.Status), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create order", logging.Fields{"order_id": o.ID, "error": err.Error()})
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

// GetByID retrieves an order by its identifier.
func (r *PostgresOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	r.logger.Debug("Getting order by ID", logging.Fields{"order_id": id})

	row := r.q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("order")
	}
	if err != nil {
		r.logger.Error("Failed to get order", logging.Fields{"order_id": id, "error": err.Error()})
		return nil, err
	}

	return order, nil
}

// List retrieves orders newest first, along with the total match count.
func (r *PostgresOrderRepository) List(ctx context.Context, filter *models.OrderListFilter) ([]*models.Order, int, error) {
	r.logger.Debug("Listing orders", logging.Fields{
		"user_id": filter.UserID,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})

	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.UserID != "" {
		conds = append(conds, "user_id = "+arg(filter.UserID))
	}
	if filter.Status != nil {
		conds = append(conds, "status = "+arg(string(*filter.Status)))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	query := "SELECT " + orderColumns + " FROM orders" + where + " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list orders", logging.Fields{"error": err.Error()})
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate orders: %w", err)
	}

	return orders, total, nil
}

// UpdateStatus moves an order from one status to another. The update only
// applies while the row still holds the expected status.
func (r *PostgresOrderRepository) UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus, at time.Time) error {
	r.logger.Info("Updating order status", logging.Fields{
		"order_id": id,
		"from":     string(from),
		"to":       string(to),
	})

	result, err := r.q.ExecContext(ctx,
		`UPDATE orders SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
		id, string(from), string(to), at,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var current string
	err = r.q.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("order")
	}
	if err != nil {
		return fmt.Errorf("read order status: %w", err)
	}

	r.logger.Warn("Order status changed concurrently", logging.Fields{
		"order_id": id,
		"expected": string(from),
		"current":  current,
	})
	return apperr.InvalidTransition(current, string(to))
}

// Delete removes an order.
func (r *PostgresOrderRepository) Delete(ctx context.Context, id string) error {
	r.logger.Info("Deleting order", logging.Fields{"order_id": id})

	result, err := r.q.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return expectOneRow(result, "order")
}

func scanOrder(s rowScanner) (*models.Order, error) {
	var (
		o      models.Order
		lines  []byte
		status string
	)

	err := s.Scan(
		&o.ID,
		&o.UserID,
		&o.Email,
		&o.Name,
		&lines,
		&o.Subtotal,
		&o.Tax,
		&o.Discount,
		&o.Shipping,
		&o.Total,
		&status,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(lines, &o.Lines); err != nil {
		return nil, fmt.Errorf("decode order lines: %w", err)
	}
	o.Status = models.OrderStatus(status)
	return &o, nil
}
