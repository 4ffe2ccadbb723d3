package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tm-acme-shop/acme-shop-store-service/internal/apperr"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/models"
)

type PostgresCategoryRepository struct {
	q      DBTX
	logger *logging.Logger
}

var _ CategoryRepository = (*PostgresCategoryRepository)(nil)

func (r *PostgresCategoryRepository) Create(ctx context.Context, c *models.Category) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO categories (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Name, c.Description, c.CreatedAt, c.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return apperr.InvalidInput("name", "category already exists")
	}
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (r *PostgresCategoryRepository) GetByID(ctx context.Context, id string) (*models.Category, error) {
	var c models.Category
	err := r.q.QueryRowContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM categories WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("category")
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PostgresCategoryRepository) List(ctx context.Context) ([]*models.Category, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]*models.Category, 0)
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, &c)
	}
	return categories, rows.Err()
}

func (r *PostgresCategoryRepository) Update(ctx context.Context, c *models.Category) error {
	result, err := r.q.ExecContext(ctx,
		`UPDATE categories SET name = $2, description = $3, updated_at = $4 WHERE id = $1`,
		c.ID, c.Name, c.Description, c.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return apperr.InvalidInput("name", "category already exists")
	}
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return expectOneRow(result, "category")
}

// Delete removes a category. Products keep existing with no category.
func (r *PostgresCategoryRepository) Delete(ctx context.Context, id string) error {
	r.logger.Info("Deleting category", logging.Fields{"category_id": id})

	result, err := r.q.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return expectOneRow(result, "category")
}
