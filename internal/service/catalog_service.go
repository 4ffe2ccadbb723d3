package service

import (
	"context"

	"github.com/tm-acme-shop/acme-shop-store-service/internal/clock"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/ids"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/repository"
)

// CatalogService maintains products and categories.
type CatalogService struct {
	products   repository.ProductRepository
	categories repository.CategoryRepository
	reviews    repository.ReviewStore
	clock      clock.Clock
	ids        ids.Generator
	logger     *logging.Logger
}

func NewCatalogService(
	products repository.ProductRepository,
	categories repository.CategoryRepository,
	reviews repository.ReviewStore,
	clk clock.Clock,
	gen ids.Generator,
) *CatalogService {
	return &CatalogService{
		products:   products,
		categories: categories,
		reviews:    reviews,
		clock:      clk,
		ids:        gen,
		logger:     logging.New("catalog-service"),
	}
}

// CreateProduct adds a product to the catalog.
func (s *CatalogService) CreateProduct(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	if err := ValidateProductInput(&in); err != nil {
		return nil, err
	}
	if err := s.ensureCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	p := &models.Product{
		ID:          s.ids.NewID("prd"),
		Name:        in.Name,
		Description: in.Description,
		SKU:         in.SKU,
		Price:       in.Price,
		Stock:       in.Stock,
		CategoryID:  in.CategoryID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).Info("Product created", logging.Fields{
		"product_id": p.ID,
		"stock":      p.Stock,
	})
	return p, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return s.products.GetByID(ctx, id)
}

// ListProducts returns one page of products matching the filter.
func (s *CatalogService) ListProducts(ctx context.Context, filter models.ProductFilter) (*models.ProductPage, error) {
	if err := NormalizeProductFilter(&filter); err != nil {
		return nil, err
	}

	items, total, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &models.ProductPage{
		Items: items,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}

// UpdateProduct replaces the mutable fields of a product. Existing orders keep
// the price they were placed at.
func (s *CatalogService) UpdateProduct(ctx context.Context, id string, in models.ProductInput) (*models.Product, error) {
	if err := ValidateProductInput(&in); err != nil {
		return nil, err
	}
	if err := s.ensureCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	p.Name = in.Name
	p.Description = in.Description
	p.SKU = in.SKU
	p.Price = in.Price
	p.Stock = in.Stock
	p.CategoryID = in.CategoryID
	p.UpdatedAt = s.clock.Now()

	if err := s.products.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProduct removes a product and, best-effort, its reviews.
func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}

	logger := s.logger.WithContext(ctx)
	logger.Info("Product deleted", logging.Fields{"product_id": id})

	if err := s.reviews.DeleteByProduct(ctx, id); err != nil {
		logger.Error("Failed to delete product reviews", logging.Fields{
			"product_id": id,
			"error":      err.Error(),
		})
	}
	return nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, in models.CategoryInput) (*models.Category, error) {
	if err := ValidateCategoryInput(&in); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	c := &models.Category{
		ID:          s.ids.NewID("cat"),
		Name:        in.Name,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CatalogService) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	return s.categories.GetByID(ctx, id)
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]*models.Category, error) {
	return s.categories.List(ctx)
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id string, in models.CategoryInput) (*models.Category, error) {
	if err := ValidateCategoryInput(&in); err != nil {
		return nil, err
	}

	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Name = in.Name
	c.Description = in.Description
	c.UpdatedAt = s.clock.Now()

	if err := s.categories.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCategory removes a category. Its products stay in the catalog
// without a category.
func (s *CatalogService) DeleteCategory(ctx context.Context, id string) error {
	return s.categories.Delete(ctx, id)
}

func (s *CatalogService) ensureCategory(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	_, err := s.categories.GetByID(ctx, id)
	return err
}
