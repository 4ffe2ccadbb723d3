package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/apperr"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/clock"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/ids"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/models"
)

func newCatalogFixture() (*CatalogService, *memDB, *memReviews) {
	db := newMemDB()
	reviews := &memReviews{}
	svc := NewCatalogService(db.Products(), db.Categories(), reviews, clock.Fixed{At: testNow}, &ids.Sequence{})
	return svc, db, reviews
}

func TestCatalogService_CreateProduct(t *testing.T) {
	svc, _, _ := newCatalogFixture()
	ctx := context.Background()

	cat, err := svc.CreateCategory(ctx, models.CategoryInput{Name: "Lighting"})
	require.NoError(t, err)

	p, err := svc.CreateProduct(ctx, models.ProductInput{Name: " Lamp ", Price: d("19.99"), Stock: 3, CategoryID: cat.ID})
	require.NoError(t, err)
	assert.Equal(t, "prd_2", p.ID)
	assert.Equal(t, "Lamp", p.Name)
	assert.Equal(t, testNow, p.CreatedAt)

	got, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, cat.ID, got.CategoryID)
}

func TestCatalogService_CreateProductValidation(t *testing.T) {
	svc, _, _ := newCatalogFixture()
	ctx := context.Background()

	tests := []struct {
		name  string
		input models.ProductInput
		want  *apperr.Error
	}{
		{"missing name", models.ProductInput{Price: d("1")}, apperr.ErrInvalidInput},
		{"negative price", models.ProductInput{Name: "x", Price: d("-1")}, apperr.ErrInvalidInput},
		{"negative stock", models.ProductInput{Name: "x", Stock: -1}, apperr.ErrInvalidInput},
		{"unknown category", models.ProductInput{Name: "x", CategoryID: "cat_9"}, apperr.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateProduct(ctx, tt.input)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestCatalogService_ListProductsPaging(t *testing.T) {
	svc, db, _ := newCatalogFixture()
	for _, id := range []string{"a", "b", "c"} {
		db.addProduct(id, id, "1", 1)
	}

	page, err := svc.ListProducts(context.Background(), models.ProductFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "c", page.Items[0].ID)

	page, err = svc.ListProducts(context.Background(), models.ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, defaultProductPageSize, page.Limit)
}

func TestCatalogService_ListProductsRejectsBadFilter(t *testing.T) {
	svc, _, _ := newCatalogFixture()
	lo, hi := decimal.NewFromInt(10), decimal.NewFromInt(5)

	_, err := svc.ListProducts(context.Background(), models.ProductFilter{Sort: "rating"})
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))

	_, err = svc.ListProducts(context.Background(), models.ProductFilter{MinPrice: &lo, MaxPrice: &hi})
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
}

func TestCatalogService_UpdateProduct(t *testing.T) {
	svc, db, _ := newCatalogFixture()
	db.addProduct("prd_1", "Lamp", "20", 5)

	p, err := svc.UpdateProduct(context.Background(), "prd_1", models.ProductInput{Name: "Desk Lamp", Price: d("25"), Stock: 7})
	require.NoError(t, err)
	assert.Equal(t, "Desk Lamp", p.Name)
	assert.Equal(t, 7, db.products["prd_1"].Stock)

	_, err = svc.UpdateProduct(context.Background(), "missing", models.ProductInput{Name: "x"})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestCatalogService_DeleteProductRemovesReviews(t *testing.T) {
	svc, db, reviews := newCatalogFixture()
	db.addProduct("prd_1", "Lamp", "20", 5)
	reviews.reviews = []models.Review{{ID: "rev_1", ProductID: "prd_1", UserID: "usr_1", Rating: 4}}

	require.NoError(t, svc.DeleteProduct(context.Background(), "prd_1"))
	assert.Empty(t, reviews.reviews)

	err := svc.DeleteProduct(context.Background(), "prd_1")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestCatalogService_Categories(t *testing.T) {
	svc, _, _ := newCatalogFixture()
	ctx := context.Background()

	c, err := svc.CreateCategory(ctx, models.CategoryInput{Name: "Desks"})
	require.NoError(t, err)
	_, err = svc.CreateCategory(ctx, models.CategoryInput{Name: "Desks"})
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
	_, err = svc.CreateCategory(ctx, models.CategoryInput{Name: "  "})
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))

	updated, err := svc.UpdateCategory(ctx, c.ID, models.CategoryInput{Name: "Tables"})
	require.NoError(t, err)
	assert.Equal(t, "Tables", updated.Name)

	list, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.DeleteCategory(ctx, c.ID))
	_, err = svc.GetCategory(ctx, c.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
