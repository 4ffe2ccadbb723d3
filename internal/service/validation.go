package service

import (
	"strings"

	"github.com/tm-acme-shop/acme-shop-store-service/internal/apperr"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/models"
)

const (
	defaultProductPageSize = 10
	maxProductPageSize     = 100
	defaultOrderPageSize   = 20
	maxOrderPageSize       = 100
	minRating              = 1
	maxRating              = 5
)

// ValidateProductInput validates a product create or update request.
func ValidateProductInput(in *models.ProductInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return apperr.InvalidInput("name", "name is required")
	}
	if in.Price.IsNegative() {
		return apperr.InvalidInput("price", "price must not be negative")
	}
	if in.Stock < 0 {
		return apperr.InvalidInput("stock", "stock must not be negative")
	}
	return nil
}

func ValidateCategoryInput(in *models.CategoryInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return apperr.InvalidInput("name", "name is required")
	}
	return nil
}

func ValidateReviewInput(in *models.ReviewInput) error {
	if in.Rating < minRating || in.Rating > maxRating {
		return apperr.InvalidInput("rating", "rating must be between 1 and 5")
	}
	in.Comment = strings.TrimSpace(in.Comment)
	return nil
}

// ValidateStatusTarget accepts the statuses an administrator may request.
// Orders are only ever created as pending, so pending is never a target.
func ValidateStatusTarget(status models.OrderStatus) error {
	if !status.Valid() || status == models.OrderStatusPending {
		return apperr.InvalidInput("status", "status must be one of processing, shipped, delivered, canceled")
	}
	return nil
}

// NormalizeProductFilter applies paging defaults and rejects unusable filters.
func NormalizeProductFilter(f *models.ProductFilter) error {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = defaultProductPageSize
	}
	if f.Limit > maxProductPageSize {
		f.Limit = maxProductPageSize
	}

	switch f.Sort {
	case "":
		f.Sort = models.SortNewest
	case models.SortNewest, models.SortPriceAsc, models.SortPriceDesc, models.SortName:
	default:
		return apperr.InvalidInput("sort", "unsupported sort order")
	}

	if f.MinPrice != nil && f.MinPrice.IsNegative() {
		return apperr.InvalidInput("minPrice", "must not be negative")
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return apperr.InvalidInput("maxPrice", "must not be below minPrice")
	}
	return nil
}

func normalizeOrderFilter(f *models.OrderListFilter) {
	if f.Limit <= 0 {
		f.Limit = defaultOrderPageSize
	}
	if f.Limit > maxOrderPageSize {
		f.Limit = maxOrderPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}
