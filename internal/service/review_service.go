package service

import (
	"context"

	"github.com/tm-acme-shop/acme-shop-store-service/internal/apperr"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/clock"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/ids"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/repository"
)

// ReviewService manages product ratings, at most one per user and product.
type ReviewService struct {
	reviews  repository.ReviewStore
	products repository.ProductRepository
	clock    clock.Clock
	ids      ids.Generator
	logger   *logging.Logger
}

func NewReviewService(reviews repository.ReviewStore, products repository.ProductRepository, clk clock.Clock, gen ids.Generator) *ReviewService {
	return &ReviewService{
		reviews:  reviews,
		products: products,
		clock:    clk,
		ids:      gen,
		logger:   logging.New("review-service"),
	}
}

// AddReview records the actor's rating of a product.
func (s *ReviewService) AddReview(ctx context.Context, actor models.Actor, productID string, in models.ReviewInput) (*models.Review, error) {
	if err := ValidateReviewInput(&in); err != nil {
		return nil, err
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}

	existing, err := s.reviews.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	for _, r := range existing {
		if r.UserID == actor.UserID {
			return nil, apperr.ErrDuplicateReview
		}
	}

	now := s.clock.Now()
	review := &models.Review{
		ID:        s.ids.NewID("rev"),
		ProductID: productID,
		UserID:    actor.UserID,
		Rating:    in.Rating,
		Comment:   in.Comment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.reviews.Insert(ctx, review); err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).Info("Review added", logging.Fields{
		"product_id": productID,
		"user_id":    actor.UserID,
		"rating":     in.Rating,
	})
	return review, nil
}

// UpdateReview changes the actor's existing review.
func (s *ReviewService) UpdateReview(ctx context.Context, actor models.Actor, productID string, in models.ReviewInput) (*models.Review, error) {
	if err := ValidateReviewInput(&in); err != nil {
		return nil, err
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.reviews.Update(ctx, productID, actor.UserID, in, s.clock.Now())
}

// DeleteReview removes the actor's review.
func (s *ReviewService) DeleteReview(ctx context.Context, actor models.Actor, productID string) error {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return err
	}
	return s.reviews.Delete(ctx, productID, actor.UserID)
}

// ListReviews returns the reviews of a product with their derived summary.
func (s *ReviewService) ListReviews(ctx context.Context, productID string) (*models.ProductReviews, error) {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}

	reviews, err := s.reviews.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	return &models.ProductReviews{
		ProductID: productID,
		Reviews:   reviews,
		Summary:   models.Summarize(reviews),
	}, nil
}
