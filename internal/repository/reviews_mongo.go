package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tm-acme-shop/acme-shop-store-service/internal/apperr"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const reviewsCollection = "reviews"

// MongoReviewStore implements ReviewStore on a MongoDB collection. A unique
// index on (product_id, user_id) enforces one review per user and product.
type MongoReviewStore struct {
	collection *mongo.Collection
	logger     *logging.Logger
}

var _ ReviewStore = (*MongoReviewStore)(nil)

func NewMongoReviewStore(db *mongo.Database) *MongoReviewStore {
	return &MongoReviewStore{
		collection: db.Collection(reviewsCollection),
		logger:     logging.New("review-store"),
	}
}

// EnsureIndexes creates the indexes the store relies on.
func (s *MongoReviewStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "product_id", Value: 1}, {Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("product_user_unique"),
	})
	if err != nil {
		return fmt.Errorf("create review index: %w", err)
	}
	return nil
}

// ListByProduct returns the reviews of a product, oldest first.
func (s *MongoReviewStore) ListByProduct(ctx context.Context, productID string) ([]models.Review, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.M{"product_id": productID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find reviews: %w", err)
	}
	defer cursor.Close(ctx)

	reviews := make([]models.Review, 0)
	if err := cursor.All(ctx, &reviews); err != nil {
		return nil, fmt.Errorf("decode reviews: %w", err)
	}
	return reviews, nil
}

func (s *MongoReviewStore) Insert(ctx context.Context, r *models.Review) error {
	_, err := s.collection.InsertOne(ctx, r)
	if mongo.IsDuplicateKeyError(err) {
		return apperr.ErrDuplicateReview
	}
	if err != nil {
		s.logger.Error("Failed to insert review", logging.Fields{
			"product_id": r.ProductID,
			"user_id":    r.UserID,
			"error":      err.Error(),
		})
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

// Update rewrites the caller's own review and returns the stored result.
func (s *MongoReviewStore) Update(ctx context.Context, productID, userID string, input models.ReviewInput, at time.Time) (*models.Review, error) {
	filter := bson.M{"product_id": productID, "user_id": userID}
	update := bson.M{"$set": bson.M{
		"rating":     input.Rating,
		"comment":    input.Comment,
		"updated_at": at,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var review models.Review
	err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&review)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.ErrReviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}
	return &review, nil
}

func (s *MongoReviewStore) Delete(ctx context.Context, productID, userID string) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"product_id": productID, "user_id": userID})
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if result.DeletedCount == 0 {
		return apperr.ErrReviewNotFound
	}
	return nil
}

// DeleteByProduct removes every review of a product.
func (s *MongoReviewStore) DeleteByProduct(ctx context.Context, productID string) error {
	result, err := s.collection.DeleteMany(ctx, bson.M{"product_id": productID})
	if err != nil {
		return fmt.Errorf("delete product reviews: %w", err)
	}
	s.logger.Info("Product reviews deleted", logging.Fields{
		"product_id": productID,
		"count":      result.DeletedCount,
	})
	return nil
}
