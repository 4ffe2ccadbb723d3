package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/apperr"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoReviewStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("insert duplicate maps to duplicate review", func(mt *mtest.T) {
		store := NewMongoReviewStore(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		err := store.Insert(context.Background(), &models.Review{ID: "rev_1", ProductID: "prd_1", UserID: "usr_1", Rating: 5})
		assert.True(t, errors.Is(err, apperr.ErrDuplicateReview), "got %v", err)
	})

	mt.Run("insert succeeds", func(mt *mtest.T) {
		store := NewMongoReviewStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := store.Insert(context.Background(), &models.Review{ID: "rev_1", ProductID: "prd_1", UserID: "usr_1", Rating: 5})
		assert.NoError(t, err)
	})

	mt.Run("list by product", func(mt *mtest.T) {
		store := NewMongoReviewStore(mt.DB)
		ns := mt.Coll.Database().Name() + "." + reviewsCollection
		created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, bson.D{
				{Key: "_id", Value: "rev_1"},
				{Key: "product_id", Value: "prd_1"},
				{Key: "user_id", Value: "usr_1"},
				{Key: "rating", Value: 4},
				{Key: "created_at", Value: created},
			}),
			mtest.CreateCursorResponse(0, ns, mtest.NextBatch, bson.D{
				{Key: "_id", Value: "rev_2"},
				{Key: "product_id", Value: "prd_1"},
				{Key: "user_id", Value: "usr_2"},
				{Key: "rating", Value: 2},
				{Key: "created_at", Value: created.Add(time.Hour)},
			}),
		)

		reviews, err := store.ListByProduct(context.Background(), "prd_1")
		require.NoError(t, err)
		require.Len(t, reviews, 2)
		assert.Equal(t, "usr_1", reviews[0].UserID)
		assert.Equal(t, 2, reviews[1].Rating)
	})

	mt.Run("delete missing review", func(mt *mtest.T) {
		store := NewMongoReviewStore(mt.DB)
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 0}})

		err := store.Delete(context.Background(), "prd_1", "usr_1")
		assert.True(t, errors.Is(err, apperr.ErrReviewNotFound), "got %v", err)
	})

	mt.Run("update missing review", func(mt *mtest.T) {
		store := NewMongoReviewStore(mt.DB)
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: nil}})

		_, err := store.Update(context.Background(), "prd_1", "usr_1", models.ReviewInput{Rating: 3}, time.Now())
		assert.True(t, errors.Is(err, apperr.ErrReviewNotFound), "got %v", err)
	})
}
