package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Review struct {
	ID        string    `json:"id" bson:"_id"`
	ProductID string    `json:"productId" bson:"product_id"`
	UserID    string    `json:"userId" bson:"user_id"`
	Rating    int       `json:"rating" bson:"rating"`
	Comment   string    `json:"comment,omitempty" bson:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

type ReviewInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// ReviewSummary is derived on read by scanning all ratings of a product.
type ReviewSummary struct {
	Count   int             `json:"count"`
	Average decimal.Decimal `json:"average"`
}

type ProductReviews struct {
	ProductID string        `json:"productId"`
	Reviews   []Review      `json:"reviews"`
	Summary   ReviewSummary `json:"summary"`
}

// Summarize computes the count and average rating, rounded to two places.
func Summarize(reviews []Review) ReviewSummary {
	if len(reviews) == 0 {
		return ReviewSummary{Average: decimal.Zero}
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	avg := decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(len(reviews)))).Round(2)
	return ReviewSummary{Count: len(reviews), Average: avg}
}
