package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/models"
)

const (
	cartKeyPrefix  = "cart:user:"
	defaultCartTTL = 7 * 24 * time.Hour
)

// RedisCartStore implements CartStore with one JSON document per user.
type RedisCartStore struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *logging.Logger
}

var _ CartStore = (*RedisCartStore)(nil)

func NewRedisCartStore(client redis.Cmdable, ttl time.Duration) *RedisCartStore {
	if ttl == 0 {
		ttl = defaultCartTTL
	}
	return &RedisCartStore{
		client: client,
		ttl:    ttl,
		logger: logging.New("cart-store"),
	}
}

func cartKey(userID string) string {
	return cartKeyPrefix + userID
}

// Get loads the cart of userID. A missing cart yields nil, nil.
func (s *RedisCartStore) Get(ctx context.Context, userID string) (*models.Cart, error) {
	data, err := s.client.Get(ctx, cartKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		s.logger.Error("Cart get error", logging.Fields{"user_id": userID, "error": err.Error()})
		return nil, fmt.Errorf("get cart: %w", err)
	}

	var cart models.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return &cart, nil
}

// Save stores the cart and refreshes its expiry.
func (s *RedisCartStore) Save(ctx context.Context, cart *models.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}

	if err := s.client.Set(ctx, cartKey(cart.UserID), data, s.ttl).Err(); err != nil {
		s.logger.Error("Cart save error", logging.Fields{"user_id": cart.UserID, "error": err.Error()})
		return fmt.Errorf("save cart: %w", err)
	}

	s.logger.Debug("Cart saved", logging.Fields{"user_id": cart.UserID, "lines": len(cart.Lines)})
	return nil
}

func (s *RedisCartStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
