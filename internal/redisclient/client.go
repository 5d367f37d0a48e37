package redisclient

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func cartKey(buyerID int64) string {
	return fmt.Sprintf("cart:%d", buyerID)
}

// GetCart returns the buyer's cart as product id to quantity.
func (c *Client) GetCart(ctx context.Context, buyerID int64) (map[int64]int, error) {
	result, err := c.rdb.HGetAll(ctx, cartKey(buyerID)).Result()
	if err != nil {
		return nil, err
	}

	cart := make(map[int64]int, len(result))
	for field, value := range result {
		productID, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		quantity, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		cart[productID] = quantity
	}
	return cart, nil
}

// SetCartLine upserts one cart line. A zero quantity removes the line.
func (c *Client) SetCartLine(ctx context.Context, buyerID, productID int64, quantity int) error {
	key := cartKey(buyerID)
	if quantity <= 0 {
		return c.rdb.HDel(ctx, key, strconv.FormatInt(productID, 10)).Err()
	}
	return c.rdb.HSet(ctx, key, strconv.FormatInt(productID, 10), quantity).Err()
}

// ClearCart removes the buyer's cart after a successful checkout.
func (c *Client) ClearCart(ctx context.Context, buyerID int64) error {
	return c.rdb.Del(ctx, cartKey(buyerID)).Err()
}

// CacheDiscountPreview stores a validated preview payload with a TTL so
// repeated preview calls for the same code stay cheap.
func (c *Client) CacheDiscountPreview(ctx context.Context, accountID int64, code string, payload []byte, ttl time.Duration) error {
	key := fmt.Sprintf("discount-preview:%d:%s", accountID, code)
	return c.rdb.Set(ctx, key, payload, ttl).Err()
}

// GetDiscountPreview returns a cached preview payload, nil on a miss.
func (c *Client) GetDiscountPreview(ctx context.Context, accountID int64, code string) ([]byte, error) {
	key := fmt.Sprintf("discount-preview:%d:%s", accountID, code)
	payload, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return payload, err
}

// InvalidateDiscountPreview drops a cached preview once the code is consumed.
func (c *Client) InvalidateDiscountPreview(ctx context.Context, accountID int64, code string) error {
	key := fmt.Sprintf("discount-preview:%d:%s", accountID, code)
	return c.rdb.Del(ctx, key).Err()
}
