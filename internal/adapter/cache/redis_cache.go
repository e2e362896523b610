package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/olyamironova/escrow-engine/internal/domain"
	"github.com/olyamironova/escrow-engine/internal/port"
	"github.com/redis/go-redis/v9"
)

var _ port.Cache = (*RedisCache)(nil)

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(addr string, password string, db int, ttl time.Duration) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{
		client: rdb,
		ttl:    ttl,
	}
}

func key(market string) string { return "ob:" + market }

func (c *RedisCache) SetOfferBook(ctx context.Context, market string, ob *domain.OfferBook) error {
	b, err := json.Marshal(ob)
	if err != nil {
		return fmt.Errorf("redis: encode offer book: %w", err)
	}
	return c.client.Set(ctx, key(market), b, c.ttl).Err()
}

func (c *RedisCache) GetOfferBook(ctx context.Context, market string) (*domain.OfferBook, error) {
	b, err := c.client.Get(ctx, key(market)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ob domain.OfferBook
	if err := json.Unmarshal(b, &ob); err != nil {
		return nil, fmt.Errorf("redis: decode offer book: %w", err)
	}
	return &ob, nil
}

func (c *RedisCache) Invalidate(ctx context.Context, market string) error {
	return c.client.Del(ctx, key(market)).Err()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
