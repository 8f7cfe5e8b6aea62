package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/judoassistant/tournament-sync/internal/server/models"
	"github.com/redis/go-redis/v9"
)

const listingKey = "tournament-sync:listing"

// RedisClient is the subset of go-redis client methods used by RedisCache.
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// RedisCache stores the listing as one JSON value with a TTL, so a missed
// invalidation is bounded by the TTL.
type RedisCache struct {
	client RedisClient
	ttl    time.Duration
}

// NewRedisCache connects to addr and verifies the connection with PING.
func NewRedisCache(ctx context.Context, addr string, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: ping failed: %w", addr, err)
	}
	return NewRedisCacheWithClient(client, ttl), nil
}

func NewRedisCacheWithClient(client RedisClient, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, day string) (*models.Listing, bool, error) {
	raw, err := r.client.Get(ctx, listingKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var l models.Listing
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, false, fmt.Errorf("decode cached listing: %w", err)
	}
	if l.Day != day {
		return nil, false, nil
	}
	return &l, true, nil
}

func (r *RedisCache) Set(ctx context.Context, l *models.Listing) error {
	raw, err := json.Marshal(l)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, listingKey, raw, r.ttl).Err()
}

func (r *RedisCache) Invalidate(ctx context.Context) error {
	return r.client.Del(ctx, listingKey).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
