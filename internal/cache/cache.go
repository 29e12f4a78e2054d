package cache

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Cache is the small key/value surface the services need: read-through caching of
// public documents and short-lived throttling keys.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// SetNX stores key only if it does not exist yet and reports whether it did.
	SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Close() error
}

// New connects to Redis at REDIS_ADDR. Without an address, or when Redis is unreachable,
// it returns a no-op cache so the API keeps working uncached.
func New() Cache {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		log.Info().Msg("REDIS_ADDR not set, caching disabled")
		return Noop{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Error().Err(err).Str("addr", addr).Msg("Failed to connect to Redis, caching disabled")
		_ = client.Close()
		return Noop{}
	}

	log.Info().Str("addr", addr).Msg("Connected to Redis")
	return NewRedis(client)
}

type redisCache struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) Cache {
	return &redisCache{client: client}
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *redisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *redisCache) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, 1, ttl).Result()
}

func (c *redisCache) Close() error {
	return c.client.Close()
}

// Noop never stores anything; SetNX always succeeds.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Noop) Delete(context.Context, string) error { return nil }
func (Noop) SetNX(context.Context, string, time.Duration) (bool, error) { return true, nil }
func (Noop) Close() error { return nil }
