package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "qrfraud:verdict:"

// RedisCache is a redis-backed verdict cache shared between instances.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to redis and verifies the connection. ttl <= 0
// stores verdicts without expiration.
func NewRedisCache(addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

func (c *RedisCache) key(digest string) string {
	return redisKeyPrefix + digest
}

func (c *RedisCache) Get(ctx context.Context, key string) (*CachedVerdict, error) {
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var verdict CachedVerdict
	if err := json.Unmarshal(raw, &verdict); err != nil {
		return nil, fmt.Errorf("corrupt cached verdict: %w", err)
	}
	return &verdict, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, verdict *CachedVerdict) error {
	data, err := json.Marshal(verdict)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), data, c.ttl).Err()
}

func (c *RedisCache) Close(ctx context.Context) error {
	return c.client.Close()
}
