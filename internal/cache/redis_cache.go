package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "shopledger:report:"
	keyGeneration = "shopledger:report-gen"
)

// RedisReportCache stores entries under the current generation's key space.
// Invalidate is a single INCR of the generation counter; entries of older
// generations are left to expire with their TTL.
type RedisReportCache struct {
	client *redis.Client
}

func NewRedisReportCache(addr string, password string, db int) *RedisReportCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisReportCache{client: client}
}

func (c *RedisReportCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisReportCache) Close() error {
	return c.client.Close()
}

func (c *RedisReportCache) generation(ctx context.Context) (Generation, error) {
	n, err := c.client.Get(ctx, keyGeneration).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return Generation(n), nil
}

func entryKey(gen Generation, key string) string {
	return fmt.Sprintf("%s%d:%s", keyPrefix, gen, key)
}

func (c *RedisReportCache) Get(ctx context.Context, key string, dest any) (Generation, bool, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return 0, false, err
	}
	val, err := c.client.Get(ctx, entryKey(gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return gen, false, nil
	}
	if err != nil {
		return gen, false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return gen, false, err
	}
	return gen, true, nil
}

// Set stores value for gen. Entries always expire, so values written for a
// stale generation do not accumulate.
func (c *RedisReportCache) Set(ctx context.Context, gen Generation, key string, value any, ttl time.Duration) error {
	if value == nil || ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, entryKey(gen, key), payload, ttl).Err()
}

// Invalidate drops every cached report by moving to a new generation.
func (c *RedisReportCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, keyGeneration).Err()
}
