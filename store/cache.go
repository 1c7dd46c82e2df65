package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

type cacheEntry struct {
	value   []byte
	expires time.Time
}

// LRUCache is a bounded in-process cache. Entries expire after the TTL
// given to Set, capped by the cache-wide maxTTL.
type LRUCache struct {
	lru *expirable.LRU[string, cacheEntry]
	now func() time.Time
}

// NewLRUCache builds a cache holding at most size entries.
func NewLRUCache(size int, maxTTL time.Duration) *LRUCache {
	if size <= 0 {
		size = 256
	}
	return &LRUCache{
		lru: expirable.NewLRU[string, cacheEntry](size, nil, maxTTL),
		now: time.Now,
	}
}

func (c *LRUCache) Get(_ context.Context, key string) ([]byte, bool) {
	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if !entry.expires.IsZero() && !c.now().Before(entry.expires) {
		c.lru.Remove(key)
		return nil, false
	}
	return entry.value, true
}

func (c *LRUCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	entry := cacheEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expires = c.now().Add(ttl)
	}
	c.lru.Add(key, entry)
}

// Len reports the number of live entries.
func (c *LRUCache) Len() int {
	return c.lru.Len()
}

// RedisCache shares cached responses between processes.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisClient connects and pings the server.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisCache namespaces keys with prefix.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

// Get treats any error as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Debug("redis cache get failed", slog.String("key", key), slog.Any("error", err))
		}
		return nil, false
	}
	return val, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		slog.Debug("redis cache set failed", slog.String("key", key), slog.Any("error", err))
	}
}

// Close closes the client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
