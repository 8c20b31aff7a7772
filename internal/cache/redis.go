// Package cache shares computed WeightState values across processes through Redis.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sawpanic/allostat/internal/domain"
)

// Config holds Redis connection settings
type Config struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"` // Default: "allostat:weights:"
	TTL      time.Duration `yaml:"ttl"`    // Default: 24h
}

// DefaultConfig returns Redis defaults; the cache is disabled until configured
func DefaultConfig() Config {
	return Config{
		Addr:   "localhost:6379",
		Prefix: "allostat:weights:",
		TTL:    24 * time.Hour,
	}
}

// ApplyEnv overrides the address from ALLOSTAT_REDIS_ADDR and enables the cache
func (c *Config) ApplyEnv() {
	if addr := os.Getenv("ALLOSTAT_REDIS_ADDR"); addr != "" {
		c.Addr = addr
		c.Enabled = true
	}
}

// Dial connects to Redis and verifies the connection
func Dial(ctx context.Context, cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  5 * time.Minute,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return rdb, nil
}

// WeightCache stores WeightState JSON under prefix+window hash
type WeightCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewWeightCache wraps a Redis client
func NewWeightCache(client redis.Cmdable, prefix string, ttl time.Duration) *WeightCache {
	return &WeightCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *WeightCache) key(hash string) string {
	return c.prefix + hash
}

// Get returns the state stored for hash; a missing key is a miss, not an error
func (c *WeightCache) Get(ctx context.Context, hash string) (*domain.WeightState, bool, error) {
	val, err := c.client.Get(ctx, c.key(hash)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var state domain.WeightState
	if err := json.Unmarshal(val, &state); err != nil {
		return nil, false, fmt.Errorf("decoding cached weights %s: %w", hash, err)
	}
	return &state, true, nil
}

// Put stores state under its own window hash
func (c *WeightCache) Put(ctx context.Context, state *domain.WeightState) error {
	if state.Window.Hash == "" {
		return fmt.Errorf("weight state has no window hash")
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding weights: %w", err)
	}
	if err := c.client.Set(ctx, c.key(state.Window.Hash), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Invalidate removes every cached state under the prefix
func (c *WeightCache) Invalidate(ctx context.Context) error {
	keys, err := c.client.Keys(ctx, c.prefix+"*").Result()
	if err != nil {
		return fmt.Errorf("redis keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}
