package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultTTL = time.Hour

// ResultCache keeps raw estimator responses in Redis, keyed by payload
// fingerprint, so an identical resubmission does not reach the backend.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Connect dials Redis and verifies the connection with a ping.
func Connect(ctx context.Context, cfg Config, logger *zap.Logger) (*ResultCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return New(client, cfg.TTL, logger), nil
}

func New(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultCache{client: client, ttl: ttl, logger: logger}
}

func (c *ResultCache) Get(ctx context.Context, key string) (interface{}, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		// A corrupt entry is treated as a miss and dropped.
		c.logger.Warn("discarding unreadable cache entry", zap.String("key", key), zap.Error(err))
		c.client.Del(ctx, key)
		return nil, false, nil
	}
	return raw, true, nil
}

func (c *ResultCache) Set(ctx context.Context, key string, raw interface{}) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (c *ResultCache) TTL() time.Duration {
	return c.ttl
}

func (c *ResultCache) Close() error {
	return c.client.Close()
}
