package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func setupTestCache(t *testing.T) *ResultCache {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping redis tests")
	}

	c, err := Connect(context.Background(), Config{Addr: addr, TTL: time.Minute}, nil)
	if err != nil {
		t.Fatalf("Failed to connect to redis: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestResultCacheRoundTrip(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()
	key := "test:estimate:" + uuid.New().String()
	t.Cleanup(func() { c.client.Del(ctx, key) })

	if _, ok, err := c.Get(ctx, key); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	body := map[string]interface{}{"data": map[string]interface{}{"total_cost": 1234.5}}
	if err := c.Set(ctx, key, body); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	data := raw.(map[string]interface{})["data"].(map[string]interface{})
	if data["total_cost"] != 1234.5 {
		t.Errorf("cached body changed: %v", raw)
	}

	ttl := c.client.TTL(ctx, key).Val()
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("unexpected ttl %v", ttl)
	}
}

func TestResultCacheCorruptEntryIsMiss(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()
	key := "test:estimate:" + uuid.New().String()
	t.Cleanup(func() { c.client.Del(ctx, key) })

	c.client.Set(ctx, key, "{not json", time.Minute)

	if _, ok, err := c.Get(ctx, key); err != nil || ok {
		t.Errorf("expected miss for corrupt entry, got ok=%v err=%v", ok, err)
	}
	if n := c.client.Exists(ctx, key).Val(); n != 0 {
		t.Error("corrupt entry should be deleted")
	}
}

func TestNewDefaultsTTL(t *testing.T) {
	c := New(nil, 0, nil)
	if c.TTL() != DefaultTTL {
		t.Errorf("ttl = %v, want %v", c.TTL(), DefaultTTL)
	}
}
