package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-redis/redis/v8"
)

//go:embed scripts/release_pending.lua
var releasePendingScript string

// pendingMarker is stored under an idempotency key while the request that
// claimed it is still running.
const pendingMarker = "__pending__"

const (
	statisticsKey = "cache:transactions:statistics"
)

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
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

	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releasePendingScript),
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection is usable.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func BookKey(bookID string) string {
	return fmt.Sprintf("cache:book:%s", bookID)
}

func StatisticsKey() string {
	return statisticsKey
}

func idempotencyKey(userID, key string) string {
	return fmt.Sprintf("idempotency:checkout:%s:%s", userID, key)
}

// ClaimIdempotencyKey marks userID's key as in progress. It returns false if
// the key was already claimed or completed.
func (c *Client) ClaimIdempotencyKey(ctx context.Context, userID, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, idempotencyKey(userID, key), pendingMarker, ttl).Result()
}

// GetIdempotencyResult returns the stored response for key. pending is true
// while the claiming request has not finished; found is false if the key is
// unknown.
func (c *Client) GetIdempotencyResult(ctx context.Context, userID, key string) (result []byte, pending bool, found bool, err error) {
	val, err := c.rdb.Get(ctx, idempotencyKey(userID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, false, nil
	}
	if err != nil {
		return nil, false, false, err
	}
	if string(val) == pendingMarker {
		return nil, true, true, nil
	}
	return val, false, true, nil
}

// StoreIdempotencyResult replaces the pending marker with the final response.
func (c *Client) StoreIdempotencyResult(ctx context.Context, userID, key string, result []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, idempotencyKey(userID, key), result, ttl).Err()
}

// ReleaseIdempotencyKey drops a claim that never produced a result so the
// client may retry with the same key.
func (c *Client) ReleaseIdempotencyKey(ctx context.Context, userID, key string) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{idempotencyKey(userID, key)}, pendingMarker).Result()
	if err != nil {
		return fmt.Errorf("release idempotency script failed: %w", err)
	}
	return nil
}

// GetJSON decodes the cached value under key into dest. It reports false on a
// cache miss.
func (c *Client) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := sonic.Unmarshal(val, dest); err != nil {
		return false, fmt.Errorf("failed to decode cached %s: %w", key, err)
	}
	return true, nil
}

// SetJSON caches value under key for ttl.
func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

// Delete drops the given cache keys in one round trip.
func (c *Client) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	removed, err := c.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to delete cache keys: %w", err)
	}
	return removed, nil
}
