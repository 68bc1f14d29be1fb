package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *Client {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	c, err := NewClient(addr, os.Getenv("TEST_REDIS_PASSWORD"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestIdempotencyKeyIncludesUser(t *testing.T) {
	assert.Equal(t, "idempotency:checkout:u1:cart-1", idempotencyKey("u1", "cart-1"))
	assert.NotEqual(t, idempotencyKey("u1", "cart-1"), idempotencyKey("u2", "cart-1"))
}

func TestIdempotencyLifecycle(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	user, key := uuid.New().String(), uuid.New().String()

	claimed, err := c.ClaimIdempotencyKey(ctx, user, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = c.ClaimIdempotencyKey(ctx, user, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)

	_, pending, found, err := c.GetIdempotencyResult(ctx, user, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, pending)

	require.NoError(t, c.StoreIdempotencyResult(ctx, user, key, []byte(`{"transaction_id":"t1"}`), time.Minute))

	// A late release must not drop a stored result.
	require.NoError(t, c.ReleaseIdempotencyKey(ctx, user, key))
	result, pending, found, err := c.GetIdempotencyResult(ctx, user, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.False(t, pending)
	assert.JSONEq(t, `{"transaction_id":"t1"}`, string(result))
}

func TestReleaseFreesPendingKey(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	user, key := uuid.New().String(), uuid.New().String()

	claimed, err := c.ClaimIdempotencyKey(ctx, user, key, time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, c.ReleaseIdempotencyKey(ctx, user, key))

	_, _, found, err := c.GetIdempotencyResult(ctx, user, key)
	require.NoError(t, err)
	assert.False(t, found)

	claimed, err = c.ClaimIdempotencyKey(ctx, user, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestIdempotencyKeysAreScopedToUser(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	key := uuid.New().String()
	alice, bob := uuid.New().String(), uuid.New().String()

	claimed, err := c.ClaimIdempotencyKey(ctx, alice, key, time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, c.StoreIdempotencyResult(ctx, alice, key, []byte(`{"transaction_id":"a"}`), time.Minute))

	_, _, found, err := c.GetIdempotencyResult(ctx, bob, key)
	require.NoError(t, err)
	assert.False(t, found)

	claimed, err = c.ClaimIdempotencyKey(ctx, bob, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestJSONCache(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	id := uuid.New().String()

	type entry struct {
		Title string `json:"title"`
		Stock int    `json:"stock"`
	}

	var got entry
	hit, err := c.GetJSON(ctx, BookKey(id), &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.SetJSON(ctx, BookKey(id), entry{Title: "Dune", Stock: 3}, time.Minute))
	hit, err = c.GetJSON(ctx, BookKey(id), &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, entry{Title: "Dune", Stock: 3}, got)

	removed, err := c.Delete(ctx, BookKey(id), BookKey(uuid.New().String()))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	removed, err = c.Delete(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
