package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestCache(t *testing.T, ttl time.Duration) (*OwnershipCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewOwnershipCache(client, ttl), mr
}

func TestOwnershipCache_SetGet(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()
	tenantID := primitive.NewObjectID()

	_, ok, err := c.Get(ctx, "B1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "B1", tenantID))
	got, ok, err := c.Get(ctx, "B1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, tenantID, got)

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "B1")
	require.NoError(t, err)
	assert.False(t, ok, "entry should expire after ttl")
}

func TestOwnershipCache_Invalidate(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "B1", primitive.NewObjectID()))
	require.NoError(t, c.Invalidate(ctx, "B1", ""))

	_, ok, err := c.Get(ctx, "B1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOwnershipCache_CorruptEntry(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	require.NoError(t, mr.Set(ownershipKey("B1"), "not-an-object-id"))

	_, ok, err := c.Get(context.Background(), "B1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(ownershipKey("B1")))
}

func TestOwnershipCache_Disabled(t *testing.T) {
	var c *OwnershipCache
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "B1", primitive.NewObjectID()))
	_, ok, err := c.Get(ctx, "B1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Invalidate(ctx, "B1"))
}

func TestOwnershipCache_RedisDown(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	mr.Close()

	_, ok, err := c.Get(context.Background(), "B1")
	assert.Error(t, err)
	assert.False(t, ok)
}
