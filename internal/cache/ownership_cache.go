package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const ownershipKeyPrefix = "autoreply:owner:"

// OwnershipCache remembers which tenant a webhook business id resolved to.
// A nil *OwnershipCache or nil client is a cache that always misses.
type OwnershipCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewOwnershipCache(client *redis.Client, ttl time.Duration) *OwnershipCache {
	return &OwnershipCache{client: client, ttl: ttl}
}

func ownershipKey(businessID string) string {
	return ownershipKeyPrefix + businessID
}

// Get returns the cached tenant id. Redis errors count as a miss.
func (c *OwnershipCache) Get(ctx context.Context, businessID string) (primitive.ObjectID, bool, error) {
	if c == nil || c.client == nil || businessID == "" {
		return primitive.NilObjectID, false, nil
	}

	val, err := c.client.Get(ctx, ownershipKey(businessID)).Result()
	if errors.Is(err, redis.Nil) {
		return primitive.NilObjectID, false, nil
	}
	if err != nil {
		return primitive.NilObjectID, false, err
	}

	id, err := primitive.ObjectIDFromHex(val)
	if err != nil {
		// Unreadable entry; drop it so the next lookup repopulates.
		_ = c.client.Del(ctx, ownershipKey(businessID)).Err()
		return primitive.NilObjectID, false, nil
	}
	return id, true, nil
}

func (c *OwnershipCache) Set(ctx context.Context, businessID string, tenantID primitive.ObjectID) error {
	if c == nil || c.client == nil || businessID == "" {
		return nil
	}
	return c.client.Set(ctx, ownershipKey(businessID), tenantID.Hex(), c.ttl).Err()
}

func (c *OwnershipCache) Invalidate(ctx context.Context, businessIDs ...string) error {
	if c == nil || c.client == nil || len(businessIDs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(businessIDs))
	for _, id := range businessIDs {
		if id != "" {
			keys = append(keys, ownershipKey(id))
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
