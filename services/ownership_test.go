package services

import (
	"context"
	"testing"
	"time"

	"social-autoreply-platform/internal/cache"
	"social-autoreply-platform/internal/database"
	"social-autoreply-platform/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func saveTenant(t *testing.T, store *database.MemoryStore, tenant *models.Tenant) *models.Tenant {
	t.Helper()
	require.NoError(t, store.SaveTenant(context.Background(), tenant))
	return tenant
}

func TestResolve_DirectBusinessIDBeatsMediaOwner(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	t1 := saveTenant(t, store, &models.Tenant{BusinessID: "B1"})
	t2 := saveTenant(t, store, &models.Tenant{BasicUserID: "basic-2"})
	require.NoError(t, store.UpsertMediaOwners(ctx, t2, []string{"P1"}))

	res, err := NewOwnershipResolver(store, nil).Resolve(ctx, "B1", "P1")
	require.NoError(t, err)
	assert.Equal(t, t1.ID, res.Tenant.ID)
	assert.Equal(t, ResolvedByBusinessID, res.Method)
}

func TestResolve_BasicUserID(t *testing.T) {
	store := database.NewMemoryStore()
	t1 := saveTenant(t, store, &models.Tenant{BasicUserID: "U1"})

	res, err := NewOwnershipResolver(store, nil).Resolve(context.Background(), "U1", "")
	require.NoError(t, err)
	assert.Equal(t, t1.ID, res.Tenant.ID)
	assert.Equal(t, ResolvedByBasicID, res.Method)
	assert.False(t, res.Bound)
}

func TestResolve_MediaOwnerBindsAndBackfills(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	t1 := saveTenant(t, store, &models.Tenant{BasicUserID: "U1"})
	require.NoError(t, store.UpsertMediaOwners(ctx, t1, []string{"P1"}))

	resolver := NewOwnershipResolver(store, nil)
	res, err := resolver.Resolve(ctx, "B1", "P1")
	require.NoError(t, err)
	assert.Equal(t, ResolvedByMediaOwner, res.Method)
	assert.True(t, res.Bound)

	owner, err := store.FindMediaOwner(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "B1", owner.BusinessID)

	// The next event for any post resolves directly.
	res, err = resolver.Resolve(ctx, "B1", "P-other")
	require.NoError(t, err)
	assert.Equal(t, ResolvedByBusinessID, res.Method)
	assert.Equal(t, t1.ID, res.Tenant.ID)
}

func TestResolve_DoesNotOverwriteExistingBusinessID(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	t1 := saveTenant(t, store, &models.Tenant{BusinessID: "B-old"})
	require.NoError(t, store.UpsertMediaOwners(ctx, t1, []string{"P1"}))

	res, err := NewOwnershipResolver(store, nil).Resolve(ctx, "B-new", "P1")
	require.NoError(t, err)
	assert.Equal(t, t1.ID, res.Tenant.ID)
	assert.False(t, res.Bound)

	got, err := store.GetTenant(ctx, t1.ID)
	require.NoError(t, err)
	assert.Equal(t, "B-old", got.BusinessID)
}

func TestResolve_PostStateAndContextFallbacks(t *testing.T) {
	ctx := context.Background()

	t.Run("post state", func(t *testing.T) {
		store := database.NewMemoryStore()
		t1 := saveTenant(t, store, &models.Tenant{BasicUserID: "U1"})
		_, err := store.SetPostState(ctx, t1.ID, "P1", true)
		require.NoError(t, err)

		res, err := NewOwnershipResolver(store, nil).Resolve(ctx, "B1", "P1")
		require.NoError(t, err)
		assert.Equal(t, ResolvedByPostState, res.Method)
		assert.True(t, res.Bound)
	})

	t.Run("context", func(t *testing.T) {
		store := database.NewMemoryStore()
		t1 := saveTenant(t, store, &models.Tenant{BasicUserID: "U1"})
		require.NoError(t, store.SetPostContext(ctx, t1.ID, "P1", "hours: 9-5"))

		res, err := NewOwnershipResolver(store, nil).Resolve(ctx, "B1", "P1")
		require.NoError(t, err)
		assert.Equal(t, ResolvedByContext, res.Method)
		assert.Equal(t, t1.ID, res.Tenant.ID)
	})
}

func TestResolve_NotFound(t *testing.T) {
	store := database.NewMemoryStore()
	resolver := NewOwnershipResolver(store, nil)

	_, err := resolver.Resolve(context.Background(), "B1", "P1")
	assert.ErrorIs(t, err, ErrTenantNotFound)

	_, err = resolver.Resolve(context.Background(), "B1", "")
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

func TestResolve_UsesCacheOnlyForOwnIDs(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ownership := cache.NewOwnershipCache(rdb, time.Hour)

	store := database.NewMemoryStore()
	t1 := saveTenant(t, store, &models.Tenant{BusinessID: "B1"})
	t2 := saveTenant(t, store, &models.Tenant{BusinessID: "B2"})
	require.NoError(t, store.UpsertMediaOwners(ctx, t2, []string{"P2"}))

	resolver := NewOwnershipResolver(store, ownership)

	res, err := resolver.Resolve(ctx, "B1", "P1")
	require.NoError(t, err)
	assert.Equal(t, ResolvedByBusinessID, res.Method)

	res, err = resolver.Resolve(ctx, "B1", "P1")
	require.NoError(t, err)
	assert.Equal(t, ResolvedByCache, res.Method)
	assert.Equal(t, t1.ID, res.Tenant.ID)

	// A sender inferred through another tenant's post is not cached.
	res, err = resolver.Resolve(ctx, "B9", "P2")
	require.NoError(t, err)
	assert.Equal(t, ResolvedByMediaOwner, res.Method)
	_, ok, err := ownership.Get(ctx, "B9")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolve_StaleCacheEntryIsDropped(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ownership := cache.NewOwnershipCache(rdb, time.Hour)

	store := database.NewMemoryStore()
	t1 := saveTenant(t, store, &models.Tenant{BusinessID: "B1"})
	t2 := saveTenant(t, store, &models.Tenant{})
	require.NoError(t, ownership.Set(ctx, "B1", t2.ID))

	res, err := NewOwnershipResolver(store, ownership).Resolve(ctx, "B1", "")
	require.NoError(t, err)
	assert.Equal(t, t1.ID, res.Tenant.ID)
	assert.Equal(t, ResolvedByBusinessID, res.Method)

	cached, ok, err := ownership.Get(ctx, "B1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, t1.ID, cached)
}

func TestResolve_OrphanedMediaOwnerFallsThrough(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	gone := &models.Tenant{ID: primitive.NewObjectID()}
	require.NoError(t, store.UpsertMediaOwners(ctx, gone, []string{"P1"}))
	t1 := saveTenant(t, store, &models.Tenant{BasicUserID: "U1"})
	_, err := store.SetPostState(ctx, t1.ID, "P1", true)
	require.NoError(t, err)

	res, err := NewOwnershipResolver(store, nil).Resolve(ctx, "B1", "P1")
	require.NoError(t, err)
	assert.Equal(t, t1.ID, res.Tenant.ID)
	assert.Equal(t, ResolvedByPostState, res.Method)
	assert.True(t, res.Bound)

	// Nothing else names an owner.
	require.NoError(t, store.UpsertMediaOwners(ctx, gone, []string{"P2"}))
	_, err = NewOwnershipResolver(store, nil).Resolve(ctx, "B2", "P2")
	assert.ErrorIs(t, err, ErrTenantNotFound)
}
