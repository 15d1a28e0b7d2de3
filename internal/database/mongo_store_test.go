package database

import (
	"context"
	"os"
	"testing"
	"time"

	"social-autoreply-platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// newTestMongoStore connects to MONGO_URI and uses a throwaway database.
func newTestMongoStore(t *testing.T) *MongoStore {
	t.Helper()

	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set; skipping MongoDB integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)

	db := client.Database("autoreply_test_" + primitive.NewObjectID().Hex())
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	store, err := NewMongoStore(ctx, db)
	require.NoError(t, err)
	return store
}

func TestMongoStore_ClaimReplyIsExclusive(t *testing.T) {
	s := newTestMongoStore(t)
	ctx := context.Background()
	tenantID := primitive.NewObjectID()

	claimed, err := s.ClaimReply(ctx, &models.ReplyRecord{TenantID: tenantID, CommentID: "c1", PostID: "p1"}, time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = s.ClaimReply(ctx, &models.ReplyRecord{TenantID: tenantID, CommentID: "c1", PostID: "p1"}, time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)

	require.NoError(t, s.CompleteReply(ctx, tenantID, "c1", "Yes, all our cakes are vegan."))
	rec, err := s.GetReply(ctx, tenantID, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.ReplyStatusReplied, rec.Status)

	require.NoError(t, s.ReleaseReply(ctx, tenantID, "c1"))
	_, err = s.GetReply(ctx, tenantID, "c1")
	assert.NoError(t, err, "completed records survive release")
}

func TestMongoStore_TenantBusinessID(t *testing.T) {
	s := newTestMongoStore(t)
	ctx := context.Background()

	a := &models.Tenant{BasicUserID: "basic-a", AccessToken: "tok"}
	b := &models.Tenant{BasicUserID: "basic-b", AccessToken: "tok"}
	require.NoError(t, s.SaveTenant(ctx, a))
	require.NoError(t, s.SaveTenant(ctx, b))

	bound, err := s.BindBusinessID(ctx, a.ID, "biz-a")
	require.NoError(t, err)
	assert.True(t, bound)

	bound, err = s.BindBusinessID(ctx, a.ID, "biz-other")
	require.NoError(t, err)
	assert.False(t, bound)

	err = s.SetBusinessID(ctx, b.ID, "biz-a")
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := s.FindTenantByBusinessID(ctx, "biz-a")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
}

func TestMongoStore_UpsertMediaOwners(t *testing.T) {
	s := newTestMongoStore(t)
	ctx := context.Background()

	first := &models.Tenant{ID: primitive.NewObjectID(), BasicUserID: "basic-1"}
	second := &models.Tenant{ID: primitive.NewObjectID(), BusinessID: "biz-2"}

	require.NoError(t, s.UpsertMediaOwners(ctx, first, []string{"p1"}))
	require.NoError(t, s.UpsertMediaOwners(ctx, second, []string{"p1"}))

	owner, err := s.FindMediaOwner(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, owner.TenantID)
	assert.Equal(t, "biz-2", owner.BusinessID)
}
