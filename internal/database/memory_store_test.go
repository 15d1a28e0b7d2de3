package database

import (
	"context"
	"testing"
	"time"

	"social-autoreply-platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMemoryStore_BindBusinessIDOnlyWhenUnset(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	tenant := &models.Tenant{BasicUserID: "basic-1"}
	require.NoError(t, s.SaveTenant(ctx, tenant))

	bound, err := s.BindBusinessID(ctx, tenant.ID, "biz-1")
	require.NoError(t, err)
	assert.True(t, bound)

	bound, err = s.BindBusinessID(ctx, tenant.ID, "biz-2")
	require.NoError(t, err)
	assert.False(t, bound)

	got, err := s.GetTenant(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "biz-1", got.BusinessID)
}

func TestMemoryStore_SetBusinessIDDuplicate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	a := &models.Tenant{BusinessID: "biz-1"}
	b := &models.Tenant{}
	require.NoError(t, s.SaveTenant(ctx, a))
	require.NoError(t, s.SaveTenant(ctx, b))

	err := s.SetBusinessID(ctx, b.ID, "biz-1")
	assert.ErrorIs(t, err, ErrDuplicate)

	err = s.SetBusinessID(ctx, primitive.NewObjectID(), "biz-9")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_UpsertMediaOwnersKeepsFirstTenant(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first := &models.Tenant{ID: primitive.NewObjectID(), BasicUserID: "basic-1"}
	second := &models.Tenant{ID: primitive.NewObjectID(), BasicUserID: "basic-2", BusinessID: "biz-2"}

	require.NoError(t, s.UpsertMediaOwners(ctx, first, []string{"p1"}))
	require.NoError(t, s.UpsertMediaOwners(ctx, second, []string{"p1", "p2"}))

	p1, err := s.FindMediaOwner(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, p1.TenantID)
	assert.Equal(t, "biz-2", p1.BusinessID)

	p2, err := s.FindMediaOwner(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, second.ID, p2.TenantID)
}

func TestMemoryStore_BackfillTenantMediaBusinessIDs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	tenant := &models.Tenant{ID: primitive.NewObjectID()}
	require.NoError(t, s.UpsertMediaOwners(ctx, tenant, []string{"p1", "p2"}))

	n, err := s.BackfillTenantMediaBusinessIDs(ctx, tenant.ID, "biz-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.BackfillTenantMediaBusinessIDs(ctx, tenant.ID, "biz-1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryStore_ClaimReply(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	tenantID := primitive.NewObjectID()

	claimed, err := s.ClaimReply(ctx, &models.ReplyRecord{TenantID: tenantID, CommentID: "c1", PostID: "p1"}, time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = s.ClaimReply(ctx, &models.ReplyRecord{TenantID: tenantID, CommentID: "c1", PostID: "p1"}, time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed, "second claim of a fresh pending record must lose")

	// Same comment id under another tenant is independent.
	claimed, err = s.ClaimReply(ctx, &models.ReplyRecord{TenantID: primitive.NewObjectID(), CommentID: "c1"}, time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	require.NoError(t, s.CompleteReply(ctx, tenantID, "c1", "hello"))
	rec, err := s.GetReply(ctx, tenantID, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.ReplyStatusReplied, rec.Status)
	assert.Equal(t, "hello", rec.ReplyText)
	require.NotNil(t, rec.RepliedAt)

	// Completed records are never released or taken over.
	require.NoError(t, s.ReleaseReply(ctx, tenantID, "c1"))
	claimed, err = s.ClaimReply(ctx, &models.ReplyRecord{TenantID: tenantID, CommentID: "c1"}, time.Nanosecond)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestMemoryStore_ReleaseAndStaleTakeover(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	tenantID := primitive.NewObjectID()

	_, err := s.ClaimReply(ctx, &models.ReplyRecord{TenantID: tenantID, CommentID: "c1"}, 0)
	require.NoError(t, err)
	require.NoError(t, s.ReleaseReply(ctx, tenantID, "c1"))
	_, err = s.GetReply(ctx, tenantID, "c1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.ClaimReply(ctx, &models.ReplyRecord{TenantID: tenantID, CommentID: "c2"}, 0)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	claimed, err := s.ClaimReply(ctx, &models.ReplyRecord{TenantID: tenantID, CommentID: "c2"}, time.Millisecond)
	require.NoError(t, err)
	assert.True(t, claimed, "stale pending claim should be taken over")
	assert.Equal(t, 1, s.ReplyCount())
}

func TestMemoryStore_PostStateAndContext(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	tenantID := primitive.NewObjectID()

	_, err := s.GetPostState(ctx, tenantID, "p1")
	assert.ErrorIs(t, err, ErrNotFound)

	state, err := s.SetPostState(ctx, tenantID, "p1", true)
	require.NoError(t, err)
	assert.True(t, state.AutoReplyEnabled)
	require.NotNil(t, state.EnabledSince)

	found, err := s.FindPostStateByPost(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, tenantID, found.TenantID)

	require.NoError(t, s.SetPostContext(ctx, tenantID, "p1", "We sell vegan cakes."))
	require.NoError(t, s.SetPostContext(ctx, tenantID, "p1", "Vegan cakes, gluten-free on request."))
	pc, err := s.GetPostContext(ctx, tenantID, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Vegan cakes, gluten-free on request.", pc.Text)
}

func TestMemoryStore_ListRepliesNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	tenantID := primitive.NewObjectID()

	for _, id := range []string{"c1", "c2", "c3"} {
		_, err := s.ClaimReply(ctx, &models.ReplyRecord{TenantID: tenantID, CommentID: id}, 0)
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	all, err := s.ListReplies(ctx, tenantID, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c3", all[0].CommentID)

	limited, err := s.ListReplies(ctx, tenantID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
