package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"social-autoreply-platform/internal/database"
	"social-autoreply-platform/internal/instagram"
	"social-autoreply-platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeTokenRefresher struct {
	fail map[string]bool
}

func (f *fakeTokenRefresher) RefreshToken(_ context.Context, token string) (*instagram.RefreshedToken, error) {
	if f.fail[token] {
		return nil, errors.New("token revoked")
	}
	return &instagram.RefreshedToken{AccessToken: token + "-new", TokenType: "bearer", ExpiresIn: 5184000}, nil
}

func TestCredentialRefresher_RefreshExpiring(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()

	soon := time.Now().Add(24 * time.Hour)
	later := time.Now().Add(60 * 24 * time.Hour)
	expiring := saveTenant(t, store, &models.Tenant{BusinessID: "B1", AccessToken: "tok-1", TokenExpiresAt: &soon})
	revoked := saveTenant(t, store, &models.Tenant{BusinessID: "B2", AccessToken: "tok-2", TokenExpiresAt: &soon})
	fresh := saveTenant(t, store, &models.Tenant{BusinessID: "B3", AccessToken: "tok-3", TokenExpiresAt: &later})
	saveTenant(t, store, &models.Tenant{BusinessID: "B4", AccessToken: "tok-4"})

	r := NewCredentialRefresher(store, &fakeTokenRefresher{fail: map[string]bool{"tok-2": true}}, 7*24*time.Hour, nil)
	refreshed, failed, err := r.RefreshExpiring(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed)
	assert.Equal(t, 1, failed)

	got, err := store.GetTenant(ctx, expiring.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok-1-new", got.AccessToken)
	require.NotNil(t, got.TokenExpiresAt)
	assert.True(t, got.TokenExpiresAt.After(later.Add(-time.Hour)))

	got, err = store.GetTenant(ctx, revoked.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", got.AccessToken)

	got, err = store.GetTenant(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok-3", got.AccessToken)
}

func TestCronService_RejectsBadExpression(t *testing.T) {
	r := NewCredentialRefresher(database.NewMemoryStore(), &fakeTokenRefresher{}, time.Hour, nil)
	assert.Error(t, NewCronService().ScheduleCredentialRefresh("not a cron", r))
	require.NoError(t, NewCronService().ScheduleCredentialRefresh("0 3 * * *", r))
}

type fakeLister struct {
	token string
	media []models.Media
	err   error
}

func (f *fakeLister) ListMedia(_ context.Context, token string, _ int) ([]models.Media, error) {
	f.token = token
	return f.media, f.err
}

func TestMediaSync_RecordsOwnership(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	t1 := saveTenant(t, store, &models.Tenant{BasicUserID: "U1", AccessToken: "tok-1"})
	lister := &fakeLister{media: []models.Media{{ID: "P1"}, {ID: ""}, {ID: "P2", Caption: "menu"}}}

	media, err := NewMediaSyncService(store, lister, 12).SyncTenantMedia(ctx, t1.ID)
	require.NoError(t, err)
	assert.Len(t, media, 3)
	assert.Equal(t, "tok-1", lister.token)

	for _, postID := range []string{"P1", "P2"} {
		owner, err := store.FindMediaOwner(ctx, postID)
		require.NoError(t, err)
		assert.Equal(t, t1.ID, owner.TenantID)
		assert.Equal(t, "U1", owner.BasicUserID)
	}
}

func TestMediaSync_ListFailure(t *testing.T) {
	store := database.NewMemoryStore()
	t1 := saveTenant(t, store, &models.Tenant{AccessToken: "tok"})

	_, err := NewMediaSyncService(store, &fakeLister{err: errors.New("graph down")}, 12).SyncTenantMedia(context.Background(), t1.ID)
	assert.ErrorContains(t, err, "graph down")
}

func TestExportReplies(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	t1 := saveTenant(t, store, &models.Tenant{BusinessID: "B1"})

	for _, id := range []string{"C1", "C2"} {
		ok, err := store.ClaimReply(ctx, &models.ReplyRecord{TenantID: t1.ID, PostID: "P1", CommentID: id, CommentText: "hi"}, 0)
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.NoError(t, store.CompleteReply(ctx, t1.ID, "C1", "hello!"))

	data, n, err := NewExportService(store).ExportReplies(ctx, t1.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{repliesSheetName}, f.GetSheetList())
	rows, err := f.GetRows(repliesSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Comment ID", rows[0][0])

	statuses := map[string]string{}
	for _, row := range rows[1:] {
		statuses[row[0]] = row[4]
	}
	assert.Equal(t, map[string]string{"C1": models.ReplyStatusReplied, "C2": models.ReplyStatusPending}, statuses)
}
