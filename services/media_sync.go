package services

import (
	"context"
	"fmt"

	"social-autoreply-platform/internal/database"
	"social-autoreply-platform/internal/logger"
	"social-autoreply-platform/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MediaLister lists a tenant's recent media from the platform.
type MediaLister interface {
	ListMedia(ctx context.Context, accessToken string, limit int) ([]models.Media, error)
}

// MediaSyncService records which tenant owns each listed post, so later
// webhooks can be attributed by post id.
type MediaSyncService struct {
	store  database.Store
	lister MediaLister
	limit  int
}

func NewMediaSyncService(store database.Store, lister MediaLister, limit int) *MediaSyncService {
	return &MediaSyncService{store: store, lister: lister, limit: limit}
}

func (s *MediaSyncService) SyncTenantMedia(ctx context.Context, tenantID primitive.ObjectID) ([]models.Media, error) {
	tenant, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load tenant: %w", err)
	}

	media, err := s.lister.ListMedia(ctx, tenant.AccessToken, s.limit)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}

	postIDs := make([]string, 0, len(media))
	for _, m := range media {
		if m.ID != "" {
			postIDs = append(postIDs, m.ID)
		}
	}

	if err := s.store.UpsertMediaOwners(ctx, tenant, postIDs); err != nil {
		return nil, err
	}

	logger.Info("Synced tenant media ownership", "tenant_id", tenant.ID.Hex(), "posts", len(postIDs))
	return media, nil
}
