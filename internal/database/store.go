package database

import (
	"context"
	"errors"
	"time"

	"social-autoreply-platform/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate key")
)

// Collection names shared by the Mongo store and the index bootstrap.
const (
	TenantsCollection     = "tenants"
	MediaOwnersCollection = "media_owners"
	ContextsCollection    = "contexts"
	PostStatesCollection  = "post_states"
	RepliedCollection     = "replied"
)

type TenantRepository interface {
	GetTenant(ctx context.Context, id primitive.ObjectID) (*models.Tenant, error)
	FindTenantByBusinessID(ctx context.Context, businessID string) (*models.Tenant, error)
	FindTenantByBasicUserID(ctx context.Context, basicUserID string) (*models.Tenant, error)
	// BindBusinessID sets the business id only when the tenant has none yet.
	// It reports whether the tenant was updated.
	BindBusinessID(ctx context.Context, tenantID primitive.ObjectID, businessID string) (bool, error)
	// SetBusinessID overwrites the business id. ErrDuplicate when another
	// tenant already owns it.
	SetBusinessID(ctx context.Context, tenantID primitive.ObjectID, businessID string) error
	SaveTenant(ctx context.Context, tenant *models.Tenant) error
	UpdateCredential(ctx context.Context, tenantID primitive.ObjectID, accessToken, tokenType string, expiresAt *time.Time) error
	ListTenantsExpiringBefore(ctx context.Context, before time.Time) ([]models.Tenant, error)
	ListTenants(ctx context.Context) ([]models.Tenant, error)
}

type MediaOwnerRepository interface {
	FindMediaOwner(ctx context.Context, postID string) (*models.MediaOwner, error)
	// UpsertMediaOwners records tenant as owner of postIDs. An existing row
	// keeps its tenant; only the observed account ids are refreshed.
	UpsertMediaOwners(ctx context.Context, tenant *models.Tenant, postIDs []string) error
	// BackfillMediaBusinessID sets the business id of one row when unset.
	BackfillMediaBusinessID(ctx context.Context, postID, businessID string) error
	// BackfillTenantMediaBusinessIDs sets businessID on every row of tenantID lacking one.
	BackfillTenantMediaBusinessIDs(ctx context.Context, tenantID primitive.ObjectID, businessID string) (int64, error)
}

type PostStateRepository interface {
	GetPostState(ctx context.Context, tenantID primitive.ObjectID, postID string) (*models.PostState, error)
	// FindPostStateByPost returns any tenant's state for postID.
	FindPostStateByPost(ctx context.Context, postID string) (*models.PostState, error)
	SetPostState(ctx context.Context, tenantID primitive.ObjectID, postID string, enabled bool) (*models.PostState, error)
}

type ContextRepository interface {
	GetPostContext(ctx context.Context, tenantID primitive.ObjectID, postID string) (*models.PostContext, error)
	// FindPostContextByPost returns any tenant's context for postID.
	FindPostContextByPost(ctx context.Context, postID string) (*models.PostContext, error)
	SetPostContext(ctx context.Context, tenantID primitive.ObjectID, postID, text string) error
}

type ReplyRepository interface {
	// ClaimReply atomically inserts a pending record for (tenant, comment).
	// It returns false when a record already exists, unless that record is a
	// pending claim older than staleAfter, which is taken over.
	ClaimReply(ctx context.Context, rec *models.ReplyRecord, staleAfter time.Duration) (bool, error)
	CompleteReply(ctx context.Context, tenantID primitive.ObjectID, commentID, replyText string) error
	// ReleaseReply removes a pending claim so a redelivery can try again.
	ReleaseReply(ctx context.Context, tenantID primitive.ObjectID, commentID string) error
	GetReply(ctx context.Context, tenantID primitive.ObjectID, commentID string) (*models.ReplyRecord, error)
	ListReplies(ctx context.Context, tenantID primitive.ObjectID, limit int64) ([]models.ReplyRecord, error)
}

// Store is every repository the pipeline and the operator API use.
type Store interface {
	TenantRepository
	MediaOwnerRepository
	PostStateRepository
	ContextRepository
	ReplyRepository
}
