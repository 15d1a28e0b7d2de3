package services

import (
	"context"
	"errors"
	"fmt"

	"social-autoreply-platform/internal/cache"
	"social-autoreply-platform/internal/database"
	"social-autoreply-platform/internal/logger"
	"social-autoreply-platform/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var ErrTenantNotFound = errors.New("no tenant owns this event")

// Resolution methods, in the order they are tried.
const (
	ResolvedByCache      = "cache"
	ResolvedByBusinessID = "business_id"
	ResolvedByBasicID    = "basic_id"
	ResolvedByMediaOwner = "media_owner"
	ResolvedByPostState  = "post_state"
	ResolvedByContext    = "context"
)

// Resolution is a resolved tenant and how it was found.
type Resolution struct {
	Tenant *models.Tenant
	Method string
	// Bound is true when this resolution wrote businessID onto the tenant.
	Bound bool
}

// OwnershipResolver maps a webhook sender id and post id to a tenant.
type OwnershipResolver struct {
	store database.Store
	cache *cache.OwnershipCache
}

func NewOwnershipResolver(store database.Store, ownershipCache *cache.OwnershipCache) *OwnershipResolver {
	return &OwnershipResolver{store: store, cache: ownershipCache}
}

// Resolve tries, first match wins: business id, basic id, media owner row,
// then any post state or context row for postID. The last two steps bind
// businessID to the tenant when it has none.
func (r *OwnershipResolver) Resolve(ctx context.Context, businessID, postID string) (*Resolution, error) {
	ctx, span := otel.Tracer("ownership-resolver").Start(ctx, "autoreply.resolve_owner")
	defer span.End()

	res, err := r.resolve(ctx, businessID, postID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("autoreply.resolved_by", res.Method),
		attribute.String("autoreply.tenant_id", res.Tenant.ID.Hex()),
	)

	if res.Method != ResolvedByCache && identifiedBy(res.Tenant, businessID) {
		if err := r.cache.Set(ctx, businessID, res.Tenant.ID); err != nil {
			logger.Warn("Ownership cache write failed", "business_id", businessID, "error", err)
		}
	}
	return res, nil
}

func (r *OwnershipResolver) resolve(ctx context.Context, businessID, postID string) (*Resolution, error) {
	if tenant := r.fromCache(ctx, businessID); tenant != nil {
		return &Resolution{Tenant: tenant, Method: ResolvedByCache}, nil
	}

	if businessID != "" {
		tenant, err := r.store.FindTenantByBusinessID(ctx, businessID)
		if err == nil {
			return &Resolution{Tenant: tenant, Method: ResolvedByBusinessID}, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("lookup by business id: %w", err)
		}

		tenant, err = r.store.FindTenantByBasicUserID(ctx, businessID)
		if err == nil {
			return &Resolution{Tenant: tenant, Method: ResolvedByBasicID}, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("lookup by basic id: %w", err)
		}
	}

	if postID == "" {
		return nil, ErrTenantNotFound
	}

	owner, err := r.store.FindMediaOwner(ctx, postID)
	switch {
	case err == nil:
		res, err := r.adopt(ctx, owner.TenantID, businessID, ResolvedByMediaOwner)
		switch {
		case err == nil:
			if owner.BusinessID == "" && businessID != "" {
				if err := r.store.BackfillMediaBusinessID(ctx, postID, businessID); err != nil {
					logger.Warn("Media owner business id backfill failed", "post_id", postID, "business_id", businessID, "error", err)
				}
			}
			return res, nil
		case !errors.Is(err, ErrTenantNotFound):
			return nil, err
		}
		logger.Warn("Media owner points at a missing tenant", "post_id", postID, "tenant_id", owner.TenantID.Hex())
	case !errors.Is(err, database.ErrNotFound):
		return nil, fmt.Errorf("lookup media owner: %w", err)
	}

	// No usable ownership row: the UI-side state and context rows are keyed by
	// tenant, so any row for this post names its owner.
	state, err := r.store.FindPostStateByPost(ctx, postID)
	switch {
	case err == nil:
		res, err := r.adopt(ctx, state.TenantID, businessID, ResolvedByPostState)
		if !errors.Is(err, ErrTenantNotFound) {
			return res, err
		}
	case !errors.Is(err, database.ErrNotFound):
		return nil, fmt.Errorf("lookup post state: %w", err)
	}

	pc, err := r.store.FindPostContextByPost(ctx, postID)
	switch {
	case err == nil:
		return r.adopt(ctx, pc.TenantID, businessID, ResolvedByContext)
	case !errors.Is(err, database.ErrNotFound):
		return nil, fmt.Errorf("lookup post context: %w", err)
	}

	return nil, ErrTenantNotFound
}

// adopt loads tenantID and binds businessID to it when the tenant has none.
func (r *OwnershipResolver) adopt(ctx context.Context, tenantID primitive.ObjectID, businessID, method string) (*Resolution, error) {
	tenant, err := r.store.GetTenant(ctx, tenantID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load tenant %s: %w", tenantID.Hex(), err)
	}

	res := &Resolution{Tenant: tenant, Method: method}
	if businessID == "" {
		return res, nil
	}

	if tenant.BusinessID != "" {
		if tenant.BusinessID != businessID {
			logger.Info("Not binding business id; tenant already has one",
				"tenant_id", tenant.ID.Hex(), "business_id", businessID, "existing_business_id", tenant.BusinessID)
		}
		return res, nil
	}

	bound, err := r.store.BindBusinessID(ctx, tenant.ID, businessID)
	if err != nil {
		// The event still belongs to this tenant even if the id is taken.
		logger.Warn("Business id binding failed", "tenant_id", tenant.ID.Hex(), "business_id", businessID, "error", err)
		return res, nil
	}
	if bound {
		logger.Info("Bound business id to tenant", "tenant_id", tenant.ID.Hex(), "business_id", businessID, "via", method)
		tenant.BusinessID = businessID
		res.Bound = true
	}
	return res, nil
}

func (r *OwnershipResolver) fromCache(ctx context.Context, businessID string) *models.Tenant {
	tenantID, ok, err := r.cache.Get(ctx, businessID)
	if err != nil {
		logger.Warn("Ownership cache read failed", "business_id", businessID, "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	tenant, err := r.store.GetTenant(ctx, tenantID)
	if err != nil || !identifiedBy(tenant, businessID) {
		_ = r.cache.Invalidate(ctx, businessID)
		return nil
	}
	return tenant
}

// identifiedBy reports whether businessID is one of the tenant's own ids, as
// opposed to a tenant inferred from post ownership alone.
func identifiedBy(tenant *models.Tenant, businessID string) bool {
	return businessID != "" && (tenant.BusinessID == businessID || tenant.BasicUserID == businessID)
}
