package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"social-autoreply-platform/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type tenantPostKey struct {
	tenantID primitive.ObjectID
	postID   string
}

type replyKey struct {
	tenantID  primitive.ObjectID
	commentID string
}

// MemoryStore is an in-process Store used by tests and local runs without
// MongoDB. It applies the same uniqueness rules as the Mongo indexes.
type MemoryStore struct {
	mu          sync.Mutex
	tenants     map[primitive.ObjectID]models.Tenant
	mediaOwners map[string]models.MediaOwner
	contexts    map[tenantPostKey]models.PostContext
	postStates  map[tenantPostKey]models.PostState
	replies     map[replyKey]models.ReplyRecord
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants:     make(map[primitive.ObjectID]models.Tenant),
		mediaOwners: make(map[string]models.MediaOwner),
		contexts:    make(map[tenantPostKey]models.PostContext),
		postStates:  make(map[tenantPostKey]models.PostState),
		replies:     make(map[replyKey]models.ReplyRecord),
	}
}

func (m *MemoryStore) GetTenant(_ context.Context, id primitive.ObjectID) (*models.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (m *MemoryStore) FindTenantByBusinessID(_ context.Context, businessID string) (*models.Tenant, error) {
	return m.findTenant(func(t models.Tenant) bool { return businessID != "" && t.BusinessID == businessID })
}

func (m *MemoryStore) FindTenantByBasicUserID(_ context.Context, basicUserID string) (*models.Tenant, error) {
	return m.findTenant(func(t models.Tenant) bool { return basicUserID != "" && t.BasicUserID == basicUserID })
}

func (m *MemoryStore) findTenant(match func(models.Tenant) bool) (*models.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.tenants {
		if match(t) {
			return &t, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) BindBusinessID(_ context.Context, tenantID primitive.ObjectID, businessID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tenants[tenantID]
	if !ok || t.BusinessID != "" {
		return false, nil
	}
	if m.businessIDTakenLocked(tenantID, businessID) {
		return false, ErrDuplicate
	}
	t.BusinessID = businessID
	t.UpdatedAt = time.Now()
	m.tenants[tenantID] = t
	return true, nil
}

func (m *MemoryStore) SetBusinessID(_ context.Context, tenantID primitive.ObjectID, businessID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tenants[tenantID]
	if !ok {
		return ErrNotFound
	}
	if m.businessIDTakenLocked(tenantID, businessID) {
		return ErrDuplicate
	}
	t.BusinessID = businessID
	t.UpdatedAt = time.Now()
	m.tenants[tenantID] = t
	return nil
}

func (m *MemoryStore) businessIDTakenLocked(tenantID primitive.ObjectID, businessID string) bool {
	for id, other := range m.tenants {
		if id != tenantID && businessID != "" && other.BusinessID == businessID {
			return true
		}
	}
	return false
}

func (m *MemoryStore) SaveTenant(_ context.Context, tenant *models.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tenant.ID.IsZero() {
		tenant.ID = primitive.NewObjectID()
	}
	for id, other := range m.tenants {
		if id == tenant.ID {
			continue
		}
		if tenant.BusinessID != "" && other.BusinessID == tenant.BusinessID {
			return ErrDuplicate
		}
		if tenant.BasicUserID != "" && other.BasicUserID == tenant.BasicUserID {
			return ErrDuplicate
		}
	}

	now := time.Now()
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = now
	}
	tenant.UpdatedAt = now
	m.tenants[tenant.ID] = *tenant
	return nil
}

func (m *MemoryStore) UpdateCredential(_ context.Context, tenantID primitive.ObjectID, accessToken, tokenType string, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tenants[tenantID]
	if !ok {
		return ErrNotFound
	}
	t.AccessToken = accessToken
	if tokenType != "" {
		t.TokenType = tokenType
	}
	t.TokenExpiresAt = expiresAt
	t.UpdatedAt = time.Now()
	m.tenants[tenantID] = t
	return nil
}

func (m *MemoryStore) ListTenantsExpiringBefore(_ context.Context, before time.Time) ([]models.Tenant, error) {
	return m.listTenants(func(t models.Tenant) bool {
		return t.TokenExpiresAt != nil && t.TokenExpiresAt.Before(before)
	}), nil
}

func (m *MemoryStore) ListTenants(_ context.Context) ([]models.Tenant, error) {
	return m.listTenants(func(models.Tenant) bool { return true }), nil
}

func (m *MemoryStore) listTenants(match func(models.Tenant) bool) []models.Tenant {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Tenant
	for _, t := range m.tenants {
		if match(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *MemoryStore) FindMediaOwner(_ context.Context, postID string) (*models.MediaOwner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	owner, ok := m.mediaOwners[postID]
	if !ok {
		return nil, ErrNotFound
	}
	return &owner, nil
}

func (m *MemoryStore) UpsertMediaOwners(_ context.Context, tenant *models.Tenant, postIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, postID := range postIDs {
		owner, ok := m.mediaOwners[postID]
		if !ok {
			owner = models.MediaOwner{
				ID:        primitive.NewObjectID(),
				PostID:    postID,
				TenantID:  tenant.ID,
				CreatedAt: now,
			}
		}
		if tenant.BasicUserID != "" {
			owner.BasicUserID = tenant.BasicUserID
		}
		if tenant.BusinessID != "" {
			owner.BusinessID = tenant.BusinessID
		}
		owner.UpdatedAt = now
		m.mediaOwners[postID] = owner
	}
	return nil
}

func (m *MemoryStore) BackfillMediaBusinessID(_ context.Context, postID, businessID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	owner, ok := m.mediaOwners[postID]
	if ok && owner.BusinessID == "" {
		owner.BusinessID = businessID
		owner.UpdatedAt = time.Now()
		m.mediaOwners[postID] = owner
	}
	return nil
}

func (m *MemoryStore) BackfillTenantMediaBusinessIDs(_ context.Context, tenantID primitive.ObjectID, businessID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for postID, owner := range m.mediaOwners {
		if owner.TenantID == tenantID && owner.BusinessID == "" {
			owner.BusinessID = businessID
			owner.UpdatedAt = time.Now()
			m.mediaOwners[postID] = owner
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) GetPostState(_ context.Context, tenantID primitive.ObjectID, postID string) (*models.PostState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.postStates[tenantPostKey{tenantID, postID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &state, nil
}

func (m *MemoryStore) FindPostStateByPost(_ context.Context, postID string) (*models.PostState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, state := range m.postStates {
		if key.postID == postID {
			return &state, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) SetPostState(_ context.Context, tenantID primitive.ObjectID, postID string, enabled bool) (*models.PostState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	key := tenantPostKey{tenantID, postID}
	state, ok := m.postStates[key]
	if !ok {
		state = models.PostState{
			ID:        primitive.NewObjectID(),
			TenantID:  tenantID,
			PostID:    postID,
			CreatedAt: now,
		}
	}
	state.AutoReplyEnabled = enabled
	if enabled {
		state.EnabledSince = &now
	}
	state.UpdatedAt = now
	m.postStates[key] = state
	return &state, nil
}

func (m *MemoryStore) GetPostContext(_ context.Context, tenantID primitive.ObjectID, postID string) (*models.PostContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pc, ok := m.contexts[tenantPostKey{tenantID, postID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &pc, nil
}

func (m *MemoryStore) FindPostContextByPost(_ context.Context, postID string) (*models.PostContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, pc := range m.contexts {
		if key.postID == postID {
			return &pc, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) SetPostContext(_ context.Context, tenantID primitive.ObjectID, postID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	key := tenantPostKey{tenantID, postID}
	pc, ok := m.contexts[key]
	if !ok {
		pc = models.PostContext{
			ID:        primitive.NewObjectID(),
			TenantID:  tenantID,
			PostID:    postID,
			CreatedAt: now,
		}
	}
	pc.Text = text
	pc.UpdatedAt = now
	m.contexts[key] = pc
	return nil
}

func (m *MemoryStore) ClaimReply(_ context.Context, rec *models.ReplyRecord, staleAfter time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	key := replyKey{rec.TenantID, rec.CommentID}
	if existing, ok := m.replies[key]; ok {
		stale := staleAfter > 0 &&
			existing.Status == models.ReplyStatusPending &&
			existing.ClaimedAt.Before(now.Add(-staleAfter))
		if !stale {
			return false, nil
		}
		existing.PostID = rec.PostID
		existing.CommentText = rec.CommentText
		existing.ClaimedAt = now
		existing.UpdatedAt = now
		m.replies[key] = existing
		*rec = existing
		return true, nil
	}

	rec.ID = primitive.NewObjectID()
	rec.Status = models.ReplyStatusPending
	rec.ClaimedAt = now
	rec.CreatedAt = now
	rec.UpdatedAt = now
	m.replies[key] = *rec
	return true, nil
}

func (m *MemoryStore) CompleteReply(_ context.Context, tenantID primitive.ObjectID, commentID, replyText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := replyKey{tenantID, commentID}
	rec, ok := m.replies[key]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	rec.Status = models.ReplyStatusReplied
	rec.ReplyText = replyText
	rec.RepliedAt = &now
	rec.UpdatedAt = now
	m.replies[key] = rec
	return nil
}

func (m *MemoryStore) ReleaseReply(_ context.Context, tenantID primitive.ObjectID, commentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := replyKey{tenantID, commentID}
	if rec, ok := m.replies[key]; ok && rec.Status == models.ReplyStatusPending {
		delete(m.replies, key)
	}
	return nil
}

func (m *MemoryStore) GetReply(_ context.Context, tenantID primitive.ObjectID, commentID string) (*models.ReplyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.replies[replyKey{tenantID, commentID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *MemoryStore) ListReplies(_ context.Context, tenantID primitive.ObjectID, limit int64) ([]models.ReplyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []models.ReplyRecord{}
	for key, rec := range m.replies {
		if key.tenantID == tenantID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ReplyCount returns how many reply records exist across all tenants.
func (m *MemoryStore) ReplyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.replies)
}
