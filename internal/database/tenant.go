package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"social-autoreply-platform/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store over one MongoDB database.
type MongoStore struct {
	db          *mongo.Database
	tenants     *mongo.Collection
	mediaOwners *mongo.Collection
	contexts    *mongo.Collection
	postStates  *mongo.Collection
	replied     *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore wraps db and makes sure the required indexes exist.
func NewMongoStore(ctx context.Context, db *mongo.Database) (*MongoStore, error) {
	if err := EnsureIndexes(ctx, db); err != nil {
		return nil, err
	}

	return &MongoStore{
		db:          db,
		tenants:     db.Collection(TenantsCollection),
		mediaOwners: db.Collection(MediaOwnersCollection),
		contexts:    db.Collection(ContextsCollection),
		postStates:  db.Collection(PostStatesCollection),
		replied:     db.Collection(RepliedCollection),
	}, nil
}

// Database exposes the underlying handle for maintenance commands.
func (s *MongoStore) Database() *mongo.Database {
	return s.db
}

func (s *MongoStore) GetTenant(ctx context.Context, id primitive.ObjectID) (*models.Tenant, error) {
	return s.findTenant(ctx, bson.M{"_id": id})
}

func (s *MongoStore) FindTenantByBusinessID(ctx context.Context, businessID string) (*models.Tenant, error) {
	if businessID == "" {
		return nil, ErrNotFound
	}
	return s.findTenant(ctx, bson.M{"business_id": businessID})
}

func (s *MongoStore) FindTenantByBasicUserID(ctx context.Context, basicUserID string) (*models.Tenant, error) {
	if basicUserID == "" {
		return nil, ErrNotFound
	}
	return s.findTenant(ctx, bson.M{"basic_user_id": basicUserID})
}

func (s *MongoStore) findTenant(ctx context.Context, filter bson.M) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := s.tenants.FindOne(ctx, filter).Decode(&tenant); err != nil {
		return nil, notFound(err)
	}
	return &tenant, nil
}

func (s *MongoStore) BindBusinessID(ctx context.Context, tenantID primitive.ObjectID, businessID string) (bool, error) {
	filter := bson.M{
		"_id": tenantID,
		"$or": bson.A{
			bson.M{"business_id": bson.M{"$exists": false}},
			bson.M{"business_id": nil},
			bson.M{"business_id": ""},
		},
	}
	update := bson.M{"$set": bson.M{"business_id": businessID, "updated_at": time.Now()}}

	res, err := s.tenants.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, duplicate(err)
	}
	return res.ModifiedCount == 1, nil
}

func (s *MongoStore) SetBusinessID(ctx context.Context, tenantID primitive.ObjectID, businessID string) error {
	res, err := s.tenants.UpdateOne(ctx,
		bson.M{"_id": tenantID},
		bson.M{"$set": bson.M{"business_id": businessID, "updated_at": time.Now()}},
	)
	if err != nil {
		return duplicate(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) SaveTenant(ctx context.Context, tenant *models.Tenant) error {
	now := time.Now()
	if tenant.ID.IsZero() {
		tenant.ID = primitive.NewObjectID()
	}
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = now
	}
	tenant.UpdatedAt = now

	_, err := s.tenants.ReplaceOne(ctx, bson.M{"_id": tenant.ID}, tenant, options.Replace().SetUpsert(true))
	return duplicate(err)
}

func (s *MongoStore) UpdateCredential(ctx context.Context, tenantID primitive.ObjectID, accessToken, tokenType string, expiresAt *time.Time) error {
	set := bson.M{
		"access_token":     accessToken,
		"token_expires_at": expiresAt,
		"updated_at":       time.Now(),
	}
	if tokenType != "" {
		set["token_type"] = tokenType
	}

	res, err := s.tenants.UpdateOne(ctx, bson.M{"_id": tenantID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ListTenantsExpiringBefore(ctx context.Context, before time.Time) ([]models.Tenant, error) {
	return s.listTenants(ctx, bson.M{"token_expires_at": bson.M{"$ne": nil, "$lt": before}})
}

func (s *MongoStore) ListTenants(ctx context.Context) ([]models.Tenant, error) {
	return s.listTenants(ctx, bson.M{})
}

func (s *MongoStore) listTenants(ctx context.Context, filter bson.M) ([]models.Tenant, error) {
	cursor, err := s.tenants.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tenants []models.Tenant
	if err := cursor.All(ctx, &tenants); err != nil {
		return nil, fmt.Errorf("decode tenants: %w", err)
	}
	return tenants, nil
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func duplicate(err error) error {
	if err != nil && mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}
