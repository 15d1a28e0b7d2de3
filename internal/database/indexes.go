package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson" // Use bson for index keys
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the unique keys the auto-reply pipeline relies on.
// Sparse uniques let tenants exist before their platform ids are known.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		TenantsCollection: {
			{
				Keys:    bson.D{{Key: "basic_user_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetSparse(true),
			},
			{
				Keys:    bson.D{{Key: "business_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetSparse(true),
			},
			{Keys: bson.D{{Key: "token_expires_at", Value: 1}}},
		},
		MediaOwnersCollection: {
			{
				Keys:    bson.D{{Key: "post_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}}},
			{Keys: bson.D{{Key: "business_id", Value: 1}}},
		},
		ContextsCollection: {
			{
				Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "post_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "post_id", Value: 1}}},
		},
		PostStatesCollection: {
			{
				Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "post_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "post_id", Value: 1}}},
		},
		RepliedCollection: {
			{
				Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "comment_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}

	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}

	return nil
}
