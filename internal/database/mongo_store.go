package database

import (
	"context"
	"fmt"
	"time"

	"social-autoreply-platform/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// unsetBusinessID matches rows whose business_id was never learned.
var unsetBusinessID = bson.A{
	bson.M{"business_id": bson.M{"$exists": false}},
	bson.M{"business_id": nil},
	bson.M{"business_id": ""},
}

func (s *MongoStore) FindMediaOwner(ctx context.Context, postID string) (*models.MediaOwner, error) {
	var owner models.MediaOwner
	if err := s.mediaOwners.FindOne(ctx, bson.M{"post_id": postID}).Decode(&owner); err != nil {
		return nil, notFound(err)
	}
	return &owner, nil
}

func (s *MongoStore) UpsertMediaOwners(ctx context.Context, tenant *models.Tenant, postIDs []string) error {
	if len(postIDs) == 0 {
		return nil
	}

	now := time.Now()
	writes := make([]mongo.WriteModel, 0, len(postIDs))
	for _, postID := range postIDs {
		set := bson.M{"updated_at": now}
		if tenant.BasicUserID != "" {
			set["basic_user_id"] = tenant.BasicUserID
		}
		if tenant.BusinessID != "" {
			set["business_id"] = tenant.BusinessID
		}

		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"post_id": postID}).
			SetUpdate(bson.M{
				"$set": set,
				"$setOnInsert": bson.M{
					"post_id":    postID,
					"tenant_id":  tenant.ID,
					"created_at": now,
				},
			}).
			SetUpsert(true))
	}

	if _, err := s.mediaOwners.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("upsert media owners: %w", err)
	}
	return nil
}

func (s *MongoStore) BackfillMediaBusinessID(ctx context.Context, postID, businessID string) error {
	_, err := s.mediaOwners.UpdateOne(ctx,
		bson.M{"post_id": postID, "$or": unsetBusinessID},
		bson.M{"$set": bson.M{"business_id": businessID, "updated_at": time.Now()}},
	)
	return err
}

func (s *MongoStore) BackfillTenantMediaBusinessIDs(ctx context.Context, tenantID primitive.ObjectID, businessID string) (int64, error) {
	res, err := s.mediaOwners.UpdateMany(ctx,
		bson.M{"tenant_id": tenantID, "$or": unsetBusinessID},
		bson.M{"$set": bson.M{"business_id": businessID, "updated_at": time.Now()}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) GetPostState(ctx context.Context, tenantID primitive.ObjectID, postID string) (*models.PostState, error) {
	return s.findPostState(ctx, bson.M{"tenant_id": tenantID, "post_id": postID})
}

func (s *MongoStore) FindPostStateByPost(ctx context.Context, postID string) (*models.PostState, error) {
	return s.findPostState(ctx, bson.M{"post_id": postID})
}

func (s *MongoStore) findPostState(ctx context.Context, filter bson.M) (*models.PostState, error) {
	var state models.PostState
	if err := s.postStates.FindOne(ctx, filter).Decode(&state); err != nil {
		return nil, notFound(err)
	}
	return &state, nil
}

func (s *MongoStore) SetPostState(ctx context.Context, tenantID primitive.ObjectID, postID string, enabled bool) (*models.PostState, error) {
	now := time.Now()
	set := bson.M{"auto_reply_enabled": enabled, "updated_at": now}
	if enabled {
		set["enabled_since"] = now
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var state models.PostState
	err := s.postStates.FindOneAndUpdate(ctx,
		bson.M{"tenant_id": tenantID, "post_id": postID},
		bson.M{
			"$set":         set,
			"$setOnInsert": bson.M{"created_at": now},
		},
		opts,
	).Decode(&state)
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *MongoStore) GetPostContext(ctx context.Context, tenantID primitive.ObjectID, postID string) (*models.PostContext, error) {
	return s.findPostContext(ctx, bson.M{"tenant_id": tenantID, "post_id": postID})
}

func (s *MongoStore) FindPostContextByPost(ctx context.Context, postID string) (*models.PostContext, error) {
	return s.findPostContext(ctx, bson.M{"post_id": postID})
}

func (s *MongoStore) findPostContext(ctx context.Context, filter bson.M) (*models.PostContext, error) {
	var pc models.PostContext
	if err := s.contexts.FindOne(ctx, filter).Decode(&pc); err != nil {
		return nil, notFound(err)
	}
	return &pc, nil
}

func (s *MongoStore) SetPostContext(ctx context.Context, tenantID primitive.ObjectID, postID, text string) error {
	now := time.Now()
	_, err := s.contexts.UpdateOne(ctx,
		bson.M{"tenant_id": tenantID, "post_id": postID},
		bson.M{
			"$set":         bson.M{"text": text, "updated_at": now},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *MongoStore) ClaimReply(ctx context.Context, rec *models.ReplyRecord, staleAfter time.Duration) (bool, error) {
	now := time.Now()
	rec.ID = primitive.NewObjectID()
	rec.Status = models.ReplyStatusPending
	rec.ClaimedAt = now
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := s.replied.InsertOne(ctx, rec)
	if err == nil {
		return true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return false, fmt.Errorf("claim reply: %w", err)
	}
	if staleAfter <= 0 {
		return false, nil
	}

	// A pending claim whose holder never completed or released it.
	res, err := s.replied.UpdateOne(ctx,
		bson.M{
			"tenant_id":  rec.TenantID,
			"comment_id": rec.CommentID,
			"status":     models.ReplyStatusPending,
			"claimed_at": bson.M{"$lt": now.Add(-staleAfter)},
		},
		bson.M{"$set": bson.M{
			"post_id":      rec.PostID,
			"comment_text": rec.CommentText,
			"claimed_at":   now,
			"updated_at":   now,
		}},
	)
	if err != nil {
		return false, fmt.Errorf("take over stale claim: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

func (s *MongoStore) CompleteReply(ctx context.Context, tenantID primitive.ObjectID, commentID, replyText string) error {
	now := time.Now()
	res, err := s.replied.UpdateOne(ctx,
		bson.M{"tenant_id": tenantID, "comment_id": commentID},
		bson.M{"$set": bson.M{
			"status":     models.ReplyStatusReplied,
			"reply_text": replyText,
			"replied_at": now,
			"updated_at": now,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ReleaseReply(ctx context.Context, tenantID primitive.ObjectID, commentID string) error {
	_, err := s.replied.DeleteOne(ctx, bson.M{
		"tenant_id":  tenantID,
		"comment_id": commentID,
		"status":     models.ReplyStatusPending,
	})
	return err
}

func (s *MongoStore) GetReply(ctx context.Context, tenantID primitive.ObjectID, commentID string) (*models.ReplyRecord, error) {
	var rec models.ReplyRecord
	err := s.replied.FindOne(ctx, bson.M{"tenant_id": tenantID, "comment_id": commentID}).Decode(&rec)
	if err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

func (s *MongoStore) ListReplies(ctx context.Context, tenantID primitive.ObjectID, limit int64) ([]models.ReplyRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := s.replied.Find(ctx, bson.M{"tenant_id": tenantID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := []models.ReplyRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode replies: %w", err)
	}
	return records, nil
}
