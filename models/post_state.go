package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PostState is the per-post auto-reply toggle.
type PostState struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID         primitive.ObjectID `bson:"tenant_id" json:"tenant_id"`
	PostID           string             `bson:"post_id" json:"post_id"`
	AutoReplyEnabled bool               `bson:"auto_reply_enabled" json:"auto_reply_enabled"`
	EnabledSince     *time.Time         `bson:"enabled_since,omitempty" json:"enabled_since,omitempty"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `bson:"updated_at" json:"updated_at"`
}
