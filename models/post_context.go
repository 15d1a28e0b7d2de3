package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PostContext is the free text a tenant attached to one post.
type PostContext struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID  primitive.ObjectID `bson:"tenant_id" json:"tenant_id"`
	PostID    string             `bson:"post_id" json:"post_id"`
	Text      string             `bson:"text" json:"text"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}
