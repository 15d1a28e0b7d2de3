package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MediaOwner maps a platform post id to the tenant that listed it.
// The tenant is fixed on first insert; the observed ids may be refreshed.
type MediaOwner struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PostID      string             `bson:"post_id" json:"post_id"`
	TenantID    primitive.ObjectID `bson:"tenant_id" json:"tenant_id"`
	BasicUserID string             `bson:"basic_user_id,omitempty" json:"basic_user_id,omitempty"`
	BusinessID  string             `bson:"business_id,omitempty" json:"business_id,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// Media is one item of a tenant's media listing.
type Media struct {
	ID        string `json:"id"`
	Caption   string `json:"caption,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	MediaURL  string `json:"media_url,omitempty"`
	Permalink string `json:"permalink,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}
