package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Tenant is a connected Instagram account owned by one application user.
// BasicUserID comes from the OAuth exchange; BusinessID is the id the webhook
// sender uses and may only be learned later.
type Tenant struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	BasicUserID    string             `bson:"basic_user_id,omitempty" json:"basic_user_id,omitempty"`
	BusinessID     string             `bson:"business_id,omitempty" json:"business_id,omitempty"`
	AccessToken    string             `bson:"access_token" json:"-"`
	TokenType      string             `bson:"token_type,omitempty" json:"token_type,omitempty"`
	TokenExpiresAt *time.Time         `bson:"token_expires_at,omitempty" json:"token_expires_at,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}

type BindBusinessIDRequest struct {
	BusinessID string `json:"igBusinessId" binding:"required"`
}
