package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ReplyStatusPending = "pending" // claimed, publish not yet confirmed
	ReplyStatusReplied = "replied"
)

// ReplyRecord marks a comment the pipeline has answered. At most one exists
// per (tenant, comment).
type ReplyRecord struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID    primitive.ObjectID `bson:"tenant_id" json:"tenant_id"`
	PostID      string             `bson:"post_id" json:"post_id"`
	CommentID   string             `bson:"comment_id" json:"comment_id"`
	CommentText string             `bson:"comment_text,omitempty" json:"comment_text,omitempty"`
	ReplyText   string             `bson:"reply_text,omitempty" json:"reply_text,omitempty"`
	Status      string             `bson:"status" json:"status"`
	ClaimedAt   time.Time          `bson:"claimed_at" json:"claimed_at"`
	RepliedAt   *time.Time         `bson:"replied_at,omitempty" json:"replied_at,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}
