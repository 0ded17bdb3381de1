package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string

const (
	NotifyRequirementSubmitted NotificationType = "requirement_submitted"
	NotifyRequirementUpdated   NotificationType = "requirement_updated"
	NotifyStatusChanged        NotificationType = "status_changed"
	NotifyCommentAdded         NotificationType = "comment_added"
	NotifyAssignment           NotificationType = "assignment"
	NotifyProjectUpdate        NotificationType = "project_update"
	NotifyAssetUploaded        NotificationType = "asset_uploaded"
	NotifySystem               NotificationType = "system"
)

type Notification struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Recipient primitive.ObjectID  `bson:"recipient" json:"recipient"`
	Sender    *primitive.ObjectID `bson:"sender,omitempty" json:"sender,omitempty"`
	Type      NotificationType    `bson:"type" json:"type"`
	Title     string              `bson:"title" json:"title"`
	Message   string              `bson:"message" json:"message"`
	Link      string              `bson:"link,omitempty" json:"link,omitempty"`
	Read      bool                `bson:"read" json:"read"`
	ReadAt    *time.Time          `bson:"readAt,omitempty" json:"readAt,omitempty"`
	Timestamps `bson:",inline"`
}
