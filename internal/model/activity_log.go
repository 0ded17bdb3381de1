package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Action string

const (
	ActionCreate         Action = "create"
	ActionUpdate         Action = "update"
	ActionDelete         Action = "delete"
	ActionLogin          Action = "login"
	ActionLogout         Action = "logout"
	ActionRegister       Action = "register"
	ActionComment        Action = "comment"
	ActionUpload         Action = "upload"
	ActionDownload       Action = "download"
	ActionExport         Action = "export"
	ActionPasswordReset  Action = "password_reset"
	ActionPasswordChange Action = "password_change"
	ActionStatusChange   Action = "status_change"
)

type TargetType string

const (
	TargetProject      TargetType = "project"
	TargetRequirement  TargetType = "requirement"
	TargetAsset        TargetType = "asset"
	TargetUser         TargetType = "user"
	TargetNotification TargetType = "notification"
)

// RequestMeta is the request snapshot stored with an activity entry.
type RequestMeta struct {
	Method string         `bson:"method" json:"method"`
	Path   string         `bson:"path" json:"path"`
	Body   map[string]any `bson:"body,omitempty" json:"body,omitempty"`
}

// ActivityLog is append-only: it is inserted once and never updated.
type ActivityLog struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	User        primitive.ObjectID  `bson:"user" json:"user"`
	Action      Action              `bson:"action" json:"action"`
	Description string              `bson:"description" json:"description"`
	TargetType  TargetType          `bson:"targetType,omitempty" json:"targetType,omitempty"`
	TargetID    *primitive.ObjectID `bson:"targetId,omitempty" json:"targetId,omitempty"`
	Metadata    RequestMeta         `bson:"metadata" json:"metadata"`
	IP          string              `bson:"ip,omitempty" json:"ip,omitempty"`
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
}
