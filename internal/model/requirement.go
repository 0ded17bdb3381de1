package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RequirementCategory string

const (
	CategoryFunctional    RequirementCategory = "functional"
	CategoryNonFunctional RequirementCategory = "non_functional"
	CategoryTechnical     RequirementCategory = "technical"
	CategoryBusiness      RequirementCategory = "business"
	CategoryUIUX          RequirementCategory = "ui_ux"
)

func (c RequirementCategory) Valid() bool {
	switch c {
	case CategoryFunctional, CategoryNonFunctional, CategoryTechnical, CategoryBusiness, CategoryUIUX:
		return true
	}
	return false
}

type RequirementStatus string

const (
	StatusDraft      RequirementStatus = "draft"
	StatusPending    RequirementStatus = "pending"
	StatusApproved   RequirementStatus = "approved"
	StatusInProgress RequirementStatus = "in_progress"
	StatusCompleted  RequirementStatus = "completed"
	StatusRejected   RequirementStatus = "rejected"
)

// RequirementStatuses lists every status in lifecycle order.
var RequirementStatuses = []RequirementStatus{StatusDraft, StatusPending, StatusApproved, StatusInProgress, StatusCompleted, StatusRejected}

func (s RequirementStatus) Valid() bool {
	for _, v := range RequirementStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ClientEditable is true while the requirement has not been reviewed yet.
func (s RequirementStatus) ClientEditable() bool {
	return s == StatusDraft || s == StatusPending
}

type Attachment struct {
	Filename   string    `bson:"filename" json:"filename"`
	URL        string    `bson:"url" json:"url"`
	UploadedAt time.Time `bson:"uploadedAt" json:"uploadedAt"`
}

type Comment struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	Text      string             `bson:"text" json:"text"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

type Requirement struct {
	ID                 primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Title              string              `bson:"title" json:"title"`
	Description        string              `bson:"description" json:"description"`
	Project            primitive.ObjectID  `bson:"project" json:"project"`
	Category           RequirementCategory `bson:"category" json:"category"`
	Priority           Priority            `bson:"priority" json:"priority"`
	Status             RequirementStatus   `bson:"status" json:"status"`
	AcceptanceCriteria []string            `bson:"acceptanceCriteria" json:"acceptanceCriteria"`
	Attachments        []Attachment        `bson:"attachments" json:"attachments"`
	Comments           []Comment           `bson:"comments" json:"comments"`
	Tags               []string            `bson:"tags,omitempty" json:"tags,omitempty"`
	DueDate            *time.Time          `bson:"dueDate,omitempty" json:"dueDate,omitempty"`
	CreatedBy          primitive.ObjectID  `bson:"createdBy" json:"createdBy"`
	AssignedTo         *primitive.ObjectID `bson:"assignedTo,omitempty" json:"assignedTo,omitempty"`
	Timestamps         `bson:",inline"`
}
