package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ProjectStatus string

const (
	ProjectPlanning   ProjectStatus = "planning"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectReview     ProjectStatus = "review"
	ProjectCompleted  ProjectStatus = "completed"
	ProjectOnHold     ProjectStatus = "on_hold"
)

// ProjectStatuses lists every project status in lifecycle order.
var ProjectStatuses = []ProjectStatus{ProjectPlanning, ProjectInProgress, ProjectReview, ProjectCompleted, ProjectOnHold}

func (s ProjectStatus) Valid() bool {
	for _, v := range ProjectStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Priority is shared by projects and requirements.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// ClientInfo is the contact recorded on a project before (or instead of) a
// client account being linked. Email is stored lowercase so registration can
// match on it.
type ClientInfo struct {
	Name    string `bson:"name,omitempty" json:"name,omitempty"`
	Email   string `bson:"email,omitempty" json:"email,omitempty"`
	Company string `bson:"company,omitempty" json:"company,omitempty"`
	Phone   string `bson:"phone,omitempty" json:"phone,omitempty"`
}

type Project struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name        string               `bson:"name" json:"name"`
	Description string               `bson:"description" json:"description"`
	Status      ProjectStatus        `bson:"status" json:"status"`
	Priority    Priority             `bson:"priority" json:"priority"`
	StartDate   *time.Time           `bson:"startDate,omitempty" json:"startDate,omitempty"`
	Deadline    *time.Time           `bson:"deadline,omitempty" json:"deadline,omitempty"`
	Client      *primitive.ObjectID  `bson:"client,omitempty" json:"client,omitempty"`
	ClientInfo  ClientInfo           `bson:"clientInfo" json:"clientInfo"`
	Team        []primitive.ObjectID `bson:"team" json:"team"`
	Tags        []string             `bson:"tags,omitempty" json:"tags,omitempty"`
	CreatedBy   primitive.ObjectID   `bson:"createdBy" json:"createdBy"`
	Timestamps  `bson:",inline"`
}

// HasMember reports whether userID is on the project team.
func (p *Project) HasMember(userID primitive.ObjectID) bool {
	for _, id := range p.Team {
		if id == userID {
			return true
		}
	}
	return false
}

// ProjectRef is a resolved project reference embedded in API views.
type ProjectRef struct {
	ID   primitive.ObjectID `json:"id"`
	Name string             `json:"name"`
}

func (p *Project) Ref() *ProjectRef {
	if p == nil {
		return nil
	}
	return &ProjectRef{ID: p.ID, Name: p.Name}
}
