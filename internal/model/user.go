package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role gates which operations a user may invoke.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleClient     Role = "client"
	RoleTeamMember Role = "team_member"
)

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleClient, RoleTeamMember:
		return true
	}
	return false
}

// IsStaff is true for roles that see every project.
func (r Role) IsStaff() bool { return r == RoleAdmin || r == RoleManager }

// User is a row of the users collection. PasswordHash is a bcrypt hash and is
// never serialized to JSON.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"passwordHash" json:"-"`
	Role         Role               `bson:"role" json:"role"`
	Avatar       string             `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Company      string             `bson:"company,omitempty" json:"company,omitempty"`
	Department   string             `bson:"department,omitempty" json:"department,omitempty"`
	IsActive     bool               `bson:"isActive" json:"isActive"`
	LastLogin    *time.Time         `bson:"lastLogin,omitempty" json:"lastLogin,omitempty"`
	Timestamps   `bson:",inline"`
}

// PublicUser is the projection returned next to a session token.
type PublicUser struct {
	ID     primitive.ObjectID `json:"id"`
	Name   string             `json:"name"`
	Email  string             `json:"email"`
	Role   Role               `json:"role"`
	Avatar string             `json:"avatar,omitempty"`
}

// Public returns the id/name/email/role projection of u.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, Avatar: u.Avatar}
}

// UserRef is a resolved reference embedded in API views.
type UserRef struct {
	ID     primitive.ObjectID `json:"id"`
	Name   string             `json:"name"`
	Email  string             `json:"email,omitempty"`
	Avatar string             `json:"avatar,omitempty"`
}

// Ref builds the resolved reference for u. A nil user yields nil.
func (u *User) Ref() *UserRef {
	if u == nil {
		return nil
	}
	return &UserRef{ID: u.ID, Name: u.Name, Email: u.Email, Avatar: u.Avatar}
}
