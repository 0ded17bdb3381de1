package service

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/reqtrack/reqtrack/internal/model"
	"github.com/reqtrack/reqtrack/internal/repository"
	"github.com/reqtrack/reqtrack/internal/storage"
)

// The store interfaces below are satisfied by the Mongo repositories and by
// in-memory fakes in tests.

type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*model.User, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*model.User, error)
	Update(ctx context.Context, u *model.User) error
	SetLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error
	List(ctx context.Context, f repository.UserFilter) ([]model.User, int64, error)
	Count(ctx context.Context) (int64, error)
	IDsByRole(ctx context.Context, roles ...model.Role) ([]primitive.ObjectID, error)
	Search(ctx context.Context, q repository.SearchQuery) ([]model.User, error)
}

type TokenStore interface {
	Store(ctx context.Context, t *model.PasswordResetToken) error
	InvalidateUnused(ctx context.Context, userID primitive.ObjectID) error
	Consume(ctx context.Context, tokenHash string, now time.Time) (*model.PasswordResetToken, error)
}

type ProjectStore interface {
	Create(ctx context.Context, p *model.Project) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*model.Project, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*model.Project, error)
	Update(ctx context.Context, p *model.Project) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	List(ctx context.Context, f repository.ProjectFilter) ([]model.Project, int64, error)
	IDsForMember(ctx context.Context, userID primitive.ObjectID, role model.Role) ([]primitive.ObjectID, error)
	LinkClientByEmail(ctx context.Context, email string, userID primitive.ObjectID, now time.Time) (int64, error)
	CountByStatus(ctx context.Context, s repository.Scope) (map[string]int64, error)
	Search(ctx context.Context, q repository.SearchQuery) ([]model.Project, error)
	Suggest(ctx context.Context, prefix string, s repository.Scope, limit int64) ([]model.Project, error)
}

type RequirementStore interface {
	Create(ctx context.Context, r *model.Requirement) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*model.Requirement, error)
	Update(ctx context.Context, r *model.Requirement) error
	PushComment(ctx context.Context, id primitive.ObjectID, c model.Comment, now time.Time) error
	PushAttachments(ctx context.Context, id primitive.ObjectID, atts []model.Attachment, now time.Time) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByProject(ctx context.Context, projectID primitive.ObjectID) (int64, error)
	List(ctx context.Context, f repository.RequirementFilter) ([]model.Requirement, int64, error)
	CountByStatus(ctx context.Context, s repository.Scope, project *primitive.ObjectID) (map[string]int64, error)
	Search(ctx context.Context, q repository.SearchQuery) ([]model.Requirement, error)
	Suggest(ctx context.Context, prefix string, s repository.Scope, limit int64) ([]model.Requirement, error)
}

type AssetStore interface {
	Create(ctx context.Context, a *model.Asset) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*model.Asset, error)
	UpdateMeta(ctx context.Context, a *model.Asset) error
	PushVersion(ctx context.Context, id primitive.ObjectID, expected int, prev model.AssetVersion, file repository.FileMeta, now time.Time) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByRequirement(ctx context.Context, requirementID primitive.ObjectID) ([]model.Asset, error)
	DeleteByProject(ctx context.Context, projectID primitive.ObjectID) ([]model.Asset, error)
	List(ctx context.Context, f repository.AssetFilter) ([]model.Asset, int64, error)
	Count(ctx context.Context, s repository.Scope) (int64, error)
	Search(ctx context.Context, q repository.SearchQuery) ([]model.Asset, error)
}

type NotificationStore interface {
	CreateMany(ctx context.Context, ns []*model.Notification) error
	List(ctx context.Context, recipient primitive.ObjectID, unreadOnly bool, p repository.Page) ([]model.Notification, int64, error)
	CountUnread(ctx context.Context, recipient primitive.ObjectID) (int64, error)
	MarkRead(ctx context.Context, id, recipient primitive.ObjectID, now time.Time) error
	MarkAllRead(ctx context.Context, recipient primitive.ObjectID, now time.Time) (int64, error)
	Delete(ctx context.Context, id, recipient primitive.ObjectID) error
	DeleteByLink(ctx context.Context, link string) (int64, error)
}

type ActivityStore interface {
	Insert(ctx context.Context, e *model.ActivityLog) error
	List(ctx context.Context, f repository.ActivityFilter) ([]model.ActivityLog, int64, error)
}

// FileStore persists uploads. Check must not write anything.
type FileStore interface {
	Check(u storage.Upload) error
	Save(ctx context.Context, u storage.Upload) (storage.Stored, error)
	Remove(ctx context.Context, url string) error
}

// Stores bundles the persistence collaborators shared by the services.
type Stores struct {
	Users        UserStore
	Tokens       TokenStore
	Projects     ProjectStore
	Requirements RequirementStore
	Assets       AssetStore
	Notes        NotificationStore
	Activity     ActivityStore
	Files        FileStore
}
