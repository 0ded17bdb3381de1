// Package service holds the business rules of the API. Services depend on
// the store interfaces in stores.go and return *Error values that handlers
// translate to HTTP responses.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/reqtrack/reqtrack/internal/model"
	"github.com/reqtrack/reqtrack/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PageParams is the page/limit pair accepted by list endpoints. Zero values
// select the defaults.
type PageParams struct {
	Page  int `query:"page"`
	Limit int `query:"limit"`
}

func (p PageParams) normalize() PageParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	return p
}

func (p PageParams) repo() repository.Page {
	p = p.normalize()
	return repository.Page{Skip: int64((p.Page - 1) * p.Limit), Limit: int64(p.Limit)}
}

// Pagination is returned next to every list.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

func paginate(p PageParams, total int64) Pagination {
	p = p.normalize()
	pages := total / int64(p.Limit)
	if total%int64(p.Limit) != 0 {
		pages++
	}
	return Pagination{Page: p.Page, Limit: p.Limit, Total: total, Pages: pages}
}

// ParseID converts a hex object id from a path or body. field names the
// input in the validation error.
func ParseID(field, raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(raw))
	if err != nil {
		return primitive.NilObjectID, validationErr("invalid "+field, FieldError{Field: field, Message: "must be a valid id"})
	}
	return id, nil
}

func parseOptionalID(field, raw string) (*primitive.ObjectID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := ParseID(field, raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// storeErr translates a repository error. what names the missing document.
func storeErr(op, what string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return notFoundErr(what)
	case errors.Is(err, repository.ErrConflict):
		return conflictErr(what + " was modified concurrently, retry")
	case errors.Is(err, repository.ErrDuplicate):
		return conflictErr(what + " already exists")
	}
	return internalErr(op, err)
}

// storeErrAs returns notFound for a missing document and an internal error
// otherwise.
func storeErrAs(err error, op string, notFound error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound
	}
	return internalErr(op, err)
}

// clock is embedded by services that stamp documents.
type clock struct{ nowFn func() time.Time }

func (c clock) now() time.Time {
	if c.nowFn != nil {
		return c.nowFn().UTC()
	}
	return time.Now().UTC()
}

// scoper computes what a user may see.
type scoper struct{ projects ProjectStore }

func (s scoper) scope(ctx context.Context, u *model.User) (repository.Scope, error) {
	if u.Role.IsStaff() {
		return repository.Scope{All: true}, nil
	}
	ids, err := s.projects.IDsForMember(ctx, u.ID, u.Role)
	if err != nil {
		return repository.Scope{}, internalErr("scope", err)
	}
	return repository.Scope{Projects: ids, Owner: u.ID}, nil
}

// canSeeProject applies the ownership rules to one project.
func canSeeProject(u *model.User, p *model.Project) bool {
	switch {
	case u.Role.IsStaff():
		return true
	case u.Role == model.RoleClient:
		return p.Client != nil && *p.Client == u.ID
	}
	return p.HasMember(u.ID)
}

// canSeeRequirement is true for the creator or anyone who sees its project.
// p may be nil when the project no longer exists.
func canSeeRequirement(u *model.User, r *model.Requirement, p *model.Project) bool {
	if u.Role.IsStaff() || r.CreatedBy == u.ID {
		return true
	}
	return p != nil && canSeeProject(u, p)
}

func canSeeAsset(u *model.User, a *model.Asset, p *model.Project) bool {
	if u.Role.IsStaff() || a.UploadedBy == u.ID {
		return true
	}
	return p != nil && canSeeProject(u, p)
}

// refs resolves user and project ids into display references.
type refs struct {
	users    map[primitive.ObjectID]*model.User
	projects map[primitive.ObjectID]*model.Project
}

func (r refs) user(id primitive.ObjectID) *model.UserRef {
	if u, ok := r.users[id]; ok {
		return u.Ref()
	}
	if id.IsZero() {
		return nil
	}
	return &model.UserRef{ID: id}
}

func (r refs) userPtr(id *primitive.ObjectID) *model.UserRef {
	if id == nil {
		return nil
	}
	return r.user(*id)
}

func (r refs) project(id primitive.ObjectID) *model.ProjectRef {
	if p, ok := r.projects[id]; ok {
		return p.Ref()
	}
	return &model.ProjectRef{ID: id}
}

// resolver loads refs in two batched queries.
type resolver struct {
	users    UserStore
	projects ProjectStore
}

func (rs resolver) resolve(ctx context.Context, userIDs, projectIDs []primitive.ObjectID) (refs, error) {
	var out refs
	var err error
	if out.users, err = rs.users.GetByIDs(ctx, dedupe(userIDs)); err != nil {
		return refs{}, internalErr("resolve users", err)
	}
	if len(projectIDs) > 0 && rs.projects != nil {
		if out.projects, err = rs.projects.GetByIDs(ctx, dedupe(projectIDs)); err != nil {
			return refs{}, internalErr("resolve projects", err)
		}
	}
	return out, nil
}

func dedupe(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if id.IsZero() || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// cleanList trims entries and drops empty ones.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func requirementLink(id primitive.ObjectID) string { return "/requirements/" + id.Hex() }

func projectLink(id primitive.ObjectID) string { return "/projects/" + id.Hex() }

func assetLink(id primitive.ObjectID) string { return "/assets/" + id.Hex() }
