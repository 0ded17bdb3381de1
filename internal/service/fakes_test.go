package service

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/reqtrack/reqtrack/internal/mail"
	"github.com/reqtrack/reqtrack/internal/model"
	"github.com/reqtrack/reqtrack/internal/repository"
	"github.com/reqtrack/reqtrack/internal/storage"
	"github.com/reqtrack/reqtrack/internal/utils"
)

func inScope(s repository.Scope, project, owner primitive.ObjectID) bool {
	if s.All {
		return true
	}
	if !s.Owner.IsZero() && owner == s.Owner {
		return true
	}
	for _, id := range s.Projects {
		if id == project {
			return true
		}
	}
	return false
}

func contains(pattern string, fields ...string) bool {
	pattern = strings.ToLower(pattern)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), pattern) {
			return true
		}
	}
	return false
}

func window[T any](rows []T, p repository.Page) []T {
	if p.Skip >= int64(len(rows)) {
		return []T{}
	}
	rows = rows[p.Skip:]
	if p.Limit > 0 && int64(len(rows)) > p.Limit {
		rows = rows[:p.Limit]
	}
	return rows
}

// ---- users

type fakeUsers struct {
	mu    sync.Mutex
	rows  map[primitive.ObjectID]model.User
	order []primitive.ObjectID
}

func newFakeUsers() *fakeUsers { return &fakeUsers{rows: map[primitive.ObjectID]model.User{}} }

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, r := range f.rows {
		if r.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	f.rows[u.ID] = *u
	f.order = append(f.order, u.ID)
	return nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, r := range f.rows {
		if r.Email == email {
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id primitive.ObjectID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (f *fakeUsers) GetByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[primitive.ObjectID]*model.User{}
	for _, id := range ids {
		if r, ok := f.rows[id]; ok {
			out[id] = &r
		}
	}
	return out, nil
}

func (f *fakeUsers) Update(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[u.ID]; !ok {
		return repository.ErrNotFound
	}
	f.rows[u.ID] = *u
	return nil
}

func (f *fakeUsers) SetLastLogin(_ context.Context, id primitive.ObjectID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.rows[id]
	r.LastLogin = &at
	f.rows[id] = r
	return nil
}

func (f *fakeUsers) List(_ context.Context, q repository.UserFilter) ([]model.User, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.User
	for _, id := range f.order {
		r := f.rows[id]
		if q.Role != "" && string(r.Role) != q.Role {
			continue
		}
		if q.Search != "" && !contains(q.Search, r.Name, r.Email, r.Company) {
			continue
		}
		out = append(out, r)
	}
	return window(out, q.Page), int64(len(out)), nil
}

func (f *fakeUsers) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.rows)), nil
}

func (f *fakeUsers) IDsByRole(_ context.Context, roles ...model.Role) ([]primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []primitive.ObjectID
	for _, id := range f.order {
		r := f.rows[id]
		for _, role := range roles {
			if r.Role == role && r.IsActive {
				out = append(out, id)
			}
		}
	}
	return out, nil
}

func (f *fakeUsers) Search(_ context.Context, q repository.SearchQuery) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.User
	for _, id := range f.order {
		if r := f.rows[id]; contains(q.Pattern, r.Name, r.Email, r.Company, r.Department) {
			out = append(out, r)
		}
	}
	return out, nil
}

// ---- reset tokens

type fakeTokens struct {
	mu   sync.Mutex
	rows []*model.PasswordResetToken
}

func (f *fakeTokens) Store(_ context.Context, t *model.PasswordResetToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = primitive.NewObjectID()
	cp := *t
	f.rows = append(f.rows, &cp)
	return nil
}

func (f *fakeTokens) InvalidateUnused(_ context.Context, userID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.rows {
		if t.User == userID {
			t.Used = true
		}
	}
	return nil
}

func (f *fakeTokens) Consume(_ context.Context, hash string, now time.Time) (*model.PasswordResetToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.rows {
		if t.TokenHash == hash && t.Usable(now) {
			t.Used = true
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

// ---- projects

type fakeProjects struct {
	mu    sync.Mutex
	rows  map[primitive.ObjectID]model.Project
	order []primitive.ObjectID
}

func newFakeProjects() *fakeProjects { return &fakeProjects{rows: map[primitive.ObjectID]model.Project{}} }

func (f *fakeProjects) Create(_ context.Context, p *model.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	f.rows[p.ID] = *p
	f.order = append(f.order, p.ID)
	return nil
}

func (f *fakeProjects) GetByID(_ context.Context, id primitive.ObjectID) (*model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (f *fakeProjects) GetByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[primitive.ObjectID]*model.Project{}
	for _, id := range ids {
		if p, ok := f.rows[id]; ok {
			out[id] = &p
		}
	}
	return out, nil
}

func (f *fakeProjects) Update(_ context.Context, p *model.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[p.ID]; !ok {
		return repository.ErrNotFound
	}
	f.rows[p.ID] = *p
	return nil
}

func (f *fakeProjects) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

// newest first, like the repository.
func (f *fakeProjects) all(keep func(model.Project) bool) []model.Project {
	var out []model.Project
	for i := len(f.order) - 1; i >= 0; i-- {
		p, ok := f.rows[f.order[i]]
		if ok && keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func projectInScope(s repository.Scope, p model.Project) bool {
	return inScope(repository.Scope{All: s.All, Projects: s.Projects}, p.ID, primitive.NilObjectID)
}

func (f *fakeProjects) List(_ context.Context, q repository.ProjectFilter) ([]model.Project, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.all(func(p model.Project) bool {
		return projectInScope(q.Scope, p) &&
			(q.Status == "" || string(p.Status) == q.Status) &&
			(q.Priority == "" || string(p.Priority) == q.Priority) &&
			(q.Search == "" || contains(q.Search, p.Name, p.Description))
	})
	return window(out, q.Page), int64(len(out)), nil
}

func (f *fakeProjects) IDsForMember(_ context.Context, userID primitive.ObjectID, role model.Role) ([]primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []primitive.ObjectID
	for _, id := range f.order {
		p, ok := f.rows[id]
		if !ok {
			continue
		}
		if role == model.RoleClient && p.Client != nil && *p.Client == userID {
			out = append(out, id)
		}
		if role != model.RoleClient && p.HasMember(userID) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeProjects) LinkClientByEmail(_ context.Context, email string, userID primitive.ObjectID, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, p := range f.rows {
		if p.Client == nil && p.ClientInfo.Email == strings.ToLower(email) {
			uid := userID
			p.Client = &uid
			p.UpdatedAt = now
			f.rows[id] = p
			n++
		}
	}
	return n, nil
}

func (f *fakeProjects) CountByStatus(_ context.Context, s repository.Scope) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]int64{}
	for _, p := range f.all(func(p model.Project) bool { return projectInScope(s, p) }) {
		out[string(p.Status)]++
	}
	return out, nil
}

func (f *fakeProjects) Search(_ context.Context, q repository.SearchQuery) ([]model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.all(func(p model.Project) bool {
		return projectInScope(q.Scope, p) &&
			(q.Status == "" || string(p.Status) == q.Status) &&
			contains(q.Pattern, append([]string{p.Name, p.Description}, p.Tags...)...)
	})
	return window(out, repository.Page{Limit: q.Limit}), nil
}

func (f *fakeProjects) Suggest(_ context.Context, prefix string, s repository.Scope, limit int64) ([]model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.all(func(p model.Project) bool {
		return projectInScope(s, p) && strings.HasPrefix(strings.ToLower(p.Name), strings.ToLower(prefix))
	})
	return window(out, repository.Page{Limit: limit}), nil
}

// ---- requirements

type fakeRequirements struct {
	mu    sync.Mutex
	rows  map[primitive.ObjectID]model.Requirement
	order []primitive.ObjectID
}

func newFakeRequirements() *fakeRequirements {
	return &fakeRequirements{rows: map[primitive.ObjectID]model.Requirement{}}
}

func (f *fakeRequirements) Create(_ context.Context, r *model.Requirement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	f.rows[r.ID] = *r
	f.order = append(f.order, r.ID)
	return nil
}

func (f *fakeRequirements) GetByID(_ context.Context, id primitive.ObjectID) (*model.Requirement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	r.Comments = append([]model.Comment(nil), r.Comments...)
	r.Attachments = append([]model.Attachment(nil), r.Attachments...)
	return &r, nil
}

// Update keeps the stored comments and attachments, like the $set update.
func (f *fakeRequirements) Update(_ context.Context, r *model.Requirement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.rows[r.ID]
	if !ok {
		return repository.ErrNotFound
	}
	next := *r
	next.Comments, next.Attachments = cur.Comments, cur.Attachments
	f.rows[r.ID] = next
	return nil
}

func (f *fakeRequirements) PushComment(_ context.Context, id primitive.ObjectID, c model.Comment, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.Comments = append(r.Comments, c)
	r.UpdatedAt = now
	f.rows[id] = r
	return nil
}

func (f *fakeRequirements) PushAttachments(_ context.Context, id primitive.ObjectID, atts []model.Attachment, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.Attachments = append(r.Attachments, atts...)
	r.UpdatedAt = now
	f.rows[id] = r
	return nil
}

func (f *fakeRequirements) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeRequirements) DeleteByProject(_ context.Context, projectID primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, r := range f.rows {
		if r.Project == projectID {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeRequirements) all(keep func(model.Requirement) bool) []model.Requirement {
	var out []model.Requirement
	for i := len(f.order) - 1; i >= 0; i-- {
		r, ok := f.rows[f.order[i]]
		if ok && keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeRequirements) List(_ context.Context, q repository.RequirementFilter) ([]model.Requirement, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.all(func(r model.Requirement) bool {
		return inScope(q.Scope, r.Project, r.CreatedBy) &&
			(q.Project == nil || *q.Project == r.Project) &&
			(q.Status == "" || string(r.Status) == q.Status) &&
			(q.Category == "" || string(r.Category) == q.Category) &&
			(q.Priority == "" || string(r.Priority) == q.Priority) &&
			(q.Search == "" || contains(q.Search, r.Title, r.Description))
	})
	return window(out, q.Page), int64(len(out)), nil
}

func (f *fakeRequirements) CountByStatus(_ context.Context, s repository.Scope, project *primitive.ObjectID) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]int64{}
	for _, r := range f.all(func(r model.Requirement) bool {
		return inScope(s, r.Project, r.CreatedBy) && (project == nil || *project == r.Project)
	}) {
		out[string(r.Status)]++
	}
	return out, nil
}

func (f *fakeRequirements) Search(_ context.Context, q repository.SearchQuery) ([]model.Requirement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.all(func(r model.Requirement) bool {
		return inScope(q.Scope, r.Project, r.CreatedBy) &&
			(q.Status == "" || string(r.Status) == q.Status) &&
			(q.Category == "" || string(r.Category) == q.Category) &&
			contains(q.Pattern, append([]string{r.Title, r.Description}, r.Tags...)...)
	})
	return window(out, repository.Page{Limit: q.Limit}), nil
}

func (f *fakeRequirements) Suggest(_ context.Context, prefix string, s repository.Scope, limit int64) ([]model.Requirement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.all(func(r model.Requirement) bool {
		return inScope(s, r.Project, r.CreatedBy) && strings.HasPrefix(strings.ToLower(r.Title), strings.ToLower(prefix))
	})
	return window(out, repository.Page{Limit: limit}), nil
}

// ---- assets

type fakeAssets struct {
	mu    sync.Mutex
	rows  map[primitive.ObjectID]model.Asset
	order []primitive.ObjectID
	// racePush bumps the stored version right before PushVersion compares,
	// simulating a concurrent writer.
	racePush bool
}

func newFakeAssets() *fakeAssets { return &fakeAssets{rows: map[primitive.ObjectID]model.Asset{}} }

func (f *fakeAssets) Create(_ context.Context, a *model.Asset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	f.rows[a.ID] = *a
	f.order = append(f.order, a.ID)
	return nil
}

func (f *fakeAssets) GetByID(_ context.Context, id primitive.ObjectID) (*model.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	a.PreviousVersions = append([]model.AssetVersion(nil), a.PreviousVersions...)
	return &a, nil
}

func (f *fakeAssets) UpdateMeta(_ context.Context, a *model.Asset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.rows[a.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cur.Name, cur.Description, cur.Tags, cur.UpdatedAt = a.Name, a.Description, a.Tags, a.UpdatedAt
	f.rows[a.ID] = cur
	return nil
}

func (f *fakeAssets) PushVersion(_ context.Context, id primitive.ObjectID, expected int, prev model.AssetVersion, file repository.FileMeta, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	if f.racePush {
		cur.Version++
	}
	if cur.Version != expected {
		f.rows[id] = cur
		return repository.ErrConflict
	}
	cur.PreviousVersions = append(cur.PreviousVersions, prev)
	cur.Version = expected + 1
	cur.FileURL, cur.FileName, cur.MimeType, cur.FileSize, cur.Type = file.FileURL, file.FileName, file.MimeType, file.FileSize, file.Type
	cur.UploadedAt, cur.UpdatedAt = now, now
	f.rows[id] = cur
	return nil
}

func (f *fakeAssets) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeAssets) deleteWhere(keep func(model.Asset) bool) []model.Asset {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Asset{}
	for id, a := range f.rows {
		if keep(a) {
			out = append(out, a)
			delete(f.rows, id)
		}
	}
	return out
}

func (f *fakeAssets) DeleteByRequirement(_ context.Context, requirementID primitive.ObjectID) ([]model.Asset, error) {
	return f.deleteWhere(func(a model.Asset) bool { return a.Requirement != nil && *a.Requirement == requirementID }), nil
}

func (f *fakeAssets) DeleteByProject(_ context.Context, projectID primitive.ObjectID) ([]model.Asset, error) {
	return f.deleteWhere(func(a model.Asset) bool { return a.Project == projectID }), nil
}

func (f *fakeAssets) all(keep func(model.Asset) bool) []model.Asset {
	var out []model.Asset
	for i := len(f.order) - 1; i >= 0; i-- {
		a, ok := f.rows[f.order[i]]
		if ok && keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func (f *fakeAssets) List(_ context.Context, q repository.AssetFilter) ([]model.Asset, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.all(func(a model.Asset) bool {
		return inScope(q.Scope, a.Project, a.UploadedBy) &&
			(q.Project == nil || *q.Project == a.Project) &&
			(q.Requirement == nil || (a.Requirement != nil && *a.Requirement == *q.Requirement)) &&
			(q.Type == "" || string(a.Type) == q.Type) &&
			(q.Search == "" || contains(q.Search, a.Name, a.Description, a.FileName))
	})
	return window(out, q.Page), int64(len(out)), nil
}

func (f *fakeAssets) Count(_ context.Context, s repository.Scope) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.all(func(a model.Asset) bool { return inScope(s, a.Project, a.UploadedBy) }))), nil
}

func (f *fakeAssets) Search(_ context.Context, q repository.SearchQuery) ([]model.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.all(func(a model.Asset) bool {
		return inScope(q.Scope, a.Project, a.UploadedBy) &&
			contains(q.Pattern, append([]string{a.Name, a.Description, a.FileName}, a.Tags...)...)
	})
	return window(out, repository.Page{Limit: q.Limit}), nil
}

// ---- notifications

type fakeNotes struct {
	mu   sync.Mutex
	rows []model.Notification
}

func (f *fakeNotes) CreateMany(_ context.Context, ns []*model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range ns {
		n.ID = primitive.NewObjectID()
		f.rows = append(f.rows, *n)
	}
	return nil
}

func (f *fakeNotes) forUser(recipient primitive.ObjectID, unreadOnly bool) []model.Notification {
	var out []model.Notification
	for i := len(f.rows) - 1; i >= 0; i-- {
		n := f.rows[i]
		if n.Recipient == recipient && (!unreadOnly || !n.Read) {
			out = append(out, n)
		}
	}
	return out
}

func (f *fakeNotes) List(_ context.Context, recipient primitive.ObjectID, unreadOnly bool, p repository.Page) ([]model.Notification, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.forUser(recipient, unreadOnly)
	return window(out, p), int64(len(out)), nil
}

func (f *fakeNotes) CountUnread(_ context.Context, recipient primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.forUser(recipient, true))), nil
}

func (f *fakeNotes) MarkRead(_ context.Context, id, recipient primitive.ObjectID, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == id && f.rows[i].Recipient == recipient {
			f.rows[i].Read, f.rows[i].ReadAt = true, &now
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeNotes) MarkAllRead(_ context.Context, recipient primitive.ObjectID, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for i := range f.rows {
		if f.rows[i].Recipient == recipient && !f.rows[i].Read {
			f.rows[i].Read, f.rows[i].ReadAt = true, &now
			n++
		}
	}
	return n, nil
}

func (f *fakeNotes) Delete(_ context.Context, id, recipient primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == id && f.rows[i].Recipient == recipient {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeNotes) DeleteByLink(_ context.Context, link string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.rows[:0]
	var n int64
	for _, r := range f.rows {
		if r.Link == link {
			n++
			continue
		}
		kept = append(kept, r)
	}
	f.rows = kept
	return n, nil
}

func (f *fakeNotes) ofType(recipient primitive.ObjectID, t model.NotificationType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rows {
		if r.Recipient == recipient && r.Type == t {
			n++
		}
	}
	return n
}

// ---- activity

type fakeActivity struct {
	mu   sync.Mutex
	rows []model.ActivityLog
	fail error
}

func (f *fakeActivity) Insert(_ context.Context, e *model.ActivityLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	e.ID = primitive.NewObjectID()
	f.rows = append(f.rows, *e)
	return nil
}

func (f *fakeActivity) List(_ context.Context, q repository.ActivityFilter) ([]model.ActivityLog, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ActivityLog
	for i := len(f.rows) - 1; i >= 0; i-- {
		e := f.rows[i]
		if q.User != nil && e.User != *q.User {
			continue
		}
		if q.TargetType != "" && string(e.TargetType) != q.TargetType {
			continue
		}
		if q.TargetID != nil && (e.TargetID == nil || *e.TargetID != *q.TargetID) {
			continue
		}
		out = append(out, e)
	}
	return window(out, q.Page), int64(len(out)), nil
}

// ---- files

type fakeFiles struct {
	mu      sync.Mutex
	policy  storage.Policy
	saved   []string
	removed []string
	n       int
}

func (f *fakeFiles) Check(u storage.Upload) error { return f.policy.Check(u) }

func (f *fakeFiles) Save(_ context.Context, u storage.Upload) (storage.Stored, error) {
	if err := f.Check(u); err != nil {
		return storage.Stored{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	url := "/uploads/file-" + string(rune('a'+f.n-1)) + filepath.Ext(u.Filename)
	f.saved = append(f.saved, url)
	return storage.Stored{URL: url, Name: u.Filename, MimeType: u.MimeType, Size: u.Size}, nil
}

func (f *fakeFiles) Remove(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, url)
	return nil
}

func upload(name, mime string, size int64) storage.Upload {
	return storage.Upload{Filename: name, MimeType: mime, Size: size}
}

// ---- mail

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// ---- environment

const testSecret = "test-secret"

type env struct {
	users    *fakeUsers
	tokens   *fakeTokens
	projects *fakeProjects
	reqs     *fakeRequirements
	assets   *fakeAssets
	notes    *fakeNotes
	activity *fakeActivity
	files    *fakeFiles
	mailer   *recordingMailer
	st       Stores
	now      time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		users:    newFakeUsers(),
		tokens:   &fakeTokens{},
		projects: newFakeProjects(),
		reqs:     newFakeRequirements(),
		assets:   newFakeAssets(),
		notes:    &fakeNotes{},
		activity: &fakeActivity{},
		files:    &fakeFiles{policy: storage.Policy{MaxBytes: 50 << 20}},
		mailer:   &recordingMailer{},
		now:      time.Now().UTC().Truncate(time.Second),
	}
	e.st = Stores{
		Users:        e.users,
		Tokens:       e.tokens,
		Projects:     e.projects,
		Requirements: e.reqs,
		Assets:       e.assets,
		Notes:        e.notes,
		Activity:     e.activity,
		Files:        e.files,
	}
	return e
}

func (e *env) fixedClock() clock { return clock{nowFn: func() time.Time { return e.now }} }

func (e *env) notifier() *Notifier {
	n := NewNotifier(e.notes, e.users, e.mailer, "ReqTrack", "http://app.test", zerolog.Nop())
	n.clock = e.fixedClock()
	return n
}

func (e *env) authService(production bool) *AuthService {
	s := NewAuthService(AuthConfig{
		JWTSecret:  testSecret,
		TokenTTL:   time.Hour,
		BcryptCost: 4,
		ResetTTL:   time.Hour,
		ClientURL:  "http://app.test",
		AppName:    "ReqTrack",
		Production: production,
	}, e.st, e.mailer, zerolog.Nop())
	s.clock = e.fixedClock()
	return s
}

func (e *env) requirementService() *RequirementService {
	s := NewRequirementService(e.st, e.notifier(), zerolog.Nop())
	s.clock = e.fixedClock()
	return s
}

func (e *env) projectService() *ProjectService {
	s := NewProjectService(e.st, e.notifier(), zerolog.Nop())
	s.clock = e.fixedClock()
	return s
}

func (e *env) assetService() *AssetService {
	s := NewAssetService(e.st, e.notifier(), zerolog.Nop())
	s.clock = e.fixedClock()
	return s
}

// user stores an active account with password "secret123".
func (e *env) user(t *testing.T, name string, role model.Role) *model.User {
	t.Helper()
	hash, err := utils.HashPassword("secret123", 4)
	if err != nil {
		t.Fatal(err)
	}
	u := &model.User{Name: name, Email: strings.ToLower(name) + "@x.com", PasswordHash: hash, Role: role, IsActive: true}
	u.Touch(e.now)
	if err := e.users.Create(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return u
}

func (e *env) project(t *testing.T, name string, client *model.User, team ...*model.User) *model.Project {
	t.Helper()
	p := &model.Project{Name: name, Status: model.ProjectPlanning, Priority: model.PriorityMedium}
	if client != nil {
		p.Client = &client.ID
	}
	for _, m := range team {
		p.Team = append(p.Team, m.ID)
	}
	p.Touch(e.now)
	if err := e.projects.Create(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return p
}

func (e *env) requirement(t *testing.T, p *model.Project, creator *model.User, status model.RequirementStatus) *model.Requirement {
	t.Helper()
	r := &model.Requirement{
		Title:       "Requirement " + string(status),
		Description: "desc",
		Project:     p.ID,
		Category:    model.CategoryFunctional,
		Priority:    model.PriorityMedium,
		Status:      status,
		CreatedBy:   creator.ID,
	}
	r.Touch(e.now)
	if err := e.reqs.Create(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	return r
}

func wantKind(t *testing.T, err error, want Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := KindOf(err); got != want {
		t.Fatalf("kind = %s, want %s (err: %v)", got, want, err)
	}
}

func sortedStrings(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
