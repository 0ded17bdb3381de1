package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/reqtrack/reqtrack/internal/model"
	"github.com/reqtrack/reqtrack/internal/repository"
	"github.com/reqtrack/reqtrack/internal/storage"
)

type AssetService struct {
	clock
	scoper
	resolver
	assets   AssetStore
	projects ProjectStore
	files    FileStore
	notify   *Notifier
	log      zerolog.Logger
}

func NewAssetService(st Stores, n *Notifier, log zerolog.Logger) *AssetService {
	return &AssetService{
		scoper:   scoper{projects: st.Projects},
		resolver: resolver{users: st.Users, projects: st.Projects},
		assets:   st.Assets,
		projects: st.Projects,
		files:    st.Files,
		notify:   n,
		log:      log,
	}
}

type AssetView struct {
	model.Asset
	Project    *model.ProjectRef `json:"project"`
	UploadedBy *model.UserRef    `json:"uploadedBy"`
}

type AssetQuery struct {
	Project     string `query:"project"`
	Requirement string `query:"requirement"`
	Type        string `query:"type"`
	Search      string `query:"search"`
	PageParams
}

func (s *AssetService) List(ctx context.Context, actor *model.User, q AssetQuery) ([]AssetView, Pagination, error) {
	if q.Type != "" && !model.AssetType(q.Type).Valid() {
		return nil, Pagination{}, validationErr("unknown asset type", FieldError{Field: "type", Message: "unknown asset type"})
	}
	project, err := parseOptionalID("project", q.Project)
	if err != nil {
		return nil, Pagination{}, err
	}
	requirement, err := parseOptionalID("requirement", q.Requirement)
	if err != nil {
		return nil, Pagination{}, err
	}
	scope, err := s.scope(ctx, actor)
	if err != nil {
		return nil, Pagination{}, err
	}
	rows, total, err := s.assets.List(ctx, repository.AssetFilter{
		Scope: scope, Project: project, Requirement: requirement, Type: q.Type, Search: q.Search, Page: q.repo(),
	})
	if err != nil {
		return nil, Pagination{}, internalErr("list assets", err)
	}
	views, err := s.views(ctx, rows...)
	if err != nil {
		return nil, Pagination{}, err
	}
	return views, paginate(q.PageParams, total), nil
}

func (s *AssetService) Get(ctx context.Context, actor *model.User, id string) (AssetView, error) {
	a, err := s.load(ctx, actor, id)
	if err != nil {
		return AssetView{}, err
	}
	return s.view(ctx, a)
}

func (s *AssetService) load(ctx context.Context, actor *model.User, id string) (*model.Asset, error) {
	aid, err := ParseID("id", id)
	if err != nil {
		return nil, err
	}
	a, err := s.assets.GetByID(ctx, aid)
	if err != nil {
		return nil, storeErr("load asset", "asset", err)
	}
	p, err := s.projects.GetByID(ctx, a.Project)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, internalErr("load asset project", err)
	}
	if !canSeeAsset(actor, a, p) {
		return nil, notFoundErr("asset")
	}
	return a, nil
}

type AssetInput struct {
	Name        string   `form:"name"`
	Description string   `form:"description"`
	Project     string   `form:"project"`
	Requirement string   `form:"requirement"`
	Tags        []string `form:"tags"`
}

// Upload stores file as version 1 of a new asset.
func (s *AssetService) Upload(ctx context.Context, actor *model.User, in AssetInput, file *storage.Upload) (AssetView, error) {
	if file == nil {
		return AssetView{}, validationErr("file is required", FieldError{Field: "file", Message: "required"})
	}
	if err := s.files.Check(*file); err != nil {
		return AssetView{}, validationErr(err.Error(), FieldError{Field: "file", Message: err.Error()})
	}
	if strings.TrimSpace(in.Project) == "" {
		return AssetView{}, validationErr("project is required", FieldError{Field: "project", Message: "required"})
	}
	pid, err := ParseID("project", in.Project)
	if err != nil {
		return AssetView{}, err
	}
	requirement, err := parseOptionalID("requirement", in.Requirement)
	if err != nil {
		return AssetView{}, err
	}
	p, err := s.projects.GetByID(ctx, pid)
	if err != nil {
		return AssetView{}, storeErr("load project", "project", err)
	}
	if !canSeeProject(actor, p) {
		return AssetView{}, notFoundErr("project")
	}

	stored, err := s.files.Save(ctx, *file)
	if err != nil {
		return AssetView{}, uploadErr(err)
	}
	now := s.now()
	a := &model.Asset{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Project:     pid,
		Requirement: requirement,
		Type:        model.AssetTypeFromMIME(stored.MimeType),
		FileURL:     stored.URL,
		FileName:    stored.Name,
		MimeType:    stored.MimeType,
		FileSize:    stored.Size,
		Version:     1,
		UploadedAt:  now,
		Tags:        cleanList(in.Tags),
		UploadedBy:  actor.ID,
	}
	if a.Name == "" {
		a.Name = stored.Name
	}
	a.Touch(now)
	if err := s.assets.Create(ctx, a); err != nil {
		_ = s.files.Remove(ctx, stored.URL)
		return AssetView{}, internalErr("create asset", err)
	}

	s.notify.Notify(ctx, Event{
		Type:    model.NotifyAssetUploaded,
		Title:   "New file uploaded",
		Message: actor.Name + " uploaded " + a.Name + " to " + p.Name,
		Link:    assetLink(a.ID),
		Sender:  actor,
	}, members(p)...)
	return s.view(ctx, a)
}

// AssetPatch edits metadata. Nil leaves a field unchanged.
type AssetPatch struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Tags        *[]string `json:"tags"`
}

// Update edits metadata and, when file is given, installs it as the next
// version. The previous file is kept in previousVersions. Two updates
// racing on the same version leave one of them with a conflict.
func (s *AssetService) Update(ctx context.Context, actor *model.User, id string, patch AssetPatch, file *storage.Upload) (AssetView, error) {
	if file != nil {
		if err := s.files.Check(*file); err != nil {
			return AssetView{}, validationErr(err.Error(), FieldError{Field: "file", Message: err.Error()})
		}
	}
	a, err := s.load(ctx, actor, id)
	if err != nil {
		return AssetView{}, err
	}
	if !actor.Role.IsStaff() && a.UploadedBy != actor.ID {
		return AssetView{}, forbiddenErr("only the uploader can change this asset")
	}

	now := s.now()
	if patch.Name != nil || patch.Description != nil || patch.Tags != nil {
		if patch.Name != nil {
			n := strings.TrimSpace(*patch.Name)
			if n == "" {
				return AssetView{}, validationErr("name is required", FieldError{Field: "name", Message: "must not be empty"})
			}
			a.Name = n
		}
		if patch.Description != nil {
			a.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.Tags != nil {
			a.Tags = cleanList(*patch.Tags)
		}
		a.Touch(now)
		if err := s.assets.UpdateMeta(ctx, a); err != nil {
			return AssetView{}, storeErr("update asset", "asset", err)
		}
	}

	if file != nil {
		stored, err := s.files.Save(ctx, *file)
		if err != nil {
			return AssetView{}, uploadErr(err)
		}
		prev := model.AssetVersion{FileURL: a.FileURL, Version: a.Version, UploadedAt: a.UploadedAt}
		meta := repository.FileMeta{
			FileURL:  stored.URL,
			FileName: stored.Name,
			MimeType: stored.MimeType,
			FileSize: stored.Size,
			Type:     model.AssetTypeFromMIME(stored.MimeType),
		}
		if err := s.assets.PushVersion(ctx, a.ID, a.Version, prev, meta, now); err != nil {
			_ = s.files.Remove(ctx, stored.URL)
			return AssetView{}, storeErr("push asset version", "asset", err)
		}
		a.PreviousVersions = append(a.PreviousVersions, prev)
		a.Version++
		a.FileURL, a.FileName, a.MimeType, a.FileSize, a.Type = meta.FileURL, meta.FileName, meta.MimeType, meta.FileSize, meta.Type
		a.UploadedAt = now
		a.UpdatedAt = now
	}
	return s.view(ctx, a)
}

// Delete removes an asset and every stored version of its file.
func (s *AssetService) Delete(ctx context.Context, actor *model.User, id string) (*model.Asset, error) {
	a, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsStaff() && a.UploadedBy != actor.ID {
		return nil, forbiddenErr("only the uploader can delete this asset")
	}
	if err := s.assets.Delete(ctx, a.ID); err != nil {
		return nil, storeErr("delete asset", "asset", err)
	}
	removeFiles(ctx, s.files, s.log, []model.Asset{*a})
	return a, nil
}

// uploadErr maps storage policy failures onto validation errors.
func uploadErr(err error) error {
	if errors.Is(err, storage.ErrTooLarge) || errors.Is(err, storage.ErrExtensionBlocked) || errors.Is(err, storage.ErrNoFile) {
		return validationErr(err.Error(), FieldError{Field: "file", Message: err.Error()})
	}
	return internalErr("store file", err)
}

func (s *AssetService) view(ctx context.Context, a *model.Asset) (AssetView, error) {
	views, err := s.views(ctx, *a)
	if err != nil {
		return AssetView{}, err
	}
	return views[0], nil
}

func (s *AssetService) views(ctx context.Context, rows ...model.Asset) ([]AssetView, error) {
	var users, projects []primitive.ObjectID
	for _, a := range rows {
		users = append(users, a.UploadedBy)
		projects = append(projects, a.Project)
	}
	rf, err := s.resolve(ctx, users, projects)
	if err != nil {
		return nil, err
	}
	out := make([]AssetView, 0, len(rows))
	for _, a := range rows {
		if a.PreviousVersions == nil {
			a.PreviousVersions = []model.AssetVersion{}
		}
		out = append(out, AssetView{Asset: a, Project: rf.project(a.Project), UploadedBy: rf.user(a.UploadedBy)})
	}
	return out, nil
}
