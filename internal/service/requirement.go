package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/reqtrack/reqtrack/internal/model"
	"github.com/reqtrack/reqtrack/internal/repository"
	"github.com/reqtrack/reqtrack/internal/storage"
)

// MaxSubmissionFiles bounds the attachments of one client submission.
const MaxSubmissionFiles = 5

type RequirementService struct {
	clock
	scoper
	resolver
	reqs     RequirementStore
	projects ProjectStore
	users    UserStore
	assets   AssetStore
	files    FileStore
	notes    NotificationStore
	notify   *Notifier
	log      zerolog.Logger
}

func NewRequirementService(st Stores, n *Notifier, log zerolog.Logger) *RequirementService {
	return &RequirementService{
		scoper:   scoper{projects: st.Projects},
		resolver: resolver{users: st.Users, projects: st.Projects},
		reqs:     st.Requirements,
		projects: st.Projects,
		users:    st.Users,
		assets:   st.Assets,
		files:    st.Files,
		notes:    st.Notes,
		notify:   n,
		log:      log,
	}
}

type CommentView struct {
	ID        primitive.ObjectID `json:"id"`
	User      *model.UserRef     `json:"user"`
	Text      string             `json:"text"`
	CreatedAt time.Time          `json:"createdAt"`
}

// RequirementView is a requirement with its references resolved to names.
type RequirementView struct {
	model.Requirement
	Project    *model.ProjectRef `json:"project"`
	CreatedBy  *model.UserRef    `json:"createdBy"`
	AssignedTo *model.UserRef    `json:"assignedTo,omitempty"`
	Comments   []CommentView     `json:"comments"`
}

// RequirementQuery filters the requirement listing. Empty fields match
// everything.
type RequirementQuery struct {
	Project  string `query:"project"`
	Status   string `query:"status"`
	Category string `query:"category"`
	Priority string `query:"priority"`
	Search   string `query:"search"`
	PageParams
}

func (q RequirementQuery) validate() error {
	var fe fieldErrors
	if q.Status != "" && !model.RequirementStatus(q.Status).Valid() {
		fe.add("status", "unknown status")
	}
	if q.Category != "" && !model.RequirementCategory(q.Category).Valid() {
		fe.add("category", "unknown category")
	}
	if q.Priority != "" && !model.Priority(q.Priority).Valid() {
		fe.add("priority", "unknown priority")
	}
	return fe.err()
}

// List returns the visible requirements matching q, newest first.
func (s *RequirementService) List(ctx context.Context, actor *model.User, q RequirementQuery) ([]RequirementView, Pagination, error) {
	if err := q.validate(); err != nil {
		return nil, Pagination{}, err
	}
	project, err := parseOptionalID("project", q.Project)
	if err != nil {
		return nil, Pagination{}, err
	}
	scope, err := s.scope(ctx, actor)
	if err != nil {
		return nil, Pagination{}, err
	}
	rows, total, err := s.reqs.List(ctx, repository.RequirementFilter{
		Scope:    scope,
		Project:  project,
		Status:   q.Status,
		Category: q.Category,
		Priority: q.Priority,
		Search:   q.Search,
		Page:     q.repo(),
	})
	if err != nil {
		return nil, Pagination{}, internalErr("list requirements", err)
	}
	views, err := s.views(ctx, rows...)
	if err != nil {
		return nil, Pagination{}, err
	}
	return views, paginate(q.PageParams, total), nil
}

// ListAll returns every visible requirement matching q, ignoring paging.
// Exports use it.
func (s *RequirementService) ListAll(ctx context.Context, actor *model.User, q RequirementQuery) ([]RequirementView, error) {
	q.PageParams = PageParams{Page: 1, Limit: maxPageSize}
	var out []RequirementView
	for {
		views, pg, err := s.List(ctx, actor, q)
		if err != nil {
			return nil, err
		}
		out = append(out, views...)
		if int64(q.Page) >= pg.Pages {
			return out, nil
		}
		q.Page++
	}
}

func (s *RequirementService) Get(ctx context.Context, actor *model.User, id string) (RequirementView, error) {
	rid, err := ParseID("id", id)
	if err != nil {
		return RequirementView{}, err
	}
	r, _, err := s.load(ctx, actor, rid)
	if err != nil {
		return RequirementView{}, err
	}
	return s.view(ctx, r)
}

// load fetches a requirement the actor may see. Invisible requirements are
// reported as missing.
func (s *RequirementService) load(ctx context.Context, actor *model.User, id primitive.ObjectID) (*model.Requirement, *model.Project, error) {
	r, err := s.reqs.GetByID(ctx, id)
	if err != nil {
		return nil, nil, storeErr("load requirement", "requirement", err)
	}
	p, err := s.projects.GetByID(ctx, r.Project)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, internalErr("load requirement project", err)
	}
	if !canSeeRequirement(actor, r, p) {
		return nil, nil, notFoundErr("requirement")
	}
	return r, p, nil
}

// RequirementInput is the create payload.
type RequirementInput struct {
	Title              string     `json:"title" form:"title"`
	Description        string     `json:"description" form:"description"`
	Project            string     `json:"project" form:"project"`
	Category           string     `json:"category" form:"category"`
	Priority           string     `json:"priority" form:"priority"`
	Status             string     `json:"status" form:"status"`
	AcceptanceCriteria []string   `json:"acceptanceCriteria" form:"acceptanceCriteria"`
	Tags               []string   `json:"tags" form:"tags"`
	DueDate            *time.Time `json:"dueDate"`
	AssignedTo         string     `json:"assignedTo" form:"assignedTo"`
}

func (in *RequirementInput) Validate() error {
	var fe fieldErrors
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Project = strings.TrimSpace(in.Project)
	if in.Title == "" {
		fe.add("title", "title is required")
	}
	if in.Description == "" {
		fe.add("description", "description is required")
	}
	if in.Project == "" {
		fe.add("project", "project is required")
	}
	if in.Category != "" && !model.RequirementCategory(in.Category).Valid() {
		fe.add("category", "unknown category")
	}
	if in.Priority != "" && !model.Priority(in.Priority).Valid() {
		fe.add("priority", "unknown priority")
	}
	if in.Status != "" && !model.RequirementStatus(in.Status).Valid() {
		fe.add("status", "unknown status")
	}
	return fe.err()
}

// Create persists a new requirement. Clients may only open draft or pending
// requirements and cannot assign them.
func (s *RequirementService) Create(ctx context.Context, actor *model.User, in RequirementInput) (RequirementView, error) {
	r, p, err := s.create(ctx, actor, in)
	if err != nil {
		return RequirementView{}, err
	}
	s.announce(ctx, actor, r, p)
	return s.view(ctx, r)
}

func (s *RequirementService) create(ctx context.Context, actor *model.User, in RequirementInput) (*model.Requirement, *model.Project, error) {
	if err := in.Validate(); err != nil {
		return nil, nil, err
	}
	pid, err := ParseID("project", in.Project)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.projects.GetByID(ctx, pid)
	if err != nil {
		return nil, nil, storeErr("load project", "project", err)
	}
	if !canSeeProject(actor, p) {
		return nil, nil, notFoundErr("project")
	}

	status := model.RequirementStatus(in.Status)
	if status == "" {
		status = model.StatusDraft
	}
	if actor.Role == model.RoleClient {
		if !status.ClientEditable() {
			return nil, nil, validationErr("clients may only create draft or pending requirements",
				FieldError{Field: "status", Message: "must be draft or pending"})
		}
		if in.AssignedTo != "" {
			return nil, nil, validationErr("clients cannot assign requirements",
				FieldError{Field: "assignedTo", Message: "not allowed"})
		}
	}
	assignee, err := s.assignee(ctx, in.AssignedTo)
	if err != nil {
		return nil, nil, err
	}

	r := &model.Requirement{
		Title:              in.Title,
		Description:        in.Description,
		Project:            pid,
		Category:           orDefault(model.RequirementCategory(in.Category), model.CategoryFunctional),
		Priority:           orDefault(model.Priority(in.Priority), model.PriorityMedium),
		Status:             status,
		AcceptanceCriteria: cleanList(in.AcceptanceCriteria),
		Tags:               cleanList(in.Tags),
		DueDate:            in.DueDate,
		CreatedBy:          actor.ID,
		AssignedTo:         assignee,
	}
	r.Touch(s.now())
	if err := s.reqs.Create(ctx, r); err != nil {
		return nil, nil, internalErr("create requirement", err)
	}
	return r, p, nil
}

// announce notifies an assignee, and staff when a client opened a pending
// requirement.
func (s *RequirementService) announce(ctx context.Context, actor *model.User, r *model.Requirement, p *model.Project) {
	if r.AssignedTo != nil {
		s.notify.Notify(ctx, Event{
			Type:    model.NotifyAssignment,
			Title:   "Requirement assigned",
			Message: "You were assigned \"" + r.Title + "\"",
			Link:    requirementLink(r.ID),
			Sender:  actor,
		}, *r.AssignedTo)
	}
	if actor.Role == model.RoleClient && r.Status == model.StatusPending {
		staff, err := s.users.IDsByRole(ctx, model.RoleAdmin, model.RoleManager)
		if err != nil {
			s.log.Warn().Err(err).Msg("load staff for submission notice")
			return
		}
		s.notify.Notify(ctx, Event{
			Type:    model.NotifyRequirementSubmitted,
			Title:   "New requirement submitted",
			Message: actor.Name + " submitted \"" + r.Title + "\" for " + p.Name,
			Link:    requirementLink(r.ID),
			Sender:  actor,
		}, staff...)
	}
}

func (s *RequirementService) assignee(ctx context.Context, raw string) (*primitive.ObjectID, error) {
	id, err := parseOptionalID("assignedTo", raw)
	if err != nil || id == nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, *id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, validationErr("assignee not found", FieldError{Field: "assignedTo", Message: "unknown user"})
		}
		return nil, internalErr("load assignee", err)
	}
	return id, nil
}

// Submission is the result of a client submission.
type Submission struct {
	Requirement RequirementView `json:"requirement"`
	Assets      []model.Asset   `json:"assets"`
}

// ClientSubmit creates a pending requirement and stores each file as an
// asset of the same project. Files are checked before anything is written.
// The writes are sequential without rollback: a file that fails to store
// is logged and left out of the attachments.
func (s *RequirementService) ClientSubmit(ctx context.Context, actor *model.User, in RequirementInput, files []storage.Upload) (Submission, error) {
	if len(files) > MaxSubmissionFiles {
		return Submission{}, validationErr("at most 5 files per submission", FieldError{Field: "files", Message: "too many files"})
	}
	for _, f := range files {
		if err := s.files.Check(f); err != nil {
			return Submission{}, validationErr(err.Error(), FieldError{Field: "files", Message: err.Error()})
		}
	}
	in.Status = string(model.StatusPending)
	in.AssignedTo = ""
	if err := in.Validate(); err != nil {
		return Submission{}, err
	}

	r, p, err := s.create(ctx, actor, in)
	if err != nil {
		return Submission{}, err
	}

	assets := make([]model.Asset, 0, len(files))
	atts := make([]model.Attachment, 0, len(files))
	for _, f := range files {
		a, err := s.storeAttachment(ctx, actor, r, f)
		if err != nil {
			s.log.Error().Err(err).Str("requirement", r.ID.Hex()).Str("file", f.Filename).Msg("attachment not stored")
			continue
		}
		assets = append(assets, *a)
		atts = append(atts, model.Attachment{Filename: a.FileName, URL: a.FileURL, UploadedAt: a.CreatedAt})
	}
	if len(atts) > 0 {
		if err := s.reqs.PushAttachments(ctx, r.ID, atts, s.now()); err != nil {
			s.log.Error().Err(err).Str("requirement", r.ID.Hex()).Msg("attachments not linked")
		} else {
			r.Attachments = append(r.Attachments, atts...)
		}
	}

	s.announce(ctx, actor, r, p)
	view, err := s.view(ctx, r)
	if err != nil {
		return Submission{}, err
	}
	return Submission{Requirement: view, Assets: assets}, nil
}

func (s *RequirementService) storeAttachment(ctx context.Context, actor *model.User, r *model.Requirement, f storage.Upload) (*model.Asset, error) {
	stored, err := s.files.Save(ctx, f)
	if err != nil {
		return nil, err
	}
	now := s.now()
	a := &model.Asset{
		Name:        stored.Name,
		Description: "Attachment of " + r.Title,
		Project:     r.Project,
		Requirement: &r.ID,
		Type:        model.AssetTypeFromMIME(stored.MimeType),
		FileURL:     stored.URL,
		FileName:    stored.Name,
		MimeType:    stored.MimeType,
		FileSize:    stored.Size,
		Version:     1,
		UploadedAt:  now,
		Tags:        []string{model.TagClientUpload, model.TagRequirementAttachment},
		UploadedBy:  actor.ID,
	}
	a.Touch(now)
	if err := s.assets.Create(ctx, a); err != nil {
		_ = s.files.Remove(ctx, stored.URL)
		return nil, err
	}
	return a, nil
}

// RequirementPatch carries the fields to change. Nil leaves a field as is;
// an empty AssignedTo unassigns.
type RequirementPatch struct {
	Title              *string    `json:"title"`
	Description        *string    `json:"description"`
	Project            *string    `json:"project"`
	Category           *string    `json:"category"`
	Priority           *string    `json:"priority"`
	Status             *string    `json:"status"`
	AcceptanceCriteria *[]string  `json:"acceptanceCriteria"`
	Tags               *[]string  `json:"tags"`
	DueDate            *time.Time `json:"dueDate"`
	AssignedTo         *string    `json:"assignedTo"`
}

// Update applies patch. A client may only edit requirements it created,
// only while they are draft or pending, and may not change the assignee
// or move the status past pending.
func (s *RequirementService) Update(ctx context.Context, actor *model.User, id string, patch RequirementPatch) (RequirementView, error) {
	rid, err := ParseID("id", id)
	if err != nil {
		return RequirementView{}, err
	}
	r, _, err := s.load(ctx, actor, rid)
	if err != nil {
		return RequirementView{}, err
	}

	if actor.Role == model.RoleClient {
		if r.CreatedBy != actor.ID {
			return RequirementView{}, forbiddenErr("you can only edit requirements you created")
		}
		if !r.Status.ClientEditable() {
			return RequirementView{}, validationErr("cannot update after review")
		}
		if patch.AssignedTo != nil {
			return RequirementView{}, validationErr("clients cannot assign requirements",
				FieldError{Field: "assignedTo", Message: "not allowed"})
		}
		if patch.Status != nil && !model.RequirementStatus(*patch.Status).ClientEditable() {
			return RequirementView{}, validationErr("clients cannot change the review status",
				FieldError{Field: "status", Message: "must be draft or pending"})
		}
	}

	prevStatus, prevAssignee := r.Status, r.AssignedTo
	if err := s.apply(ctx, actor, r, patch); err != nil {
		return RequirementView{}, err
	}
	r.Touch(s.now())
	if err := s.reqs.Update(ctx, r); err != nil {
		return RequirementView{}, storeErr("update requirement", "requirement", err)
	}

	if r.AssignedTo != nil && (prevAssignee == nil || *prevAssignee != *r.AssignedTo) {
		s.notify.Notify(ctx, Event{
			Type:    model.NotifyAssignment,
			Title:   "Requirement assigned",
			Message: "You were assigned \"" + r.Title + "\"",
			Link:    requirementLink(r.ID),
			Sender:  actor,
		}, *r.AssignedTo)
	}
	if r.Status != prevStatus {
		s.notify.Notify(ctx, Event{
			Type:    model.NotifyStatusChanged,
			Title:   "Requirement status changed",
			Message: "\"" + r.Title + "\" moved from " + string(prevStatus) + " to " + string(r.Status),
			Link:    requirementLink(r.ID),
			Sender:  actor,
		}, r.CreatedBy)
	} else {
		s.notify.Notify(ctx, Event{
			Type:    model.NotifyRequirementUpdated,
			Title:   "Requirement updated",
			Message: actor.Name + " updated \"" + r.Title + "\"",
			Link:    requirementLink(r.ID),
			Sender:  actor,
		}, r.CreatedBy)
	}
	return s.view(ctx, r)
}

func (s *RequirementService) apply(ctx context.Context, actor *model.User, r *model.Requirement, p RequirementPatch) error {
	var fe fieldErrors
	if p.Title != nil {
		if t := strings.TrimSpace(*p.Title); t == "" {
			fe.add("title", "title is required")
		} else {
			r.Title = t
		}
	}
	if p.Description != nil {
		if d := strings.TrimSpace(*p.Description); d == "" {
			fe.add("description", "description is required")
		} else {
			r.Description = d
		}
	}
	if p.Category != nil {
		if c := model.RequirementCategory(*p.Category); c.Valid() {
			r.Category = c
		} else {
			fe.add("category", "unknown category")
		}
	}
	if p.Priority != nil {
		if pr := model.Priority(*p.Priority); pr.Valid() {
			r.Priority = pr
		} else {
			fe.add("priority", "unknown priority")
		}
	}
	if p.Status != nil {
		if st := model.RequirementStatus(*p.Status); st.Valid() {
			r.Status = st
		} else {
			fe.add("status", "unknown status")
		}
	}
	if err := fe.err(); err != nil {
		return err
	}

	if p.AcceptanceCriteria != nil {
		r.AcceptanceCriteria = cleanList(*p.AcceptanceCriteria)
	}
	if p.Tags != nil {
		r.Tags = cleanList(*p.Tags)
	}
	if p.DueDate != nil {
		r.DueDate = p.DueDate
	}
	if p.Project != nil {
		pid, err := ParseID("project", *p.Project)
		if err != nil {
			return err
		}
		proj, err := s.projects.GetByID(ctx, pid)
		if err != nil {
			return storeErr("load project", "project", err)
		}
		if !canSeeProject(actor, proj) {
			return notFoundErr("project")
		}
		r.Project = pid
	}
	if p.AssignedTo != nil {
		id, err := s.assignee(ctx, *p.AssignedTo)
		if err != nil {
			return err
		}
		r.AssignedTo = id
	}
	return nil
}

// AddComment appends a comment with a single atomic push, so concurrent
// comments never overwrite each other.
func (s *RequirementService) AddComment(ctx context.Context, actor *model.User, id, text string) (CommentView, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return CommentView{}, validationErr("comment text is required", FieldError{Field: "text", Message: "must not be empty"})
	}
	rid, err := ParseID("id", id)
	if err != nil {
		return CommentView{}, err
	}
	r, _, err := s.load(ctx, actor, rid)
	if err != nil {
		return CommentView{}, err
	}
	now := s.now()
	c := model.Comment{ID: primitive.NewObjectID(), User: actor.ID, Text: text, CreatedAt: now}
	if err := s.reqs.PushComment(ctx, rid, c, now); err != nil {
		return CommentView{}, storeErr("add comment", "requirement", err)
	}

	recipients := []primitive.ObjectID{r.CreatedBy}
	if r.AssignedTo != nil {
		recipients = append(recipients, *r.AssignedTo)
	}
	s.notify.Notify(ctx, Event{
		Type:    model.NotifyCommentAdded,
		Title:   "New comment",
		Message: actor.Name + " commented on \"" + r.Title + "\"",
		Link:    requirementLink(r.ID),
		Sender:  actor,
	}, recipients...)

	return CommentView{ID: c.ID, User: actor.Ref(), Text: c.Text, CreatedAt: c.CreatedAt}, nil
}

// Delete removes a requirement, then the assets attached to it (with their
// stored files) and the notifications linking to it. The cleanup steps are
// best effort once the requirement itself is gone.
func (s *RequirementService) Delete(ctx context.Context, actor *model.User, id string) (*model.Requirement, error) {
	rid, err := ParseID("id", id)
	if err != nil {
		return nil, err
	}
	r, _, err := s.load(ctx, actor, rid)
	if err != nil {
		return nil, err
	}
	if err := s.reqs.Delete(ctx, rid); err != nil {
		return nil, storeErr("delete requirement", "requirement", err)
	}

	removed, err := s.assets.DeleteByRequirement(ctx, rid)
	if err != nil {
		s.log.Error().Err(err).Str("requirement", rid.Hex()).Msg("cascade assets")
	}
	removeFiles(ctx, s.files, s.log, removed)
	if _, err := s.notes.DeleteByLink(ctx, requirementLink(rid)); err != nil {
		s.log.Error().Err(err).Str("requirement", rid.Hex()).Msg("cascade notifications")
	}
	return r, nil
}

func removeFiles(ctx context.Context, files FileStore, log zerolog.Logger, assets []model.Asset) {
	for i := range assets {
		for _, url := range assets[i].FileURLs() {
			if err := files.Remove(ctx, url); err != nil {
				log.Warn().Err(err).Str("url", url).Msg("remove stored file")
			}
		}
	}
}

func (s *RequirementService) view(ctx context.Context, r *model.Requirement) (RequirementView, error) {
	views, err := s.views(ctx, *r)
	if err != nil {
		return RequirementView{}, err
	}
	return views[0], nil
}

func (s *RequirementService) views(ctx context.Context, rows ...model.Requirement) ([]RequirementView, error) {
	var userIDs, projectIDs []primitive.ObjectID
	for _, r := range rows {
		projectIDs = append(projectIDs, r.Project)
		userIDs = append(userIDs, r.CreatedBy)
		if r.AssignedTo != nil {
			userIDs = append(userIDs, *r.AssignedTo)
		}
		for _, c := range r.Comments {
			userIDs = append(userIDs, c.User)
		}
	}
	rf, err := s.resolve(ctx, userIDs, projectIDs)
	if err != nil {
		return nil, err
	}
	out := make([]RequirementView, 0, len(rows))
	for _, r := range rows {
		v := RequirementView{
			Requirement: r,
			Project:     rf.project(r.Project),
			CreatedBy:   rf.user(r.CreatedBy),
			AssignedTo:  rf.userPtr(r.AssignedTo),
			Comments:    make([]CommentView, 0, len(r.Comments)),
		}
		if v.Requirement.Attachments == nil {
			v.Requirement.Attachments = []model.Attachment{}
		}
		if v.Requirement.AcceptanceCriteria == nil {
			v.Requirement.AcceptanceCriteria = []string{}
		}
		for _, c := range r.Comments {
			v.Comments = append(v.Comments, CommentView{ID: c.ID, User: rf.user(c.User), Text: c.Text, CreatedAt: c.CreatedAt})
		}
		out = append(out, v)
	}
	return out, nil
}

func orDefault[T ~string](v, def T) T {
	if v == "" {
		return def
	}
	return v
}
