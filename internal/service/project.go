package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/reqtrack/reqtrack/internal/model"
	"github.com/reqtrack/reqtrack/internal/repository"
)

type ProjectService struct {
	clock
	scoper
	resolver
	projects ProjectStore
	reqs     RequirementStore
	assets   AssetStore
	users    UserStore
	files    FileStore
	notes    NotificationStore
	notify   *Notifier
	log      zerolog.Logger
}

func NewProjectService(st Stores, n *Notifier, log zerolog.Logger) *ProjectService {
	return &ProjectService{
		scoper:   scoper{projects: st.Projects},
		resolver: resolver{users: st.Users, projects: st.Projects},
		projects: st.Projects,
		reqs:     st.Requirements,
		assets:   st.Assets,
		users:    st.Users,
		files:    st.Files,
		notes:    st.Notes,
		notify:   n,
		log:      log,
	}
}

type ProjectView struct {
	model.Project
	Client    *model.UserRef  `json:"client,omitempty"`
	Team      []model.UserRef `json:"team"`
	CreatedBy *model.UserRef  `json:"createdBy"`
}

// ProjectDetail adds requirement counts per status to a project.
type ProjectDetail struct {
	ProjectView
	RequirementCounts map[string]int64 `json:"requirementCounts"`
}

type ProjectQuery struct {
	Status   string `query:"status"`
	Priority string `query:"priority"`
	Search   string `query:"search"`
	PageParams
}

func (s *ProjectService) List(ctx context.Context, actor *model.User, q ProjectQuery) ([]ProjectView, Pagination, error) {
	var fe fieldErrors
	if q.Status != "" && !model.ProjectStatus(q.Status).Valid() {
		fe.add("status", "unknown status")
	}
	if q.Priority != "" && !model.Priority(q.Priority).Valid() {
		fe.add("priority", "unknown priority")
	}
	if err := fe.err(); err != nil {
		return nil, Pagination{}, err
	}
	scope, err := s.scope(ctx, actor)
	if err != nil {
		return nil, Pagination{}, err
	}
	rows, total, err := s.projects.List(ctx, repository.ProjectFilter{
		Scope: scope, Status: q.Status, Priority: q.Priority, Search: q.Search, Page: q.repo(),
	})
	if err != nil {
		return nil, Pagination{}, internalErr("list projects", err)
	}
	views, err := s.views(ctx, rows...)
	if err != nil {
		return nil, Pagination{}, err
	}
	return views, paginate(q.PageParams, total), nil
}

// Get returns a visible project with its requirement counts.
func (s *ProjectService) Get(ctx context.Context, actor *model.User, id string) (ProjectDetail, error) {
	p, err := s.load(ctx, actor, id)
	if err != nil {
		return ProjectDetail{}, err
	}
	views, err := s.views(ctx, *p)
	if err != nil {
		return ProjectDetail{}, err
	}
	scope, err := s.scope(ctx, actor)
	if err != nil {
		return ProjectDetail{}, err
	}
	counts, err := s.reqs.CountByStatus(ctx, scope, &p.ID)
	if err != nil {
		return ProjectDetail{}, internalErr("count requirements", err)
	}
	return ProjectDetail{ProjectView: views[0], RequirementCounts: statusCounts(counts, model.RequirementStatuses)}, nil
}

func (s *ProjectService) load(ctx context.Context, actor *model.User, id string) (*model.Project, error) {
	pid, err := ParseID("id", id)
	if err != nil {
		return nil, err
	}
	p, err := s.projects.GetByID(ctx, pid)
	if err != nil {
		return nil, storeErr("load project", "project", err)
	}
	if !canSeeProject(actor, p) {
		return nil, notFoundErr("project")
	}
	return p, nil
}

type ProjectInput struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Status      string           `json:"status"`
	Priority    string           `json:"priority"`
	StartDate   *time.Time       `json:"startDate"`
	Deadline    *time.Time       `json:"deadline"`
	Client      string           `json:"client"`
	ClientInfo  model.ClientInfo `json:"clientInfo"`
	Team        []string         `json:"team"`
	Tags        []string         `json:"tags"`
}

func (in *ProjectInput) Validate() error {
	var fe fieldErrors
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		fe.add("name", "name is required")
	}
	if in.Status != "" && !model.ProjectStatus(in.Status).Valid() {
		fe.add("status", "unknown status")
	}
	if in.Priority != "" && !model.Priority(in.Priority).Valid() {
		fe.add("priority", "unknown priority")
	}
	if in.StartDate != nil && in.Deadline != nil && in.Deadline.Before(*in.StartDate) {
		fe.add("deadline", "deadline must not be before start date")
	}
	if e := normalizeClientInfo(&in.ClientInfo); e != "" {
		fe.add("clientInfo.email", e)
	}
	return fe.err()
}

func normalizeClientInfo(ci *model.ClientInfo) string {
	ci.Name = strings.TrimSpace(ci.Name)
	ci.Email = strings.ToLower(strings.TrimSpace(ci.Email))
	ci.Company = strings.TrimSpace(ci.Company)
	ci.Phone = strings.TrimSpace(ci.Phone)
	if ci.Email != "" && !validEmail(ci.Email) {
		return "invalid client email"
	}
	return ""
}

func (s *ProjectService) Create(ctx context.Context, actor *model.User, in ProjectInput) (ProjectView, error) {
	if err := in.Validate(); err != nil {
		return ProjectView{}, err
	}
	client, err := s.client(ctx, in.Client)
	if err != nil {
		return ProjectView{}, err
	}
	team, err := s.team(ctx, in.Team)
	if err != nil {
		return ProjectView{}, err
	}

	p := &model.Project{
		Name:        in.Name,
		Description: in.Description,
		Status:      orDefault(model.ProjectStatus(in.Status), model.ProjectPlanning),
		Priority:    orDefault(model.Priority(in.Priority), model.PriorityMedium),
		StartDate:   in.StartDate,
		Deadline:    in.Deadline,
		ClientInfo:  in.ClientInfo,
		Team:        team,
		Tags:        cleanList(in.Tags),
		CreatedBy:   actor.ID,
	}
	if client != nil {
		p.Client = &client.ID
		fillClientInfo(&p.ClientInfo, client)
	}
	p.Touch(s.now())
	if err := s.projects.Create(ctx, p); err != nil {
		return ProjectView{}, internalErr("create project", err)
	}

	s.notify.Notify(ctx, Event{
		Type:    model.NotifyProjectUpdate,
		Title:   "Added to project",
		Message: "You were added to " + p.Name,
		Link:    projectLink(p.ID),
		Sender:  actor,
	}, members(p)...)

	views, err := s.views(ctx, *p)
	if err != nil {
		return ProjectView{}, err
	}
	return views[0], nil
}

// ProjectPatch carries the fields to change; nil leaves a field as is. An
// empty Client unlinks the client account.
type ProjectPatch struct {
	Name        *string           `json:"name"`
	Description *string           `json:"description"`
	Status      *string           `json:"status"`
	Priority    *string           `json:"priority"`
	StartDate   *time.Time        `json:"startDate"`
	Deadline    *time.Time        `json:"deadline"`
	Client      *string           `json:"client"`
	ClientInfo  *model.ClientInfo `json:"clientInfo"`
	Team        *[]string         `json:"team"`
	Tags        *[]string         `json:"tags"`
}

func (s *ProjectService) Update(ctx context.Context, actor *model.User, id string, patch ProjectPatch) (ProjectView, error) {
	p, err := s.load(ctx, actor, id)
	if err != nil {
		return ProjectView{}, err
	}
	prevStatus := p.Status
	prevTeam := append([]primitive.ObjectID(nil), p.Team...)

	var fe fieldErrors
	if patch.Name != nil {
		if n := strings.TrimSpace(*patch.Name); n == "" {
			fe.add("name", "name is required")
		} else {
			p.Name = n
		}
	}
	if patch.Description != nil {
		p.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Status != nil {
		if st := model.ProjectStatus(*patch.Status); st.Valid() {
			p.Status = st
		} else {
			fe.add("status", "unknown status")
		}
	}
	if patch.Priority != nil {
		if pr := model.Priority(*patch.Priority); pr.Valid() {
			p.Priority = pr
		} else {
			fe.add("priority", "unknown priority")
		}
	}
	if patch.StartDate != nil {
		p.StartDate = patch.StartDate
	}
	if patch.Deadline != nil {
		p.Deadline = patch.Deadline
	}
	if p.StartDate != nil && p.Deadline != nil && p.Deadline.Before(*p.StartDate) {
		fe.add("deadline", "deadline must not be before start date")
	}
	if patch.ClientInfo != nil {
		ci := *patch.ClientInfo
		if e := normalizeClientInfo(&ci); e != "" {
			fe.add("clientInfo.email", e)
		}
		p.ClientInfo = ci
	}
	if err := fe.err(); err != nil {
		return ProjectView{}, err
	}

	if patch.Client != nil {
		client, err := s.client(ctx, *patch.Client)
		if err != nil {
			return ProjectView{}, err
		}
		p.Client = nil
		if client != nil {
			p.Client = &client.ID
			fillClientInfo(&p.ClientInfo, client)
		}
	}
	if patch.Team != nil {
		if p.Team, err = s.team(ctx, *patch.Team); err != nil {
			return ProjectView{}, err
		}
	}
	if patch.Tags != nil {
		p.Tags = cleanList(*patch.Tags)
	}

	p.Touch(s.now())
	if err := s.projects.Update(ctx, p); err != nil {
		return ProjectView{}, storeErr("update project", "project", err)
	}

	if added := newMembers(prevTeam, p.Team); len(added) > 0 {
		s.notify.Notify(ctx, Event{
			Type:    model.NotifyProjectUpdate,
			Title:   "Added to project",
			Message: "You were added to " + p.Name,
			Link:    projectLink(p.ID),
			Sender:  actor,
		}, added...)
	}
	if p.Status != prevStatus {
		s.notify.Notify(ctx, Event{
			Type:    model.NotifyProjectUpdate,
			Title:   "Project status changed",
			Message: p.Name + " is now " + string(p.Status),
			Link:    projectLink(p.ID),
			Sender:  actor,
		}, members(p)...)
	}

	views, err := s.views(ctx, *p)
	if err != nil {
		return ProjectView{}, err
	}
	return views[0], nil
}

// Delete removes a project with its requirements and assets. Only the
// project delete itself can fail the call.
func (s *ProjectService) Delete(ctx context.Context, actor *model.User, id string) (*model.Project, error) {
	p, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.projects.Delete(ctx, p.ID); err != nil {
		return nil, storeErr("delete project", "project", err)
	}
	if n, err := s.reqs.DeleteByProject(ctx, p.ID); err != nil {
		s.log.Error().Err(err).Str("project", p.ID.Hex()).Msg("cascade requirements")
	} else if n > 0 {
		s.log.Info().Str("project", p.ID.Hex()).Int64("requirements", n).Msg("project requirements removed")
	}
	removed, err := s.assets.DeleteByProject(ctx, p.ID)
	if err != nil {
		s.log.Error().Err(err).Str("project", p.ID.Hex()).Msg("cascade assets")
	}
	removeFiles(ctx, s.files, s.log, removed)
	if _, err := s.notes.DeleteByLink(ctx, projectLink(p.ID)); err != nil {
		s.log.Error().Err(err).Str("project", p.ID.Hex()).Msg("cascade notifications")
	}
	return p, nil
}

func (s *ProjectService) client(ctx context.Context, raw string) (*model.User, error) {
	id, err := parseOptionalID("client", raw)
	if err != nil || id == nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, *id)
	if err != nil {
		return nil, storeErrAs(err, "load client", validationErr("client not found", FieldError{Field: "client", Message: "unknown user"}))
	}
	if u.Role != model.RoleClient {
		return nil, validationErr("client must have the client role", FieldError{Field: "client", Message: "not a client"})
	}
	return u, nil
}

func (s *ProjectService) team(ctx context.Context, raw []string) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, r := range raw {
		id, err := ParseID("team", r)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	ids = dedupe(ids)
	found, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, internalErr("load team", err)
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return nil, validationErr("team member not found", FieldError{Field: "team", Message: "unknown user " + id.Hex()})
		}
	}
	return ids, nil
}

func (s *ProjectService) views(ctx context.Context, rows ...model.Project) ([]ProjectView, error) {
	var ids []primitive.ObjectID
	for _, p := range rows {
		ids = append(ids, p.CreatedBy)
		ids = append(ids, p.Team...)
		if p.Client != nil {
			ids = append(ids, *p.Client)
		}
	}
	rf, err := s.resolve(ctx, ids, nil)
	if err != nil {
		return nil, err
	}
	out := make([]ProjectView, 0, len(rows))
	for _, p := range rows {
		v := ProjectView{Project: p, Client: rf.userPtr(p.Client), CreatedBy: rf.user(p.CreatedBy), Team: make([]model.UserRef, 0, len(p.Team))}
		for _, id := range p.Team {
			v.Team = append(v.Team, *rf.user(id))
		}
		out = append(out, v)
	}
	return out, nil
}

// members is the linked client plus the team.
func members(p *model.Project) []primitive.ObjectID {
	out := append([]primitive.ObjectID(nil), p.Team...)
	if p.Client != nil {
		out = append(out, *p.Client)
	}
	return out
}

func newMembers(before, after []primitive.ObjectID) []primitive.ObjectID {
	had := make(map[primitive.ObjectID]bool, len(before))
	for _, id := range before {
		had[id] = true
	}
	var out []primitive.ObjectID
	for _, id := range after {
		if !had[id] {
			out = append(out, id)
		}
	}
	return out
}

// fillClientInfo copies contact details from a linked client where the
// project has none.
func fillClientInfo(ci *model.ClientInfo, u *model.User) {
	if ci.Name == "" {
		ci.Name = u.Name
	}
	if ci.Email == "" {
		ci.Email = u.Email
	}
	if ci.Company == "" {
		ci.Company = u.Company
	}
	if ci.Phone == "" {
		ci.Phone = u.Phone
	}
}

// statusCounts returns a count for every status, zero when absent.
func statusCounts[S ~string](counts map[string]int64, statuses []S) map[string]int64 {
	out := make(map[string]int64, len(statuses))
	for _, st := range statuses {
		out[string(st)] = counts[string(st)]
	}
	return out
}
