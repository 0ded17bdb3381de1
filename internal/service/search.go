package service

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"

	"github.com/reqtrack/reqtrack/internal/model"
	"github.com/reqtrack/reqtrack/internal/repository"
)

const (
	minQueryLen       = 2
	defaultSearchSize = 10
	maxSearchSize     = 50
	suggestionLimit   = 5
)

// Searchable entity types.
const (
	SearchProject     = "project"
	SearchRequirement = "requirement"
	SearchAsset       = "asset"
	SearchUser        = "user"
)

type SearchService struct {
	scoper
	projects ProjectStore
	reqs     RequirementStore
	assets   AssetStore
	users    UserStore
}

func NewSearchService(st Stores) *SearchService {
	return &SearchService{
		scoper:   scoper{projects: st.Projects},
		projects: st.Projects,
		reqs:     st.Requirements,
		assets:   st.Assets,
		users:    st.Users,
	}
}

type SearchQuery struct {
	Q        string `query:"q"`
	Type     string `query:"type"`
	Status   string `query:"status"`
	Priority string `query:"priority"`
	Category string `query:"category"`
	Limit    int    `query:"limit"`
}

// SearchHit is one result tagged with the collection it came from.
type SearchHit struct {
	Type        string             `json:"type"`
	ID          primitive.ObjectID `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Status      string             `json:"status,omitempty"`
	Priority    string             `json:"priority,omitempty"`
	Link        string             `json:"link"`
	CreatedAt   time.Time          `json:"createdAt"`
}

type SearchResult struct {
	Query   string         `json:"query"`
	Results []SearchHit    `json:"results"`
	Counts  map[string]int `json:"counts"`
	Total   int            `json:"total"`
}

// Search matches q case-insensitively across the requested entity types.
// The per-type queries run concurrently. Users are only searched for staff.
// Without a type filter the merged hits are ordered newest first.
func (s *SearchService) Search(ctx context.Context, actor *model.User, q SearchQuery) (SearchResult, error) {
	q.Q = strings.TrimSpace(q.Q)
	if utf8.RuneCountInString(q.Q) < minQueryLen {
		return SearchResult{}, validationErr("search query must be at least 2 characters", FieldError{Field: "q", Message: "too short"})
	}
	types, err := searchTypes(q.Type, actor)
	if err != nil {
		return SearchResult{}, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultSearchSize
	}
	if limit > maxSearchSize {
		limit = maxSearchSize
	}
	scope, err := s.scope(ctx, actor)
	if err != nil {
		return SearchResult{}, err
	}
	rq := repository.SearchQuery{
		Pattern:  q.Q,
		Status:   q.Status,
		Priority: q.Priority,
		Category: q.Category,
		Scope:    scope,
		Limit:    int64(limit),
	}

	hits := make([][]SearchHit, len(types))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range types {
		g.Go(func() error {
			h, err := s.searchType(gctx, t, rq)
			hits[i] = h
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return SearchResult{}, internalErr("search", err)
	}

	out := SearchResult{Query: q.Q, Results: []SearchHit{}, Counts: make(map[string]int, len(types))}
	for i, t := range types {
		out.Counts[t] = len(hits[i])
		out.Results = append(out.Results, hits[i]...)
	}
	if q.Type == "" {
		sort.SliceStable(out.Results, func(i, j int) bool {
			return out.Results[i].CreatedAt.After(out.Results[j].CreatedAt)
		})
	}
	out.Total = len(out.Results)
	return out, nil
}

func searchTypes(t string, actor *model.User) ([]string, error) {
	switch t {
	case "":
		types := []string{SearchProject, SearchRequirement, SearchAsset}
		if actor.Role.IsStaff() {
			types = append(types, SearchUser)
		}
		return types, nil
	case SearchProject, SearchRequirement, SearchAsset:
		return []string{t}, nil
	case SearchUser:
		if !actor.Role.IsStaff() {
			return nil, forbiddenErr("user search requires admin or manager")
		}
		return []string{t}, nil
	}
	return nil, validationErr("unknown search type", FieldError{Field: "type", Message: "must be project, requirement, asset or user"})
}

func (s *SearchService) searchType(ctx context.Context, t string, q repository.SearchQuery) ([]SearchHit, error) {
	var out []SearchHit
	switch t {
	case SearchProject:
		rows, err := s.projects.Search(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, p := range rows {
			out = append(out, SearchHit{Type: t, ID: p.ID, Title: p.Name, Description: p.Description,
				Status: string(p.Status), Priority: string(p.Priority), Link: projectLink(p.ID), CreatedAt: p.CreatedAt})
		}
	case SearchRequirement:
		rows, err := s.reqs.Search(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			out = append(out, SearchHit{Type: t, ID: r.ID, Title: r.Title, Description: r.Description,
				Status: string(r.Status), Priority: string(r.Priority), Link: requirementLink(r.ID), CreatedAt: r.CreatedAt})
		}
	case SearchAsset:
		rows, err := s.assets.Search(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, a := range rows {
			out = append(out, SearchHit{Type: t, ID: a.ID, Title: a.Name, Description: a.Description,
				Link: assetLink(a.ID), CreatedAt: a.CreatedAt})
		}
	case SearchUser:
		rows, err := s.users.Search(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, u := range rows {
			out = append(out, SearchHit{Type: t, ID: u.ID, Title: u.Name, Description: u.Email,
				Status: string(u.Role), Link: "/users/" + u.ID.Hex(), CreatedAt: u.CreatedAt})
		}
	}
	return out, nil
}

type Suggestion struct {
	Type string             `json:"type"`
	ID   primitive.ObjectID `json:"id"`
	Text string             `json:"text"`
}

// Suggestions prefix-matches project names and requirement titles. Prefixes
// shorter than two characters yield nothing.
func (s *SearchService) Suggestions(ctx context.Context, actor *model.User, prefix string) ([]Suggestion, error) {
	prefix = strings.TrimSpace(prefix)
	if utf8.RuneCountInString(prefix) < minQueryLen {
		return []Suggestion{}, nil
	}
	scope, err := s.scope(ctx, actor)
	if err != nil {
		return nil, err
	}
	var projects []model.Project
	var reqs []model.Requirement
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		projects, err = s.projects.Suggest(gctx, prefix, scope, suggestionLimit)
		return err
	})
	g.Go(func() (err error) {
		reqs, err = s.reqs.Suggest(gctx, prefix, scope, suggestionLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, internalErr("suggestions", err)
	}
	out := make([]Suggestion, 0, len(projects)+len(reqs))
	for _, p := range projects {
		out = append(out, Suggestion{Type: SearchProject, ID: p.ID, Text: p.Name})
	}
	for _, r := range reqs {
		out = append(out, Suggestion{Type: SearchRequirement, ID: r.ID, Text: r.Title})
	}
	return out, nil
}
