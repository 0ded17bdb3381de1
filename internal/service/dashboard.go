package service

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/reqtrack/reqtrack/internal/model"
)

const recentActivity = 10

type DashboardService struct {
	scoper
	projects ProjectStore
	reqs     RequirementStore
	assets   AssetStore
	notes    NotificationStore
	audit    *AuditService
}

func NewDashboardService(st Stores, audit *AuditService) *DashboardService {
	return &DashboardService{
		scoper:   scoper{projects: st.Projects},
		projects: st.Projects,
		reqs:     st.Requirements,
		assets:   st.Assets,
		notes:    st.Notes,
		audit:    audit,
	}
}

type StatusBreakdown struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"byStatus"`
}

type DashboardStats struct {
	Projects            StatusBreakdown `json:"projects"`
	Requirements        StatusBreakdown `json:"requirements"`
	Assets              int64           `json:"assets"`
	UnreadNotifications int64           `json:"unreadNotifications"`
	RecentActivity      []ActivityView  `json:"recentActivity"`
}

// Stats aggregates the counts visible to actor. The independent counts run
// concurrently.
func (s *DashboardService) Stats(ctx context.Context, actor *model.User) (DashboardStats, error) {
	scope, err := s.scope(ctx, actor)
	if err != nil {
		return DashboardStats{}, err
	}
	var (
		out        DashboardStats
		projectsBy map[string]int64
		reqsBy     map[string]int64
		recent     []ActivityView
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		projectsBy, err = s.projects.CountByStatus(gctx, scope)
		return err
	})
	g.Go(func() (err error) {
		reqsBy, err = s.reqs.CountByStatus(gctx, scope, nil)
		return err
	})
	g.Go(func() (err error) {
		out.Assets, err = s.assets.Count(gctx, scope)
		return err
	})
	g.Go(func() (err error) {
		out.UnreadNotifications, err = s.notes.CountUnread(gctx, actor.ID)
		return err
	})
	g.Go(func() (err error) {
		recent, _, err = s.audit.List(gctx, actor, ActivityQuery{PageParams: PageParams{Page: 1, Limit: recentActivity}})
		return err
	})
	if err := g.Wait(); err != nil {
		var se *Error
		if errors.As(err, &se) {
			return DashboardStats{}, se
		}
		return DashboardStats{}, internalErr("dashboard stats", err)
	}
	out.Projects = breakdown(projectsBy, model.ProjectStatuses)
	out.Requirements = breakdown(reqsBy, model.RequirementStatuses)
	out.RecentActivity = recent
	return out, nil
}

func breakdown[S ~string](counts map[string]int64, statuses []S) StatusBreakdown {
	b := StatusBreakdown{ByStatus: statusCounts(counts, statuses)}
	for _, n := range counts {
		b.Total += n
	}
	return b
}
