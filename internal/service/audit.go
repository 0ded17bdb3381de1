package service

import (
	"context"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/reqtrack/reqtrack/internal/model"
	"github.com/reqtrack/reqtrack/internal/repository"
)

// AuditService writes and reads the activity log.
type AuditService struct {
	clock
	store ActivityStore
	users UserStore
	log   zerolog.Logger
}

func NewAuditService(store ActivityStore, users UserStore, log zerolog.Logger) *AuditService {
	return &AuditService{store: store, users: users, log: log}
}

// Record appends e. A failed insert is logged and swallowed so auditing
// never fails a request that already succeeded.
func (s *AuditService) Record(ctx context.Context, e *model.ActivityLog) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	if err := s.store.Insert(ctx, e); err != nil {
		s.log.Error().Err(err).
			Str("action", string(e.Action)).
			Str("user", e.User.Hex()).
			Msg("activity log insert failed")
	}
}

// ActivityQuery filters the activity listing.
type ActivityQuery struct {
	TargetType string `query:"targetType"`
	TargetID   string `query:"targetId"`
	User       string `query:"user"`
	PageParams
}

// ActivityView is an entry with its actor resolved.
type ActivityView struct {
	model.ActivityLog
	User *model.UserRef `json:"user"`
}

// List returns activity entries. Staff see everything and may filter by
// user; everyone else only sees their own entries.
func (s *AuditService) List(ctx context.Context, actor *model.User, q ActivityQuery) ([]ActivityView, Pagination, error) {
	f := repository.ActivityFilter{TargetType: q.TargetType, Page: q.repo()}
	if q.TargetID != "" {
		id, err := ParseID("targetId", q.TargetID)
		if err != nil {
			return nil, Pagination{}, err
		}
		f.TargetID = &id
	}
	switch {
	case !actor.Role.IsStaff():
		f.User = &actor.ID
	case q.User != "":
		id, err := ParseID("user", q.User)
		if err != nil {
			return nil, Pagination{}, err
		}
		f.User = &id
	}

	rows, total, err := s.store.List(ctx, f)
	if err != nil {
		return nil, Pagination{}, internalErr("list activity", err)
	}
	views, err := s.views(ctx, rows)
	if err != nil {
		return nil, Pagination{}, err
	}
	return views, paginate(q.PageParams, total), nil
}

func (s *AuditService) views(ctx context.Context, rows []model.ActivityLog) ([]ActivityView, error) {
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.User)
	}
	rf, err := resolver{users: s.users}.resolve(ctx, ids, nil)
	if err != nil {
		return nil, err
	}
	out := make([]ActivityView, 0, len(rows))
	for _, r := range rows {
		out = append(out, ActivityView{ActivityLog: r, User: rf.user(r.User)})
	}
	return out, nil
}
