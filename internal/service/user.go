package service

import (
	"context"

	"github.com/reqtrack/reqtrack/internal/model"
	"github.com/reqtrack/reqtrack/internal/repository"
)

// UserService covers account administration.
type UserService struct {
	clock
	users UserStore
}

func NewUserService(users UserStore) *UserService { return &UserService{users: users} }

type UserQuery struct {
	Role   string `query:"role"`
	Search string `query:"search"`
	PageParams
}

func (s *UserService) List(ctx context.Context, q UserQuery) ([]model.User, Pagination, error) {
	if q.Role != "" && !model.Role(q.Role).Valid() {
		return nil, Pagination{}, validationErr("unknown role", FieldError{Field: "role", Message: "unknown role"})
	}
	rows, total, err := s.users.List(ctx, repository.UserFilter{Role: q.Role, Search: q.Search, Page: q.repo()})
	if err != nil {
		return nil, Pagination{}, internalErr("list users", err)
	}
	return rows, paginate(q.PageParams, total), nil
}

// SetRole changes another user's role. Admins cannot change their own role
// so the last admin cannot lock everyone out.
func (s *UserService) SetRole(ctx context.Context, actor *model.User, id, role string) (*model.User, error) {
	r := model.Role(role)
	if !r.Valid() {
		return nil, validationErr("unknown role", FieldError{Field: "role", Message: "unknown role"})
	}
	u, err := s.target(ctx, actor, id, "you cannot change your own role")
	if err != nil {
		return nil, err
	}
	u.Role = r
	return s.save(ctx, u)
}

// SetActive enables or disables another user's account. Disabled users fail
// login and session checks immediately.
func (s *UserService) SetActive(ctx context.Context, actor *model.User, id string, active bool) (*model.User, error) {
	u, err := s.target(ctx, actor, id, "you cannot deactivate your own account")
	if err != nil {
		return nil, err
	}
	u.IsActive = active
	return s.save(ctx, u)
}

func (s *UserService) target(ctx context.Context, actor *model.User, id, selfMsg string) (*model.User, error) {
	uid, err := ParseID("id", id)
	if err != nil {
		return nil, err
	}
	if uid == actor.ID {
		return nil, validationErr(selfMsg)
	}
	u, err := s.users.GetByID(ctx, uid)
	if err != nil {
		return nil, storeErr("load user", "user", err)
	}
	return u, nil
}

func (s *UserService) save(ctx context.Context, u *model.User) (*model.User, error) {
	u.Touch(s.now())
	if err := s.users.Update(ctx, u); err != nil {
		return nil, storeErr("update user", "user", err)
	}
	return u, nil
}
