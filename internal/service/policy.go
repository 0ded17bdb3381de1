package service

import "github.com/reqtrack/reqtrack/internal/model"

// Authorize reports whether u holds one of allowed. An empty allow-list
// admits any authenticated user; a nil user is never authorized.
func Authorize(u *model.User, allowed ...model.Role) bool {
	if u == nil {
		return false
	}
	if len(allowed) == 0 {
		return true
	}
	for _, r := range allowed {
		if u.Role == r {
			return true
		}
	}
	return false
}

// Route policies shared by the router and services.
var (
	StaffRoles = []model.Role{model.RoleAdmin, model.RoleManager}
	AdminOnly  = []model.Role{model.RoleAdmin}
)
