package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/reqtrack/reqtrack/internal/config"
	"github.com/reqtrack/reqtrack/internal/handler"
	"github.com/reqtrack/reqtrack/internal/middleware"
	"github.com/reqtrack/reqtrack/internal/service"
)

// Handlers bundles the HTTP handlers mounted under /api.
type Handlers struct {
	Auth          *handler.AuthHandler
	Projects      *handler.ProjectHandler
	Requirements  *handler.RequirementHandler
	Assets        *handler.AssetHandler
	Search        *handler.SearchHandler
	Dashboard     *handler.DashboardHandler
	Notifications *handler.NotificationHandler
	Users         *handler.UserHandler
	Export        *handler.ExportHandler
	Health        echo.HandlerFunc
}

// Deps are the cross-cutting collaborators applied as middleware.
type Deps struct {
	Sessions  middleware.SessionVerifier
	Audit     middleware.Recorder
	Redis     *redis.Client // nil disables rate limiting and caching
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	UploadDir string
	UploadURL string
	Log       zerolog.Logger
}

// Register mounts every route. Only /api/auth/{register,login,
// forgot-password,reset-password} and the health check are public.
func Register(e *echo.Echo, h Handlers, d Deps) {
	e.GET("/healthz", h.Health)
	e.Static(d.UploadURL, d.UploadDir)

	api := e.Group("/api")
	api.GET("/healthz", h.Health)

	authn := middleware.JWTAuth(d.Sessions, d.Log)
	audit := middleware.NewAuditor(d.Audit)

	registerAuth(api, h.Auth, authn, audit, middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log))

	g := api.Group("", authn)
	registerProjects(g, h.Projects, audit)
	registerRequirements(g, h.Requirements, audit)
	registerAssets(g, h.Assets, audit)

	g.GET("/search", h.Search.Search)
	g.GET("/search/suggestions", h.Search.Suggestions)

	g.GET("/dashboard/stats", h.Dashboard.Stats, middleware.NewRedisCache(d.Cache, d.Redis, d.Log))
	g.GET("/activity", h.Dashboard.Activity)

	g.GET("/notifications", h.Notifications.List)
	g.PUT("/notifications/read-all", h.Notifications.MarkAllRead)
	g.PUT("/notifications/:id/read", h.Notifications.MarkRead)
	g.DELETE("/notifications/:id", h.Notifications.Delete)

	users := g.Group("/users")
	users.GET("", h.Users.List, middleware.RequireRole(service.StaffRoles...))
	users.PUT("/:id/role", h.Users.SetRole, middleware.RequireRole(service.AdminOnly...),
		audit.WithAudit(actionUpdate, describe(targetUser, "changed user role")))
	users.PUT("/:id/status", h.Users.SetStatus, middleware.RequireRole(service.AdminOnly...),
		audit.WithAudit(actionUpdate, describe(targetUser, "changed user status")))

	registerExport(g, h.Export, audit)
}
