package router

import (
	"github.com/labstack/echo/v4"

	"github.com/reqtrack/reqtrack/internal/handler"
	"github.com/reqtrack/reqtrack/internal/middleware"
	"github.com/reqtrack/reqtrack/internal/model"
	"github.com/reqtrack/reqtrack/internal/service"
)

const (
	actionCreate = model.ActionCreate
	actionUpdate = model.ActionUpdate
	actionDelete = model.ActionDelete

	targetProject     = model.TargetProject
	targetRequirement = model.TargetRequirement
	targetAsset       = model.TargetAsset
	targetUser        = model.TargetUser
)

// describe targets the document named by the :id path parameter; create
// routes fill the id in with middleware.SetAuditTarget instead.
func describe(t model.TargetType, text string) middleware.Describer {
	return func(c echo.Context) middleware.AuditTarget {
		at := middleware.AuditTarget{Description: text, Type: t}
		if id, err := service.ParseID("id", c.Param("id")); err == nil {
			at.ID = &id
		}
		return at
	}
}

func registerAuth(api *echo.Group, a *handler.AuthHandler, authn echo.MiddlewareFunc, audit *middleware.Auditor, limit echo.MiddlewareFunc) {
	g := api.Group("/auth")
	g.POST("/register", a.Register, limit, audit.WithAudit(model.ActionRegister, describe(targetUser, "registered an account")))
	g.POST("/login", a.Login, limit, audit.WithAudit(model.ActionLogin, describe(targetUser, "logged in")))
	g.POST("/forgot-password", a.ForgotPassword, limit, audit.WithAudit(model.ActionPasswordReset, describe(targetUser, "requested a password reset")))
	g.POST("/reset-password/:token", a.ResetPassword, limit, audit.WithAudit(model.ActionPasswordReset, describe(targetUser, "reset password")))

	g.GET("/me", a.Me, authn)
	g.PUT("/profile", a.UpdateProfile, authn, audit.WithAudit(actionUpdate, describe(targetUser, "updated profile")))
	g.PUT("/change-password", a.ChangePassword, authn, audit.WithAudit(model.ActionPasswordChange, describe(targetUser, "changed password")))
}

func registerProjects(g *echo.Group, h *handler.ProjectHandler, audit *middleware.Auditor) {
	staff := middleware.RequireRole(service.StaffRoles...)
	p := g.Group("/projects")
	p.GET("", h.List)
	p.GET("/:id", h.Get)
	p.POST("", h.Create, staff, audit.WithAudit(actionCreate, describe(targetProject, "created project")))
	p.PUT("/:id", h.Update, staff, audit.WithAudit(actionUpdate, describe(targetProject, "updated project")))
	p.DELETE("/:id", h.Delete, middleware.RequireRole(service.AdminOnly...),
		audit.WithAudit(actionDelete, describe(targetProject, "deleted project")))
}

func registerRequirements(g *echo.Group, h *handler.RequirementHandler, audit *middleware.Auditor) {
	r := g.Group("/requirements")
	r.GET("", h.List)
	r.GET("/:id", h.Get)
	r.POST("", h.Create, audit.WithAudit(actionCreate, describe(targetRequirement, "created requirement")))
	r.PUT("/:id", h.Update, audit.WithAudit(actionUpdate, describe(targetRequirement, "updated requirement")))
	r.DELETE("/:id", h.Delete, middleware.RequireRole(service.StaffRoles...),
		audit.WithAudit(actionDelete, describe(targetRequirement, "deleted requirement")))
	r.POST("/:id/comments", h.AddComment, audit.WithAudit(model.ActionComment, describe(targetRequirement, "commented on requirement")))

	g.POST("/client/requirements", h.ClientSubmit, middleware.RequireRole(model.RoleClient),
		audit.WithAudit(actionCreate, describe(targetRequirement, "submitted requirement")))
}

func registerAssets(g *echo.Group, h *handler.AssetHandler, audit *middleware.Auditor) {
	a := g.Group("/assets")
	a.GET("", h.List)
	a.GET("/:id", h.Get)
	a.POST("", h.Upload, audit.WithAudit(model.ActionUpload, describe(targetAsset, "uploaded asset")))
	a.PUT("/:id", h.Update, audit.WithAudit(actionUpdate, describe(targetAsset, "updated asset")))
	a.DELETE("/:id", h.Delete, audit.WithAudit(actionDelete, describe(targetAsset, "deleted asset")))
}

func registerExport(g *echo.Group, h *handler.ExportHandler, audit *middleware.Auditor) {
	x := g.Group("/export")
	x.GET("/project/:id", h.ProjectPDF, audit.WithAudit(model.ActionExport, describe(targetProject, "exported project report")))
	x.GET("/project/:id/csv", h.ProjectCSV, audit.WithAudit(model.ActionExport, describe(targetProject, "exported project requirements")))
	x.GET("/requirements", h.RequirementsPDF, audit.WithAudit(model.ActionExport, describe(targetRequirement, "exported requirements")))
	x.GET("/requirement/:id", h.RequirementPDF, audit.WithAudit(model.ActionExport, describe(targetRequirement, "exported requirement")))
}
