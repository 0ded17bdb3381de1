package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/reqtrack/reqtrack/internal/export"
	"github.com/reqtrack/reqtrack/internal/middleware"
	"github.com/reqtrack/reqtrack/internal/model"
	"github.com/reqtrack/reqtrack/internal/service"
)

// ExportSource loads what the reports render. Everything it returns is
// already scoped to the actor.
type ExportSource interface {
	Project(ctx context.Context, actor *model.User, id string) (service.ProjectDetail, error)
	Requirement(ctx context.Context, actor *model.User, id string) (service.RequirementView, error)
	Requirements(ctx context.Context, actor *model.User, q service.RequirementQuery) ([]service.RequirementView, error)
}

type serviceExportSource struct {
	projects     *service.ProjectService
	requirements *service.RequirementService
}

// NewExportSource reads reports through the project and requirement services.
func NewExportSource(p *service.ProjectService, r *service.RequirementService) ExportSource {
	return serviceExportSource{projects: p, requirements: r}
}

func (s serviceExportSource) Project(ctx context.Context, actor *model.User, id string) (service.ProjectDetail, error) {
	return s.projects.Get(ctx, actor, id)
}

func (s serviceExportSource) Requirement(ctx context.Context, actor *model.User, id string) (service.RequirementView, error) {
	return s.requirements.Get(ctx, actor, id)
}

func (s serviceExportSource) Requirements(ctx context.Context, actor *model.User, q service.RequirementQuery) ([]service.RequirementView, error) {
	return s.requirements.ListAll(ctx, actor, q)
}

type ExportHandler struct {
	src     ExportSource
	appName string
	log     zerolog.Logger
	now     func() time.Time
}

func NewExportHandler(src ExportSource, appName string, log zerolog.Logger) *ExportHandler {
	return &ExportHandler{src: src, appName: appName, log: log, now: time.Now}
}

func (h *ExportHandler) meta(c echo.Context) export.Meta {
	return export.Meta{AppName: h.appName, GeneratedAt: h.now().UTC(), GeneratedBy: user(c).Name}
}

// ProjectPDF renders the project report.
func (h *ExportHandler) ProjectPDF(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := h.src.Project(ctx, user(c), c.Param("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	reqs, err := h.src.Requirements(ctx, user(c), service.RequirementQuery{Project: p.ID.Hex()})
	if err != nil {
		return respondError(c, h.log, err)
	}
	var buf bytes.Buffer
	if err := export.ProjectReport(&buf, p, reqs, h.meta(c)); err != nil {
		return respondError(c, h.log, err)
	}
	middleware.SetAuditTarget(c, p.ID)
	return h.attach(c, "application/pdf", export.Filename("project", p.Name, "pdf"), buf.Bytes())
}

func (h *ExportHandler) ProjectCSV(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := h.src.Project(ctx, user(c), c.Param("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	reqs, err := h.src.Requirements(ctx, user(c), service.RequirementQuery{Project: p.ID.Hex()})
	if err != nil {
		return respondError(c, h.log, err)
	}
	var buf bytes.Buffer
	if err := export.ProjectCSV(&buf, reqs); err != nil {
		return respondError(c, h.log, err)
	}
	middleware.SetAuditTarget(c, p.ID)
	return h.attach(c, "text/csv; charset=utf-8", export.Filename("project", p.Name, "csv"), buf.Bytes())
}

// RequirementsPDF renders the requirements matching the list filters.
func (h *ExportHandler) RequirementsPDF(c echo.Context) error {
	var q service.RequirementQuery
	if err := c.Bind(&q); err != nil {
		return badBody(c)
	}
	reqs, err := h.src.Requirements(c.Request().Context(), user(c), q)
	if err != nil {
		return respondError(c, h.log, err)
	}
	filters := map[string]string{"status": q.Status, "category": q.Category, "priority": q.Priority, "search": q.Search}
	if q.Project != "" && len(reqs) > 0 && reqs[0].Project != nil {
		filters["project"] = reqs[0].Project.Name
	}
	var buf bytes.Buffer
	if err := export.RequirementsList(&buf, reqs, filters, h.meta(c)); err != nil {
		return respondError(c, h.log, err)
	}
	name := fmt.Sprintf("requirements-%s.pdf", h.now().UTC().Format("20060102"))
	return h.attach(c, "application/pdf", name, buf.Bytes())
}

func (h *ExportHandler) RequirementPDF(c echo.Context) error {
	r, err := h.src.Requirement(c.Request().Context(), user(c), c.Param("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	var buf bytes.Buffer
	if err := export.RequirementDetail(&buf, r, h.meta(c)); err != nil {
		return respondError(c, h.log, err)
	}
	middleware.SetAuditTarget(c, r.ID)
	return h.attach(c, "application/pdf", export.Filename("requirement", r.Title, "pdf"), buf.Bytes())
}

func (h *ExportHandler) attach(c echo.Context, contentType, filename string, body []byte) error {
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, contentType, body)
}
