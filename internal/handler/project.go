package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/reqtrack/reqtrack/internal/middleware"
	"github.com/reqtrack/reqtrack/internal/model"
	"github.com/reqtrack/reqtrack/internal/service"
)

// Projects is the part of service.ProjectService the routes use.
type Projects interface {
	List(ctx context.Context, actor *model.User, q service.ProjectQuery) ([]service.ProjectView, service.Pagination, error)
	Get(ctx context.Context, actor *model.User, id string) (service.ProjectDetail, error)
	Create(ctx context.Context, actor *model.User, in service.ProjectInput) (service.ProjectView, error)
	Update(ctx context.Context, actor *model.User, id string, patch service.ProjectPatch) (service.ProjectView, error)
	Delete(ctx context.Context, actor *model.User, id string) (*model.Project, error)
}

type ProjectHandler struct {
	svc Projects
	log zerolog.Logger
}

func NewProjectHandler(svc Projects, log zerolog.Logger) *ProjectHandler {
	return &ProjectHandler{svc: svc, log: log}
}

func (h *ProjectHandler) List(c echo.Context) error {
	var q service.ProjectQuery
	if err := c.Bind(&q); err != nil {
		return badBody(c)
	}
	rows, p, err := h.svc.List(c.Request().Context(), user(c), q)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return respondList(c, rows, p)
}

func (h *ProjectHandler) Get(c echo.Context) error {
	p, err := h.svc.Get(c.Request().Context(), user(c), c.Param("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": p})
}

func (h *ProjectHandler) Create(c echo.Context) error {
	var in service.ProjectInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	p, err := h.svc.Create(c.Request().Context(), user(c), in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	middleware.SetAuditTarget(c, p.ID)
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": p})
}

func (h *ProjectHandler) Update(c echo.Context) error {
	var patch service.ProjectPatch
	if err := c.Bind(&patch); err != nil {
		return badBody(c)
	}
	p, err := h.svc.Update(c.Request().Context(), user(c), c.Param("id"), patch)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": p})
}

func (h *ProjectHandler) Delete(c echo.Context) error {
	if _, err := h.svc.Delete(c.Request().Context(), user(c), c.Param("id")); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "project deleted"})
}
