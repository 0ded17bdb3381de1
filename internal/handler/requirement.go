package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/reqtrack/reqtrack/internal/middleware"
	"github.com/reqtrack/reqtrack/internal/model"
	"github.com/reqtrack/reqtrack/internal/service"
	"github.com/reqtrack/reqtrack/internal/storage"
)

// Requirements is the part of service.RequirementService the routes use.
type Requirements interface {
	List(ctx context.Context, actor *model.User, q service.RequirementQuery) ([]service.RequirementView, service.Pagination, error)
	Get(ctx context.Context, actor *model.User, id string) (service.RequirementView, error)
	Create(ctx context.Context, actor *model.User, in service.RequirementInput) (service.RequirementView, error)
	ClientSubmit(ctx context.Context, actor *model.User, in service.RequirementInput, files []storage.Upload) (service.Submission, error)
	Update(ctx context.Context, actor *model.User, id string, patch service.RequirementPatch) (service.RequirementView, error)
	AddComment(ctx context.Context, actor *model.User, id, text string) (service.CommentView, error)
	Delete(ctx context.Context, actor *model.User, id string) (*model.Requirement, error)
}

type RequirementHandler struct {
	svc Requirements
	log zerolog.Logger
}

func NewRequirementHandler(svc Requirements, log zerolog.Logger) *RequirementHandler {
	return &RequirementHandler{svc: svc, log: log}
}

func (h *RequirementHandler) List(c echo.Context) error {
	var q service.RequirementQuery
	if err := c.Bind(&q); err != nil {
		return badBody(c)
	}
	rows, p, err := h.svc.List(c.Request().Context(), user(c), q)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return respondList(c, rows, p)
}

func (h *RequirementHandler) Get(c echo.Context) error {
	r, err := h.svc.Get(c.Request().Context(), user(c), c.Param("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": r})
}

func (h *RequirementHandler) Create(c echo.Context) error {
	var in service.RequirementInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	r, err := h.svc.Create(c.Request().Context(), user(c), in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	middleware.SetAuditTarget(c, r.ID)
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": r})
}

// ClientSubmit handles the multipart client submission: requirement fields
// plus up to five documents under "files" or "documents".
func (h *RequirementHandler) ClientSubmit(c echo.Context) error {
	v, err := formValues(c)
	if err != nil {
		return badBody(c)
	}
	due, err := formDate(v, "dueDate")
	if err != nil {
		return respondError(c, h.log, err)
	}
	in := service.RequirementInput{
		Title:              formString(v, "title"),
		Description:        formString(v, "description"),
		Project:            formString(v, "project"),
		Category:           formString(v, "category"),
		Priority:           formString(v, "priority"),
		AcceptanceCriteria: formItems(v, "acceptanceCriteria", "acceptanceCriteria[]"),
		Tags:               formList(v, "tags", "tags[]"),
		DueDate:            due,
	}
	files, err := formFiles(c, "files", "documents")
	if err != nil {
		return badBody(c)
	}
	sub, err := h.svc.ClientSubmit(c.Request().Context(), user(c), in, files)
	if err != nil {
		return respondError(c, h.log, err)
	}
	middleware.SetAuditTarget(c, sub.Requirement.ID)
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": sub})
}

func (h *RequirementHandler) Update(c echo.Context) error {
	var patch service.RequirementPatch
	if err := c.Bind(&patch); err != nil {
		return badBody(c)
	}
	r, err := h.svc.Update(c.Request().Context(), user(c), c.Param("id"), patch)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": r})
}

func (h *RequirementHandler) AddComment(c echo.Context) error {
	var in struct {
		Text string `json:"text"`
	}
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	cm, err := h.svc.AddComment(c.Request().Context(), user(c), c.Param("id"), in.Text)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": cm})
}

func (h *RequirementHandler) Delete(c echo.Context) error {
	if _, err := h.svc.Delete(c.Request().Context(), user(c), c.Param("id")); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "requirement deleted"})
}
