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

// Assets is the part of service.AssetService the routes use.
type Assets interface {
	List(ctx context.Context, actor *model.User, q service.AssetQuery) ([]service.AssetView, service.Pagination, error)
	Get(ctx context.Context, actor *model.User, id string) (service.AssetView, error)
	Upload(ctx context.Context, actor *model.User, in service.AssetInput, file *storage.Upload) (service.AssetView, error)
	Update(ctx context.Context, actor *model.User, id string, patch service.AssetPatch, file *storage.Upload) (service.AssetView, error)
	Delete(ctx context.Context, actor *model.User, id string) (*model.Asset, error)
}

type AssetHandler struct {
	svc Assets
	log zerolog.Logger
}

func NewAssetHandler(svc Assets, log zerolog.Logger) *AssetHandler {
	return &AssetHandler{svc: svc, log: log}
}

func (h *AssetHandler) List(c echo.Context) error {
	var q service.AssetQuery
	if err := c.Bind(&q); err != nil {
		return badBody(c)
	}
	rows, p, err := h.svc.List(c.Request().Context(), user(c), q)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return respondList(c, rows, p)
}

func (h *AssetHandler) Get(c echo.Context) error {
	a, err := h.svc.Get(c.Request().Context(), user(c), c.Param("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": a})
}

// Upload creates an asset from a multipart form with a "file" part.
func (h *AssetHandler) Upload(c echo.Context) error {
	v, err := formValues(c)
	if err != nil {
		return badBody(c)
	}
	file, err := formFile(c, "file")
	if err != nil {
		return badBody(c)
	}
	in := service.AssetInput{
		Name:        formString(v, "name"),
		Description: formString(v, "description"),
		Project:     formString(v, "project"),
		Requirement: formString(v, "requirement"),
		Tags:        formList(v, "tags", "tags[]"),
	}
	a, err := h.svc.Upload(c.Request().Context(), user(c), in, file)
	if err != nil {
		return respondError(c, h.log, err)
	}
	middleware.SetAuditTarget(c, a.ID)
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": a})
}

// Update edits metadata; a "file" part installs a new version.
func (h *AssetHandler) Update(c echo.Context) error {
	v, err := formValues(c)
	if err != nil {
		return badBody(c)
	}
	file, err := formFile(c, "file")
	if err != nil {
		return badBody(c)
	}
	patch := service.AssetPatch{
		Name:        formStringPtr(v, "name"),
		Description: formStringPtr(v, "description"),
		Tags:        formListPtr(v, "tags"),
	}
	a, err := h.svc.Update(c.Request().Context(), user(c), c.Param("id"), patch, file)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": a})
}

func (h *AssetHandler) Delete(c echo.Context) error {
	if _, err := h.svc.Delete(c.Request().Context(), user(c), c.Param("id")); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "asset deleted"})
}
