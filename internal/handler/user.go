package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/reqtrack/reqtrack/internal/model"
	"github.com/reqtrack/reqtrack/internal/service"
)

type Users interface {
	List(ctx context.Context, q service.UserQuery) ([]model.User, service.Pagination, error)
	SetRole(ctx context.Context, actor *model.User, id, role string) (*model.User, error)
	SetActive(ctx context.Context, actor *model.User, id string, active bool) (*model.User, error)
}

// UserHandler serves account administration for staff.
type UserHandler struct {
	svc Users
	log zerolog.Logger
}

func NewUserHandler(svc Users, log zerolog.Logger) *UserHandler {
	return &UserHandler{svc: svc, log: log}
}

func (h *UserHandler) List(c echo.Context) error {
	var q service.UserQuery
	if err := c.Bind(&q); err != nil {
		return badBody(c)
	}
	rows, p, err := h.svc.List(c.Request().Context(), q)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return respondList(c, rows, p)
}

func (h *UserHandler) SetRole(c echo.Context) error {
	var in struct {
		Role string `json:"role"`
	}
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	u, err := h.svc.SetRole(c.Request().Context(), user(c), c.Param("id"), in.Role)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": u})
}

func (h *UserHandler) SetStatus(c echo.Context) error {
	var in struct {
		IsActive *bool `json:"isActive"`
	}
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	if in.IsActive == nil {
		return c.JSON(http.StatusBadRequest, errorBody{
			Error:   "isActive is required",
			Details: []service.FieldError{{Field: "isActive", Message: "required"}},
		})
	}
	u, err := h.svc.SetActive(c.Request().Context(), user(c), c.Param("id"), *in.IsActive)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": u})
}
