package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/reqtrack/reqtrack/internal/model"
	"github.com/reqtrack/reqtrack/internal/service"
)

type Dashboard interface {
	Stats(ctx context.Context, actor *model.User) (service.DashboardStats, error)
}

type ActivityLister interface {
	List(ctx context.Context, actor *model.User, q service.ActivityQuery) ([]service.ActivityView, service.Pagination, error)
}

// DashboardHandler serves the dashboard summary and the activity feed.
type DashboardHandler struct {
	stats    Dashboard
	activity ActivityLister
	log      zerolog.Logger
}

func NewDashboardHandler(stats Dashboard, activity ActivityLister, log zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{stats: stats, activity: activity, log: log}
}

func (h *DashboardHandler) Stats(c echo.Context) error {
	st, err := h.stats.Stats(c.Request().Context(), user(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": st})
}

func (h *DashboardHandler) Activity(c echo.Context) error {
	var q service.ActivityQuery
	if err := c.Bind(&q); err != nil {
		return badBody(c)
	}
	rows, p, err := h.activity.List(c.Request().Context(), user(c), q)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return respondList(c, rows, p)
}
