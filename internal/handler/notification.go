package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/reqtrack/reqtrack/internal/model"
	"github.com/reqtrack/reqtrack/internal/service"
)

type Notifications interface {
	List(ctx context.Context, actor *model.User, q service.NotificationQuery) ([]model.Notification, service.Pagination, int64, error)
	MarkRead(ctx context.Context, actor *model.User, id string) error
	MarkAllRead(ctx context.Context, actor *model.User) (int64, error)
	Delete(ctx context.Context, actor *model.User, id string) error
}

type NotificationHandler struct {
	svc Notifications
	log zerolog.Logger
}

func NewNotificationHandler(svc Notifications, log zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, log: log}
}

// List answers the usual list shape plus the unread count.
func (h *NotificationHandler) List(c echo.Context) error {
	var q service.NotificationQuery
	if err := c.Bind(&q); err != nil {
		return badBody(c)
	}
	rows, p, unread, err := h.svc.List(c.Request().Context(), user(c), q)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if rows == nil {
		rows = []model.Notification{}
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": rows, "pagination": p, "unreadCount": unread})
}

func (h *NotificationHandler) MarkRead(c echo.Context) error {
	if err := h.svc.MarkRead(c.Request().Context(), user(c), c.Param("id")); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	n, err := h.svc.MarkAllRead(c.Request().Context(), user(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "updated": n})
}

func (h *NotificationHandler) Delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), user(c), c.Param("id")); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "notification deleted"})
}
