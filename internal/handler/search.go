package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/reqtrack/reqtrack/internal/model"
	"github.com/reqtrack/reqtrack/internal/service"
)

type Searcher interface {
	Search(ctx context.Context, actor *model.User, q service.SearchQuery) (service.SearchResult, error)
	Suggestions(ctx context.Context, actor *model.User, prefix string) ([]service.Suggestion, error)
}

type SearchHandler struct {
	svc Searcher
	log zerolog.Logger
}

func NewSearchHandler(svc Searcher, log zerolog.Logger) *SearchHandler {
	return &SearchHandler{svc: svc, log: log}
}

func (h *SearchHandler) Search(c echo.Context) error {
	var q service.SearchQuery
	if err := c.Bind(&q); err != nil {
		return badBody(c)
	}
	res, err := h.svc.Search(c.Request().Context(), user(c), q)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": res})
}

func (h *SearchHandler) Suggestions(c echo.Context) error {
	out, err := h.svc.Suggestions(c.Request().Context(), user(c), c.QueryParam("q"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	if out == nil {
		out = []service.Suggestion{}
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": out})
}
