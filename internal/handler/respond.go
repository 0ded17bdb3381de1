// Package handler adapts HTTP requests to the service layer.
package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/reqtrack/reqtrack/internal/middleware"
	"github.com/reqtrack/reqtrack/internal/model"
	"github.com/reqtrack/reqtrack/internal/service"
)

var kindStatus = map[service.Kind]int{
	service.KindValidation: http.StatusBadRequest,
	service.KindAuth:       http.StatusUnauthorized,
	service.KindForbidden:  http.StatusForbidden,
	service.KindNotFound:   http.StatusNotFound,
	service.KindConflict:   http.StatusConflict,
	service.KindInternal:   http.StatusInternalServerError,
}

type errorBody struct {
	Error   string               `json:"error"`
	Details []service.FieldError `json:"details,omitempty"`
}

type listBody[T any] struct {
	Success    bool               `json:"success"`
	Data       []T                `json:"data"`
	Pagination service.Pagination `json:"pagination"`
}

// respondError writes err in the {error, details} shape. Internal failures
// are logged and answered without detail.
func respondError(c echo.Context, log zerolog.Logger, err error) error {
	var se *service.Error
	if !errors.As(err, &se) {
		se = &service.Error{Kind: service.KindInternal, Message: "internal server error", Err: err}
	}
	status := kindStatus[se.Kind]
	if status == http.StatusInternalServerError {
		log.Error().Err(se.Err).
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
			Msg("request failed")
		return c.JSON(status, errorBody{Error: "internal server error"})
	}
	return c.JSON(status, errorBody{Error: se.Message, Details: se.Fields})
}

func respondList[T any](c echo.Context, rows []T, p service.Pagination) error {
	if rows == nil {
		rows = []T{}
	}
	return c.JSON(http.StatusOK, listBody[T]{Success: true, Data: rows, Pagination: p})
}

func badBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
}

// HTTPErrorHandler keeps framework errors (unknown route, body too large,
// bind failures) in the same {error} shape as handler errors.
func HTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var he *echo.HTTPError
		if !errors.As(err, &he) {
			_ = respondError(c, log, err)
			return
		}
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && m != "" {
			msg = m
		}
		if he.Code >= http.StatusInternalServerError {
			log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("unhandled error")
			msg = "internal server error"
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(he.Code)
			return
		}
		_ = c.JSON(he.Code, errorBody{Error: strings.ToLower(msg)})
	}
}

// user returns the authenticated caller. Routes using it sit behind JWTAuth.
func user(c echo.Context) *model.User { return middleware.CurrentUser(c) }
