package middleware // middleware provides request processing shared by the API routes

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/reqtrack/reqtrack/internal/model"
	"github.com/reqtrack/reqtrack/internal/service"
)

const userKey = "user"

// SessionVerifier resolves a bearer token to the current user.
type SessionVerifier interface {
	VerifySession(ctx context.Context, raw string) (*model.User, error)
}

// JWTAuth validates the Bearer session token and stores the freshly loaded
// user in the context, where handlers read it with CurrentUser. A missing,
// malformed or expired token, or a user that no longer exists or has been
// disabled, is answered with 401.
func JWTAuth(v SessionVerifier, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			u, err := v.VerifySession(c.Request().Context(), strings.TrimSpace(raw))
			if err != nil {
				var se *service.Error
				if errors.As(err, &se) && se.Kind == service.KindAuth {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": se.Message})
				}
				log.Error().Err(err).Str("path", c.Path()).Msg("session verification failed")
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
			}
			c.Set(userKey, u)
			return next(c)
		}
	}
}

// CurrentUser returns the user stored by JWTAuth, or nil on public routes.
func CurrentUser(c echo.Context) *model.User {
	u, _ := c.Get(userKey).(*model.User)
	return u
}
