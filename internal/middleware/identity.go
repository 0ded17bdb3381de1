package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// userID returns the authenticated user's id in hex, or "guest" on public
// routes. Cache and rate-limit keys use it to separate accounts.
func userID(c echo.Context) string {
	if u := CurrentUser(c); u != nil {
		return u.ID.Hex()
	}
	return "guest"
}

// secretParams are route params whose values must not reach logs.
var secretParams = []string{"token"}

// RedactedPath returns uri with the values of secret route params masked.
// Reset tokens travel in the path and stay valid after a failed attempt.
func RedactedPath(c echo.Context, uri string) string {
	for _, name := range secretParams {
		if v := c.Param(name); v != "" {
			uri = strings.ReplaceAll(uri, v, "[redacted]")
		}
	}
	return uri
}
