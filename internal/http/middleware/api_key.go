package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"
)

const HeaderAPIKey = "X-API-Key"

// AdminKeyMiddleware guards operator endpoints with a shared key sent in
// X-API-Key or as a bearer token. An empty key leaves the routes open.
func AdminKeyMiddleware(key string) echo.MiddlewareFunc {
	key = strings.TrimSpace(key)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if key == "" {
				return next(c)
			}
			got := strings.TrimSpace(c.Request().Header.Get(HeaderAPIKey))
			if got == "" {
				got = strings.TrimSpace(strings.TrimPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer "))
			}
			if got == "" {
				return c.JSON(http.StatusUnauthorized, map[string]any{"success": false, "error": "missing api key"})
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				return c.JSON(http.StatusUnauthorized, map[string]any{"success": false, "error": "invalid api key"})
			}
			return next(c)
		}
	}
}
