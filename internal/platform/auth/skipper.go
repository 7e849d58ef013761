package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication.
var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
	"/version":   true,
}

// AuthSkipper skips authentication for health endpoints and CORS preflight
// requests, which browsers send without credentials.
func AuthSkipper(c echo.Context) bool {
	if c.Request().Method == http.MethodOptions {
		return true
	}
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether path is served without authentication.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
