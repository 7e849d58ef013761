package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// RequestTimeout sets a context deadline on each request. The deadline
// reaches the model provider and the database through the request context,
// so an expired request stops its upstream work. The handler still runs on
// the request goroutine and writes its own response; only when it returns a
// deadline error without having answered does the client get
// 504 {"error": "..."}.
//
// Skipped requests (nil skipper means none) run without a deadline.
func RequestTimeout(timeout time.Duration, skipper echomw.Skipper) echo.MiddlewareFunc {
	if timeout <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return echomw.ContextTimeoutWithConfig(echomw.ContextTimeoutConfig{
		Skipper:      skipper,
		Timeout:      timeout,
		ErrorHandler: timeoutErrorHandler,
	})
}

func timeoutErrorHandler(err error, c echo.Context) error {
	if !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if c.Response().Committed {
		return nil
	}
	return c.JSON(http.StatusGatewayTimeout, map[string]string{
		"error": "Request processing exceeded the allowed time limit",
	})
}
