package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v5"
)

// Recover converts handler panics into a generic 500 instead of tearing
// down the connection. The stack goes to the log, not to the client.
func Recover() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("panic recovered",
						"panic", fmt.Sprintf("%v", r),
						"path", c.Request().URL.Path,
						"stack", string(debug.Stack()),
					)
					err = c.JSON(http.StatusInternalServerError, map[string]any{
						"status":  "error",
						"message": "Internal server error",
					})
				}
			}()
			return next(c)
		}
	}
}
