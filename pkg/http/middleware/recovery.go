package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"

	applogger "StratEngine/pkg/logger"
)

// Recover turns a handler panic into a logged 500 handled by echo's error handler.
func Recover(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				l.Error("http panic",
					applogger.String("method", c.Request().Method),
					applogger.String("route", c.Path()),
					applogger.Any("panic", r),
					applogger.String("stack", string(debug.Stack())))
				err = echo.NewHTTPError(http.StatusInternalServerError, "internal error")
			}()
			return next(c)
		}
	}
}
