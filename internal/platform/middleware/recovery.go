package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Recovery turns a handler panic into a 500 and logs the stack. An
// http.ErrAbortHandler panic is re-raised so net/http can drop the connection.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = recovered(logger, c, r)
				}
			}()
			return next(c)
		}
	}
}

func recovered(logger zerolog.Logger, c echo.Context, r interface{}) error {
	if r == http.ErrAbortHandler {
		panic(r)
	}
	rid, _ := c.Get("request_id").(string)
	logger.Error().
		Str("request_id", rid).
		Str("route", c.Path()).
		Interface("panic", r).
		Bytes("stack", debug.Stack()).
		Msg("handler panicked")
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
