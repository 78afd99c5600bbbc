package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// levelMiddleware gates a route on a minimum staff access level.
func levelMiddleware(minLevel int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.AccessLevel >= minLevel {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
