package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/projexia/projexia/internal/core/domain"
	"github.com/projexia/projexia/internal/core/ports"
)

// ProjectAccess rejects callers that are not members of the project named by
// the param path segment, or whose role is outside allowed. An empty allowed
// list accepts any member. Must run after Auth.
//
// The resolved role is stored in the request context, so the service layer
// re-checks the same project without loading members again.
func ProjectAccess(membership ports.Membership, param string, allowed ...domain.MemberRole) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller, ok := CallerFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
			}
			ctx, err := membership.Grant(c.Request().Context(), caller, c.Param(param), allowed...)
			if err != nil {
				return err
			}
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
