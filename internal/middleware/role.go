package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tooling-tracker/internal/model"
)

// RequireRole lets the request through when the caller's role is one of
// roles.  root passes every check.  JWTAuth must run first.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles)+1)
	for _, r := range roles {
		allowed[r] = true
	}
	allowed[model.RoleRoot] = true
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !allowed[Role(c)] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

// HasRole reports whether the caller holds one of roles, root included.
func HasRole(c echo.Context, roles ...string) bool {
	r := Role(c)
	if r == model.RoleRoot {
		return true
	}
	for _, want := range roles {
		if r == want {
			return true
		}
	}
	return false
}
