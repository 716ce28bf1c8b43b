// Package router registers the HTTP routes of the tooling API.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tooling-tracker/internal/handler"
	"github.com/iliyamo/tooling-tracker/internal/middleware"
	"github.com/iliyamo/tooling-tracker/internal/model"
)

// RegisterRoutes registers the routes that need no authentication.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers sign-in under /v1/auth and the session endpoints
// that need a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout, middleware.JWTAuth(jwtSecret))

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// ToolingMiddleware holds the optional Redis-backed middleware.  Nil
// entries are skipped.
type ToolingMiddleware struct {
	Cache      echo.MiddlewareFunc // read endpoints
	Invalidate echo.MiddlewareFunc // every write endpoint
	RateLimit  echo.MiddlewareFunc // every write endpoint
}

// RegisterTooling registers the logbook, report and export endpoints.
// Every route needs a signed-in user; tool creation and exports need
// admin, and SCRAP is checked for root inside the handler.
func RegisterTooling(e *echo.Echo, h *handler.ToolingHandler, jwtSecret string, mw ToolingMiddleware) {
	g := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)
	read := compact(mw.Cache)
	write := compact(mw.RateLimit, mw.Invalidate)
	admin := middleware.RequireRole(model.RoleAdmin)

	g.GET("/tooling/vocabulary", h.Vocabulary)

	g.GET("/tools", h.ListTools, read...)
	g.POST("/tools", h.CreateTool, append([]echo.MiddlewareFunc{admin}, write...)...)
	g.GET("/tools/by-code/:code", h.GetByCode, read...)
	g.GET("/tools/:id", h.GetTool, read...)
	g.GET("/tools/:id/events", h.ListEvents, read...)

	g.POST("/tools/:id/install", h.Install, write...)
	g.POST("/tools/:id/remove", h.Remove, write...)
	g.POST("/tools/:id/regrind", h.Regrind, write...)
	g.POST("/tools/:id/actions", h.RecordAction, write...)
	g.POST("/tools/:id/events", h.RecordEvent, write...)
	g.POST("/tools/:id/service", h.Service, write...)

	g.GET("/reports/installed", h.InstalledReport, read...)
	g.GET("/reports/service", h.ServiceReport, read...)

	g.GET("/exports/tools.csv", h.ExportTools, admin)
	g.GET("/exports/tools/:id/history.csv", h.ExportHistory, admin)
}

func compact(mws ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(mws))
	for _, m := range mws {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}
