package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// InstalledReport handles GET /v1/reports/installed.
func (h *ToolingHandler) InstalledReport(c echo.Context) error {
	rows, err := h.Svc.InstalledReport(c.Request().Context())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": rows})
}

// ServiceReport handles GET /v1/reports/service.
func (h *ToolingHandler) ServiceReport(c echo.Context) error {
	rows, err := h.Svc.ServiceReport(c.Request().Context())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": rows})
}
