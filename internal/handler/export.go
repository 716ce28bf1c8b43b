package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tooling-tracker/internal/service"
)

const csvContentType = "text/csv; charset=utf-8"

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ExportTools handles GET /v1/exports/tools.csv.
func (h *ToolingHandler) ExportTools(c echo.Context) error {
	views, err := h.Svc.ListActiveTools(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var buf bytes.Buffer
	if err := service.WriteAggregateCSV(&buf, views); err != nil {
		return writeError(c, h.Log, err)
	}
	return sendCSV(c, "tooling.csv", buf.Bytes())
}

// ExportHistory handles GET /v1/exports/tools/:id/history.csv.
func (h *ToolingHandler) ExportHistory(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid tool id")
	}
	tool, events, err := h.Svc.History(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var buf bytes.Buffer
	if err := service.WriteHistoryCSV(&buf, events); err != nil {
		return writeError(c, h.Log, err)
	}
	name := unsafeFilename.ReplaceAllString(tool.ToolCode, "_")
	return sendCSV(c, fmt.Sprintf("tool_%s_history.csv", name), buf.Bytes())
}

func sendCSV(c echo.Context, filename string, body []byte) error {
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Blob(http.StatusOK, csvContentType, body)
}
