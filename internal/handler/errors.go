package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tooling-tracker/internal/logger"
	"github.com/iliyamo/tooling-tracker/internal/service"
)

// writeError maps the service error taxonomy onto HTTP responses.
// Unexpected errors are logged and reported as 500 without detail.
func writeError(c echo.Context, log *logger.Logger, err error) error {
	var (
		ve *service.ValidationError
		ne *service.NotFoundError
		ce *service.ConflictError
		de *service.DomainError
	)
	switch {
	case errors.As(err, &ve):
		body := echo.Map{"error": ve.Error()}
		if ve.Field != "" {
			body["field"] = ve.Field
		}
		return c.JSON(http.StatusBadRequest, body)
	case errors.As(err, &ne):
		return c.JSON(http.StatusNotFound, echo.Map{"error": ne.Error()})
	case errors.As(err, &ce):
		return c.JSON(http.StatusConflict, echo.Map{"error": ce.Error()})
	case errors.As(err, &de):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": de.Error()})
	}
	log.Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// pathID parses the :id parameter.
func pathID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id != 0
}
