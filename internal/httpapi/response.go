package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Responses use the panel's message shape: {"success": true, ...fields} or
// {"success": false, "error": "..."}.

func success(c echo.Context, fields map[string]any) error {
	body := map[string]any{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	return c.JSON(http.StatusOK, body)
}

func fail(c echo.Context, code int, message string, fields map[string]any) error {
	body := map[string]any{"success": false, "error": message}
	for k, v := range fields {
		body[k] = v
	}
	return c.JSON(code, body)
}

func internalError(c echo.Context, message string) error {
	return fail(c, http.StatusInternalServerError, message, nil)
}
