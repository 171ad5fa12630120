// Package httpx holds response helpers shared by the HTTP handler packages.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/portr-admin/portr-admin/internal/services"
)

// Error renders a service-layer error as a JSON response.
//
// Mapping:
//   - *services.FieldError      -> 400 {"<field>": "<message>"}
//   - *services.Error           -> 400 {"message": "<message>"}
//   - *services.PermissionError -> 403 {"error": "<reason>"}
//   - services.ErrNotAuthenticated -> 401 {"error": "Not authenticated"}
//   - anything else             -> 500 {"error": "Internal server error"}
//
// Unexpected errors are logged with their cause; the cause is never sent to
// the client.
func Error(c *gin.Context, err error) {
	var fieldErr *services.FieldError
	if errors.As(err, &fieldErr) {
		c.JSON(http.StatusBadRequest, gin.H{fieldErr.Field: fieldErr.Message})
		return
	}

	var svcErr *services.Error
	if errors.As(err, &svcErr) {
		c.JSON(http.StatusBadRequest, gin.H{"message": svcErr.Message})
		return
	}

	var permErr *services.PermissionError
	if errors.As(err, &permErr) {
		c.JSON(http.StatusForbidden, gin.H{"error": permErr.Reason})
		return
	}

	if errors.Is(err, services.ErrNotAuthenticated) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	slog.Error("request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

// BadRequest renders a 400 with a message body, matching the service error shape.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"message": message})
}
