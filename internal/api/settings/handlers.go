// Package settings implements the instance settings endpoints. These cover
// SMTP delivery and the invite email templates, and are superuser-only.
package settings

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/portr-admin/portr-admin/internal/api/httpx"
	"github.com/portr-admin/portr-admin/internal/middleware"
	"github.com/portr-admin/portr-admin/internal/services"
)

// Handlers handles instance settings endpoints.
type Handlers struct {
	settings *services.SettingsService
}

// NewHandlers creates a new settings Handlers instance.
func NewHandlers(settings *services.SettingsService) *Handlers {
	return &Handlers{settings: settings}
}

// @Summary      Get instance settings
// @Description  Returns the singleton instance settings row, creating it with defaults on first access. Superuser only.
// @Tags         Settings
// @Security     Cookie
// @Produce      json
// @Success      200  {object}  models.InstanceSettings
// @Failure      403  {object}  map[string]interface{}
// @Router       /api/v1/instance-settings [get]
func (h *Handlers) GetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := h.settings.Get(c.Request.Context())
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, s)
	}
}

// @Summary      Update instance settings
// @Description  Partially updates the instance settings. Absent fields keep their value; the SMTP password is stored encrypted. Superuser only.
// @Tags         Settings
// @Security     Cookie
// @Accept       json
// @Produce      json
// @Success      200  {object}  models.InstanceSettings
// @Failure      403  {object}  map[string]interface{}
// @Router       /api/v1/instance-settings [patch]
func (h *Handlers) UpdateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch services.SettingsPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			httpx.BadRequest(c, "Invalid request body")
			return
		}

		user := middleware.CurrentUser(c)
		updated, err := h.settings.Update(c.Request.Context(), &patch, user.ID)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}
