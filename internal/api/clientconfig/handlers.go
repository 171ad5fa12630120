// Package clientconfig serves the portr CLI onboarding endpoints: the
// downloadable client configuration and the one-line setup command shown in
// the dashboard.
package clientconfig

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/portr-admin/portr-admin/internal/api/httpx"
	"github.com/portr-admin/portr-admin/internal/config"
	"github.com/portr-admin/portr-admin/internal/db/repositories"
	"github.com/portr-admin/portr-admin/internal/middleware"
)

// clientConfigTemplate is the YAML configuration the portr CLI consumes.
const clientConfigTemplate = `server_url: %s
ssh_url: %s
secret_key: %s
enable_request_logging: false
tunnels:
  - name: portr
    subdomain: portr
    port: 4321
`

// Handlers handles client configuration endpoints.
type Handlers struct {
	cfg      *config.Config
	teamRepo *repositories.TeamRepository
}

// NewHandlers creates a new clientconfig Handlers instance.
func NewHandlers(cfg *config.Config, teamRepo *repositories.TeamRepository) *Handlers {
	return &Handlers{cfg: cfg, teamRepo: teamRepo}
}

type downloadInput struct {
	SecretKey string `json:"secret_key"`
}

// @Summary      Download client config
// @Description  Returns the rendered portr CLI configuration for the member identified by the secret key.
// @Tags         Config
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "message: rendered YAML"
// @Failure      400  {object}  map[string]interface{}  "Invalid secret key"
// @Router       /api/v1/config/download [post]
func (h *Handlers) DownloadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input downloadInput
		if err := c.ShouldBindJSON(&input); err != nil {
			httpx.BadRequest(c, "Invalid request body")
			return
		}
		if input.SecretKey == "" {
			httpx.BadRequest(c, "Invalid secret key")
			return
		}

		member, err := h.teamRepo.GetTeamUserBySecretKey(c.Request.Context(), input.SecretKey)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		if member == nil {
			httpx.BadRequest(c, "Invalid secret key")
			return
		}

		rendered := fmt.Sprintf(clientConfigTemplate,
			h.cfg.Tunnel.ServerURL, h.cfg.Tunnel.SSHURL, member.SecretKey)
		c.JSON(http.StatusOK, gin.H{"message": rendered})
	}
}

// @Summary      Setup script
// @Description  Returns the one-line auth command for the acting member, shown on the dashboard overview page.
// @Tags         Config
// @Security     Cookie
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "message"
// @Router       /api/v1/config/setup-script [get]
func (h *Handlers) SetupScriptHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		member := middleware.CurrentTeamUser(c)
		script := fmt.Sprintf("portr auth set --token %s --remote %s",
			member.SecretKey, h.cfg.Tunnel.ServerURL)
		c.JSON(http.StatusOK, gin.H{"message": script})
	}
}
