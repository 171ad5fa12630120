// Package connections implements the tunnel connection endpoints. The list
// endpoint is session-authenticated for the dashboard; create, activate and
// close are called by the portr CLI and tunnel server, which authenticate with
// the member's secret key in the request body.
package connections

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/portr-admin/portr-admin/internal/api/httpx"
	"github.com/portr-admin/portr-admin/internal/db/models"
	"github.com/portr-admin/portr-admin/internal/db/repositories"
	"github.com/portr-admin/portr-admin/internal/middleware"
	"github.com/portr-admin/portr-admin/internal/services"
)

// Handlers handles connection lifecycle endpoints.
type Handlers struct {
	connections *services.ConnectionService
	connRepo    *repositories.ConnectionRepository
	teamRepo    *repositories.TeamRepository
}

// NewHandlers creates a new connection Handlers instance.
func NewHandlers(connections *services.ConnectionService, connRepo *repositories.ConnectionRepository, teamRepo *repositories.TeamRepository) *Handlers {
	return &Handlers{connections: connections, connRepo: connRepo, teamRepo: teamRepo}
}

// memberFromSecretKey resolves the membership for a body-supplied secret key.
// Returns nil after writing the 400 response when the key is missing or wrong.
func (h *Handlers) memberFromSecretKey(c *gin.Context, secretKey string) *models.TeamUserContext {
	if secretKey == "" {
		httpx.BadRequest(c, "Invalid secret key")
		return nil
	}
	member, err := h.teamRepo.GetTeamUserBySecretKey(c.Request.Context(), secretKey)
	if err != nil {
		httpx.Error(c, err)
		return nil
	}
	if member == nil {
		httpx.BadRequest(c, "Invalid secret key")
		return nil
	}
	return member
}

// connectionForMember loads a connection and checks it belongs to the member's
// team. Returns nil after writing the response on failure.
func (h *Handlers) connectionForMember(c *gin.Context, id string, member *models.TeamUserContext) *models.Connection {
	conn, err := h.connRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		httpx.Error(c, err)
		return nil
	}
	if conn == nil || conn.TeamID != member.TeamID {
		httpx.BadRequest(c, "Connection not found")
		return nil
	}
	return conn
}

// @Summary      List connections
// @Description  Lists the selected team's connections, newest first. type=active narrows to currently active tunnels; anything else returns recent history.
// @Tags         Connections
// @Security     Cookie
// @Produce      json
// @Param        type       query  string  false  "active or recent (default recent)"
// @Param        page       query  int     false  "Page number (default 1)"
// @Param        page_size  query  int     false  "Items per page (default 10)"
// @Success      200  {object}  map[string]interface{}  "count, data"
// @Router       /api/v1/connections [get]
func (h *Handlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		member := middleware.CurrentTeamUser(c)

		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

		conns, total, err := h.connections.List(c.Request.Context(), member.TeamID, c.Query("type"), page, pageSize)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": total, "data": conns})
	}
}

type createConnectionInput struct {
	ConnectionType models.ConnectionType `json:"connection_type"`
	SecretKey      string                `json:"secret_key"`
	Subdomain      *string               `json:"subdomain"`
	Port           *int                  `json:"port"`
}

// @Summary      Create connection
// @Description  Reserves a connection for the CLI identified by the secret key. HTTP connections need a subdomain that no active connection holds.
// @Tags         Connections
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "connection_id"
// @Failure      400  {object}  map[string]interface{}  "Invalid secret key, invalid type, or subdomain in use"
// @Router       /api/v1/connections [post]
func (h *Handlers) CreateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input createConnectionInput
		if err := c.ShouldBindJSON(&input); err != nil {
			httpx.BadRequest(c, "Invalid request body")
			return
		}

		member := h.memberFromSecretKey(c, input.SecretKey)
		if member == nil {
			return
		}

		conn, err := h.connections.Create(c.Request.Context(), input.ConnectionType, input.Subdomain, input.Port, member)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"connection_id": conn.ID})
	}
}

type lifecycleInput struct {
	SecretKey string `json:"secret_key"`
}

// @Summary      Activate connection
// @Description  Marks a reserved connection active once the tunnel handshake completes. Called by the tunnel server.
// @Tags         Connections
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      400  {object}  map[string]interface{}
// @Router       /api/v1/connections/{id}/activate [post]
func (h *Handlers) ActivateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input lifecycleInput
		if err := c.ShouldBindJSON(&input); err != nil {
			httpx.BadRequest(c, "Invalid request body")
			return
		}

		member := h.memberFromSecretKey(c, input.SecretKey)
		if member == nil {
			return
		}
		conn := h.connectionForMember(c, c.Param("id"), member)
		if conn == nil {
			return
		}

		if err := h.connections.Activate(c.Request.Context(), conn.ID); err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Connection activated"})
	}
}

// @Summary      Close connection
// @Description  Marks a connection closed when the tunnel ends. Closing twice is an error since the connection is no longer active.
// @Tags         Connections
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      400  {object}  map[string]interface{}
// @Router       /api/v1/connections/{id}/close [post]
func (h *Handlers) CloseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input lifecycleInput
		if err := c.ShouldBindJSON(&input); err != nil {
			httpx.BadRequest(c, "Invalid request body")
			return
		}

		member := h.memberFromSecretKey(c, input.SecretKey)
		if member == nil {
			return
		}
		conn := h.connectionForMember(c, c.Param("id"), member)
		if conn == nil {
			return
		}

		if err := h.connections.Close(c.Request.Context(), conn.ID); err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Connection closed"})
	}
}
