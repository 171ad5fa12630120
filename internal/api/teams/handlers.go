// Package teams implements team management endpoints: team creation, member
// listing, invitations, removal and the per-team settings.
package teams

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

// Handlers handles team management endpoints.
type Handlers struct {
	teams    *services.TeamService
	teamRepo *repositories.TeamRepository
}

// NewHandlers creates a new team Handlers instance.
func NewHandlers(teams *services.TeamService, teamRepo *repositories.TeamRepository) *Handlers {
	return &Handlers{teams: teams, teamRepo: teamRepo}
}

type createTeamInput struct {
	Name string `json:"name"`
}

// @Summary      Create team
// @Description  Creates a team and makes the caller its admin. Superuser only.
// @Tags         Teams
// @Security     Cookie
// @Accept       json
// @Produce      json
// @Success      200  {object}  models.Team
// @Failure      400  {object}  map[string]interface{}  "name invalid or already taken"
// @Failure      403  {object}  map[string]interface{}
// @Router       /api/v1/team [post]
func (h *Handlers) CreateTeamHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input createTeamInput
		if err := c.ShouldBindJSON(&input); err != nil {
			httpx.BadRequest(c, "Invalid request body")
			return
		}

		user := middleware.CurrentUser(c)
		team, err := h.teams.CreateTeam(c.Request.Context(), input.Name, user.ID)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, team)
	}
}

// @Summary      List members
// @Description  Lists the members of the selected team with their user profiles, paginated.
// @Tags         Teams
// @Security     Cookie
// @Produce      json
// @Param        page       query  int  false  "Page number (default 1)"
// @Param        page_size  query  int  false  "Items per page (default 10)"
// @Success      200  {object}  map[string]interface{}  "count, data"
// @Router       /api/v1/team/users [get]
func (h *Handlers) ListMembersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		member := middleware.CurrentTeamUser(c)

		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
		if page < 1 {
			page = 1
		}
		if pageSize < 1 || pageSize > 100 {
			pageSize = 10
		}

		members, total, err := h.teamRepo.ListMembers(c.Request.Context(), member.TeamID, pageSize, (page-1)*pageSize)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": total, "data": members})
	}
}

type addMemberInput struct {
	Email        string      `json:"email"`
	Role         models.Role `json:"role"`
	SetSuperuser bool        `json:"set_superuser"`
}

// @Summary      Add member
// @Description  Invites an email to the selected team. If the user does not exist yet, an account is created and the credentials are delivered by email when SMTP is configured, otherwise the generated password is returned once in the response. Admin only.
// @Tags         Teams
// @Security     Cookie
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "team_user, email_sent, password (only when no email was sent)"
// @Failure      400  {object}  map[string]interface{}
// @Failure      403  {object}  map[string]interface{}
// @Router       /api/v1/team/add [post]
func (h *Handlers) AddMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input addMemberInput
		if err := c.ShouldBindJSON(&input); err != nil {
			httpx.BadRequest(c, "Invalid request body")
			return
		}
		if input.Email == "" {
			c.JSON(http.StatusBadRequest, gin.H{"email": "Email is required"})
			return
		}

		member := middleware.CurrentTeamUser(c)
		user := middleware.CurrentUser(c)

		result, err := h.teams.AddUser(c.Request.Context(), &member.Team, input.Email, input.Role, input.SetSuperuser, user)
		if err != nil {
			httpx.Error(c, err)
			return
		}

		resp := gin.H{"team_user": result.Member, "email_sent": result.EmailSent}
		if result.GeneratedPassword != "" {
			resp["password"] = result.GeneratedPassword
		}
		c.JSON(http.StatusOK, resp)
	}
}

// @Summary      Get team settings
// @Description  Returns the team's GitHub organization integration settings. Admin only.
// @Tags         Teams
// @Security     Cookie
// @Produce      json
// @Success      200  {object}  models.TeamSettings
// @Failure      403  {object}  map[string]interface{}
// @Router       /api/v1/team/settings [get]
func (h *Handlers) GetSettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		member := middleware.CurrentTeamUser(c)

		settings, err := h.teams.GetSettings(c.Request.Context(), member.TeamID)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, settings)
	}
}

// @Summary      Update team settings
// @Description  Partially updates the team's GitHub organization integration settings. Absent fields keep their value; the webhook secret and PAT are stored encrypted. Admin only.
// @Tags         Teams
// @Security     Cookie
// @Accept       json
// @Produce      json
// @Success      200  {object}  models.TeamSettings
// @Failure      400  {object}  map[string]interface{}
// @Failure      403  {object}  map[string]interface{}
// @Router       /api/v1/team/settings [patch]
func (h *Handlers) UpdateSettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch services.TeamSettingsPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			httpx.BadRequest(c, "Invalid request body")
			return
		}

		member := middleware.CurrentTeamUser(c)
		updated, err := h.teams.UpdateSettings(c.Request.Context(), member.TeamID, &patch, member.ID)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

// @Summary      Remove member
// @Description  Removes a membership from the selected team. The underlying user account is deleted when this was their last team and they are not a superuser. Admin only.
// @Tags         Teams
// @Security     Cookie
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      400  {object}  map[string]interface{}  "User not found"
// @Failure      403  {object}  map[string]interface{}
// @Router       /api/v1/team/users/{id} [delete]
func (h *Handlers) RemoveMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		member := middleware.CurrentTeamUser(c)
		user := middleware.CurrentUser(c)

		if err := h.teams.RemoveUser(c.Request.Context(), &member.Team, c.Param("id"), user); err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
	}
}
