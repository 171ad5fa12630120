// user.go implements the /user/me endpoints: current membership, team list,
// profile updates, password changes, and secret key rotation.
package accounts

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/portr-admin/portr-admin/internal/api/httpx"
	"github.com/portr-admin/portr-admin/internal/db/models"
	"github.com/portr-admin/portr-admin/internal/db/repositories"
	"github.com/portr-admin/portr-admin/internal/middleware"
	"github.com/portr-admin/portr-admin/internal/services"
)

// UserHandlers handles current-user endpoints.
type UserHandlers struct {
	users    *services.UserService
	teams    *services.TeamService
	teamRepo *repositories.TeamRepository
}

// NewUserHandlers creates a new UserHandlers instance.
func NewUserHandlers(users *services.UserService, teams *services.TeamService, teamRepo *repositories.TeamRepository) *UserHandlers {
	return &UserHandlers{users: users, teams: teams, teamRepo: teamRepo}
}

// currentMember is the /user/me response: the membership in the selected team
// with the user profile attached.
type currentMember struct {
	*models.TeamUserContext
	User *models.User `json:"user"`
}

// @Summary      Current member
// @Description  Returns the acting membership in the team selected by X-Team-Slug, with the user profile.
// @Tags         User
// @Security     Cookie
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/user/me [get]
func (h *UserHandlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, currentMember{
			TeamUserContext: middleware.CurrentTeamUser(c),
			User:            middleware.CurrentUser(c),
		})
	}
}

// @Summary      My teams
// @Description  Lists all teams the current user belongs to, used by the team switcher.
// @Tags         User
// @Security     Cookie
// @Produce      json
// @Success      200  {array}  models.Team
// @Router       /api/v1/user/me/teams [get]
func (h *UserHandlers) MyTeamsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		teams, err := h.teamRepo.ListTeamsForUser(c.Request.Context(), user.ID)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, teams)
	}
}

type updateProfileInput struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

// @Summary      Update profile
// @Description  Partially updates the current user's name fields. Absent fields keep their value.
// @Tags         User
// @Security     Cookie
// @Accept       json
// @Produce      json
// @Success      200  {object}  models.User
// @Router       /api/v1/user/me/update [patch]
func (h *UserHandlers) UpdateProfileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input updateProfileInput
		if err := c.ShouldBindJSON(&input); err != nil {
			httpx.BadRequest(c, "Invalid request body")
			return
		}

		user := middleware.CurrentUser(c)
		if err := h.users.UpdateProfile(c.Request.Context(), user, input.FirstName, input.LastName); err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

type changePasswordInput struct {
	Password string `json:"password"`
}

// @Summary      Change password
// @Description  Sets a new password for the current user.
// @Tags         User
// @Security     Cookie
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      400  {object}  map[string]interface{}
// @Router       /api/v1/user/me/change-password [patch]
func (h *UserHandlers) ChangePasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input changePasswordInput
		if err := c.ShouldBindJSON(&input); err != nil {
			httpx.BadRequest(c, "Invalid request body")
			return
		}

		user := middleware.CurrentUser(c)
		if err := h.users.ChangePassword(c.Request.Context(), user.ID, input.Password); err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Password changed"})
	}
}

// @Summary      Rotate secret key
// @Description  Replaces the acting member's tunnel secret key. The old key stops working immediately.
// @Tags         User
// @Security     Cookie
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "secret_key"
// @Router       /api/v1/user/me/rotate-secret-key [patch]
func (h *UserHandlers) RotateSecretKeyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		member := middleware.CurrentTeamUser(c)
		key, err := h.teams.RotateSecretKey(c.Request.Context(), member.ID)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"secret_key": key})
	}
}
