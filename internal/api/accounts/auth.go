// Package accounts implements the authentication and current-user endpoints:
// password login, GitHub OAuth, logout, and the /user/me profile surface.
package accounts

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/portr-admin/portr-admin/internal/api/httpx"
	"github.com/portr-admin/portr-admin/internal/auth"
	"github.com/portr-admin/portr-admin/internal/auth/github"
	"github.com/portr-admin/portr-admin/internal/config"
	"github.com/portr-admin/portr-admin/internal/db/models"
	"github.com/portr-admin/portr-admin/internal/db/repositories"
	"github.com/portr-admin/portr-admin/internal/middleware"
	"github.com/portr-admin/portr-admin/internal/services"
)

const (
	// sessionCookieMaxAge keeps browser sessions alive for seven days; the
	// server-side expiry in the sessions table is the authoritative limit.
	sessionCookieMaxAge = 7 * 24 * 60 * 60

	// oauthStateCookie holds the signed state token between the GitHub
	// redirect and the callback.
	oauthStateCookie = "oauth_state"

	// nextURLCookie remembers where to send the browser after a successful
	// GitHub login.
	nextURLCookie = "portr_next_url"

	oauthCookieMaxAge = 600
)

// AuthHandlers handles login, logout and the GitHub OAuth flow.
type AuthHandlers struct {
	cfg      *config.Config
	users    *services.UserService
	sessions *services.SessionService
	userRepo *repositories.UserRepository
	teamRepo *repositories.TeamRepository
	github   *github.Client // nil when GitHub auth is not configured
}

// NewAuthHandlers creates an AuthHandlers instance. The GitHub OAuth client is
// only constructed when a client id is configured; the endpoints degrade to
// password-only login otherwise.
func NewAuthHandlers(
	cfg *config.Config,
	users *services.UserService,
	sessions *services.SessionService,
	userRepo *repositories.UserRepository,
	teamRepo *repositories.TeamRepository,
) *AuthHandlers {
	h := &AuthHandlers{
		cfg:      cfg,
		users:    users,
		sessions: sessions,
		userRepo: userRepo,
		teamRepo: teamRepo,
	}
	if cfg.Auth.GitHub.Enabled() {
		client, err := github.NewClient(&cfg.Auth.GitHub, cfg.Server.DomainAddress()+"/api/v1/auth/github/callback")
		if err == nil {
			h.github = client
		}
	}
	return h
}

// setSessionCookie issues the browser session cookie. Secure is dropped in
// debug deployments, which run on plain HTTP.
func (h *AuthHandlers) setSessionCookie(c *gin.Context, token string) {
	c.SetCookie(middleware.SessionCookieName, token, sessionCookieMaxAge, "/", "", !h.cfg.Server.Debug, true)
}

// redirectPathFor returns the post-login landing path: the overview page of
// the user's first team, or the root when the user has no memberships yet.
func (h *AuthHandlers) redirectPathFor(c *gin.Context, user *models.User) string {
	teams, err := h.teamRepo.ListTeamsForUser(c.Request.Context(), user.ID)
	if err != nil || len(teams) == 0 {
		return "/"
	}
	return "/" + teams[0].Slug + "/overview"
}

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// @Summary      Password login
// @Description  Authenticates with email and password. The very first login bootstraps the superuser and a default team. Sets the portr_session cookie on success.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "redirect_to: post-login path"
// @Failure      400  {object}  map[string]interface{}  "field-keyed validation error"
// @Router       /api/v1/auth/login [post]
func (h *AuthHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input loginInput
		if err := c.ShouldBindJSON(&input); err != nil {
			httpx.BadRequest(c, "Invalid request body")
			return
		}
		if input.Email == "" {
			c.JSON(http.StatusBadRequest, gin.H{"email": "Email is required"})
			return
		}

		user, err := h.users.Login(c.Request.Context(), input.Email, input.Password)
		if err != nil {
			httpx.Error(c, err)
			return
		}

		token, err := h.sessions.Create(c.Request.Context(), user)
		if err != nil {
			httpx.Error(c, err)
			return
		}

		h.setSessionCookie(c, token)
		c.JSON(http.StatusOK, gin.H{"redirect_to": h.redirectPathFor(c, user)})
	}
}

// @Summary      Auth configuration
// @Description  Tells the login page whether this is the first signup and whether GitHub login is available.
// @Tags         Auth
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "is_first_signup, github_auth_enabled"
// @Router       /api/v1/auth/auth-config [get]
func (h *AuthHandlers) AuthConfigHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		hasUsers, err := h.userRepo.HasAnyUsers(c.Request.Context())
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"is_first_signup":     !hasUsers,
			"github_auth_enabled": h.github != nil,
		})
	}
}

// @Summary      Start GitHub OAuth
// @Description  Redirects the browser to GitHub with a signed state token. An optional next query parameter is remembered for the post-login redirect.
// @Tags         Auth
// @Success      302
// @Failure      400  {object}  map[string]interface{}  "GitHub auth not configured"
// @Router       /api/v1/auth/github [get]
func (h *AuthHandlers) GithubLoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.github == nil {
			httpx.BadRequest(c, "GitHub authentication is not configured")
			return
		}

		state, err := auth.GenerateStateToken(h.cfg.StateSigningSecret())
		if err != nil {
			httpx.Error(c, err)
			return
		}

		secure := !h.cfg.Server.Debug
		c.SetCookie(oauthStateCookie, state, oauthCookieMaxAge, "/", "", secure, true)
		if next := c.Query("next"); next != "" {
			c.SetCookie(nextURLCookie, next, oauthCookieMaxAge, "/", "", secure, true)
		}

		c.Redirect(http.StatusFound, h.github.AuthURL(state))
	}
}

// @Summary      GitHub OAuth callback
// @Description  Completes the OAuth flow. Failures redirect to the login page with a code query parameter (invalid-state, user-not-found, private-email, github-error).
// @Tags         Auth
// @Success      302
// @Router       /api/v1/auth/github/callback [get]
func (h *AuthHandlers) GithubCallbackHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.github == nil {
			httpx.BadRequest(c, "GitHub authentication is not configured")
			return
		}

		secure := !h.cfg.Server.Debug
		state := c.Query("state")
		cookieState, err := c.Cookie(oauthStateCookie)
		if err != nil || state == "" || state != cookieState ||
			auth.ValidateStateToken(state, h.cfg.StateSigningSecret()) != nil {
			c.Redirect(http.StatusFound, "/?code=invalid-state")
			return
		}
		c.SetCookie(oauthStateCookie, "", -1, "/", "", secure, true)

		accessToken, err := h.github.ExchangeCode(c.Request.Context(), c.Query("code"))
		if err != nil {
			c.Redirect(http.StatusFound, "/?code=github-error")
			return
		}

		ghUser, err := h.github.FetchUser(c.Request.Context(), accessToken)
		if err != nil {
			c.Redirect(http.StatusFound, "/?code=github-error")
			return
		}

		var emails []github.Email
		if ghUser.Email == "" {
			if emails, err = h.github.FetchEmails(c.Request.Context(), accessToken); err != nil {
				c.Redirect(http.StatusFound, "/?code=github-error")
				return
			}
		}

		user, err := h.users.LoginWithGithub(c.Request.Context(), ghUser, emails, accessToken)
		switch {
		case err == nil:
		case err == services.ErrUserNotFound:
			c.Redirect(http.StatusFound, "/?code=user-not-found")
			return
		default:
			if _, ok := err.(*services.Error); ok {
				c.Redirect(http.StatusFound, "/?code=private-email")
				return
			}
			c.Redirect(http.StatusFound, "/?code=github-error")
			return
		}

		token, err := h.sessions.Create(c.Request.Context(), user)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		h.setSessionCookie(c, token)

		target := "/"
		if next, err := c.Cookie(nextURLCookie); err == nil && next != "" {
			target = next
			c.SetCookie(nextURLCookie, "", -1, "/", "", secure, true)
		}
		c.Redirect(http.StatusFound, target)
	}
}

// @Summary      Logout
// @Description  Invalidates the current session and clears the session cookie.
// @Tags         Auth
// @Security     Cookie
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "message"
// @Router       /api/v1/auth/logout [post]
func (h *AuthHandlers) LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, err := c.Cookie(middleware.SessionCookieName); err == nil {
			if err := h.sessions.Invalidate(c.Request.Context(), token); err != nil {
				httpx.Error(c, err)
				return
			}
		}
		c.SetCookie(middleware.SessionCookieName, "", -1, "/", "", !h.cfg.Server.Debug, true)
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	}
}
