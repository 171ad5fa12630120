// Package middleware provides Gin HTTP middleware for authentication,
// authorization, rate limiting, security headers, request ids and metrics.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Recovery → RequestID → Metrics → Security → [RateLimit] → Auth → Handler
//
// Security headers run before auth so they appear on all responses including
// errors. Rate limiting guards the login endpoint before any DB work. Auth
// populates the acting user and, for team-scoped routes, the membership.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/portr-admin/portr-admin/internal/config"
	"github.com/portr-admin/portr-admin/internal/db/models"
	"github.com/portr-admin/portr-admin/internal/db/repositories"
	"github.com/portr-admin/portr-admin/internal/services"
)

const (
	// SessionCookieName is the browser session cookie.
	SessionCookieName = "portr_session"

	// TeamSlugHeader selects the team scope for session-authenticated requests.
	TeamSlugHeader = "X-Team-Slug"

	// UserKey is the gin.Context key holding the acting *models.User.
	UserKey = "user"

	// TeamUserKey is the gin.Context key holding the acting
	// *models.TeamUserContext for team-scoped routes.
	TeamUserKey = "team_user"
)

// abortNotAuthenticated writes the 401 response. The body is deliberately
// generic: it never reveals whether the cookie, the proxy header, or the
// active predicate failed.
func abortNotAuthenticated(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
}

// SessionAuth resolves the acting user. When a trusted proxy header is
// configured, the proxy-asserted email is the sole identity source; otherwise
// the portr_session cookie is resolved through the session service. Inactive
// users fail exactly like missing credentials.
func SessionAuth(cfg *config.Config, sessions *services.SessionService, users *services.UserService, userRepo *repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var user *models.User

		if header := cfg.Auth.TrustedProxyHeader; header != "" {
			email := c.GetHeader(header)
			if email == "" {
				abortNotAuthenticated(c)
				return
			}
			var err error
			user, err = users.GetOrCreateByEmail(c.Request.Context(), email)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed"})
				return
			}
		} else {
			token, err := c.Cookie(SessionCookieName)
			if err != nil {
				abortNotAuthenticated(c)
				return
			}
			user, err = sessions.Resolve(c.Request.Context(), token)
			if err == services.ErrNotAuthenticated {
				abortNotAuthenticated(c)
				return
			}
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed"})
				return
			}
		}

		active, err := userRepo.IsActive(c.Request.Context(), user)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed"})
			return
		}
		if !active {
			abortNotAuthenticated(c)
			return
		}

		c.Set(UserKey, user)
		c.Set("user_id", user.ID)
		c.Next()
	}
}

// TeamScope resolves the acting membership from the X-Team-Slug header. Must
// run after SessionAuth. A missing header or a slug the user is not a member
// of both fail as not authenticated.
func TeamScope(teams *repositories.TeamRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			abortNotAuthenticated(c)
			return
		}

		slug := c.GetHeader(TeamSlugHeader)
		if slug == "" {
			abortNotAuthenticated(c)
			return
		}

		member, err := teams.GetTeamUser(c.Request.Context(), user.ID, slug)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed"})
			return
		}
		if member == nil {
			abortNotAuthenticated(c)
			return
		}

		c.Set(TeamUserKey, member)
		c.Next()
	}
}

// RequireSuperuser rejects non-superusers. Must run after SessionAuth.
func RequireSuperuser() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			abortNotAuthenticated(c)
			return
		}
		if !user.IsSuperuser {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Only superuser can perform this action"})
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects members without the admin role. Must run after
// TeamScope.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		member := CurrentTeamUser(c)
		if member == nil {
			abortNotAuthenticated(c)
			return
		}
		if member.Role != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Only admin can perform this action"})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the acting user set by SessionAuth, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// CurrentTeamUser returns the acting membership set by TeamScope, or nil.
func CurrentTeamUser(c *gin.Context) *models.TeamUserContext {
	v, ok := c.Get(TeamUserKey)
	if !ok {
		return nil
	}
	member, _ := v.(*models.TeamUserContext)
	return member
}
