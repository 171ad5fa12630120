// Package api wires together all HTTP routes for the Portr admin server.
//
// Route grouping philosophy:
//   - CLI endpoints (POST /api/v1/connections, /api/v1/connections/:id/activate,
//     /api/v1/connections/:id/close, /api/v1/config/download) are cookie-free:
//     the caller authenticates with a member secret key in the request body.
//   - Everything else under /api/v1 requires a session (or the trusted proxy
//     header) and, where a team is involved, the X-Team-Slug scope.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/portr-admin/portr-admin/internal/api/accounts"
	"github.com/portr-admin/portr-admin/internal/api/clientconfig"
	"github.com/portr-admin/portr-admin/internal/api/connections"
	apisettings "github.com/portr-admin/portr-admin/internal/api/settings"
	"github.com/portr-admin/portr-admin/internal/api/teams"
	"github.com/portr-admin/portr-admin/internal/config"
	"github.com/portr-admin/portr-admin/internal/crypto"
	"github.com/portr-admin/portr-admin/internal/db"
	"github.com/portr-admin/portr-admin/internal/db/repositories"
	"github.com/portr-admin/portr-admin/internal/jobs"
	"github.com/portr-admin/portr-admin/internal/mailer"
	"github.com/portr-admin/portr-admin/internal/middleware"
	"github.com/portr-admin/portr-admin/internal/safego"
	"github.com/portr-admin/portr-admin/internal/services"
)

// BackgroundServices holds references to background jobs and resources that must
// be stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	reclaimer    *jobs.Reclaimer
	rateLimiters []*middleware.RateLimiter
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.reclaimer != nil {
		bg.reclaimer.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg *config.Config, database *sql.DB) (*gin.Engine, *BackgroundServices, error) {
	router := gin.New()

	cipher, err := crypto.NewFieldCipherFromPassphrase(cfg.Crypto.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize field cipher: %w", err)
	}

	// Repositories. Connection and settings repositories use sqlx for named
	// and struct scanning support.
	sqlxDB := db.Wrap(database)
	userRepo := repositories.NewUserRepository(database, cipher)
	teamRepo := repositories.NewTeamRepository(database)
	sessionRepo := repositories.NewSessionRepository(database)
	connRepo := repositories.NewConnectionRepository(sqlxDB)
	settingsRepo := repositories.NewSettingsRepository(sqlxDB, cipher)

	// Services.
	userService := services.NewUserService(userRepo, teamRepo)
	sessionService := services.NewSessionService(sessionRepo)
	teamService := services.NewTeamService(teamRepo, settingsRepo, mailer.New(), cfg)
	connectionService := services.NewConnectionService(connRepo)
	settingsService := services.NewSettingsService(settingsRepo)

	// Background reclaimer for expired sessions and abandoned reservations.
	reclaimer := jobs.NewReclaimer(sessionRepo, connRepo)
	safego.Go(func() { reclaimer.Start(context.Background()) })

	// Middleware stack.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))

	securityConfig := middleware.DefaultSecurityHeadersConfig()
	securityConfig.EnableHSTS = !cfg.Server.Debug
	router.Use(middleware.SecurityHeadersMiddleware(securityConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(database))

	// API version
	router.GET("/version", versionHandler())

	// Handlers.
	authHandlers := accounts.NewAuthHandlers(cfg, userService, sessionService, userRepo, teamRepo)
	userHandlers := accounts.NewUserHandlers(userService, teamService, teamRepo)
	teamHandlers := teams.NewHandlers(teamService, teamRepo)
	connectionHandlers := connections.NewHandlers(connectionService, connRepo, teamRepo)
	configHandlers := clientconfig.NewHandlers(cfg, teamRepo)
	settingsHandlers := apisettings.NewHandlers(settingsService)

	// Rate limiters.
	authRateLimiter := middleware.NewRateLimiter(middleware.AuthRateLimitConfig())
	generalRateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())

	sessionAuth := middleware.SessionAuth(cfg, sessionService, userService, userRepo)
	teamScope := middleware.TeamScope(teamRepo)

	apiV1 := router.Group("/api/v1")
	{
		// Public authentication endpoints (no auth required, but rate limited)
		authGroup := apiV1.Group("/auth")
		authGroup.Use(middleware.RateLimitMiddleware(authRateLimiter))
		{
			authGroup.POST("/login", authHandlers.LoginHandler())
			authGroup.GET("/auth-config", authHandlers.AuthConfigHandler())
			authGroup.GET("/github", authHandlers.GithubLoginHandler())
			authGroup.GET("/github/callback", authHandlers.GithubCallbackHandler())
			authGroup.POST("/logout", authHandlers.LogoutHandler())
		}

		// CLI endpoints authenticate via the secret key in the request body.
		cliGroup := apiV1.Group("")
		cliGroup.Use(middleware.RateLimitMiddleware(generalRateLimiter))
		{
			cliGroup.POST("/connections", connectionHandlers.CreateHandler())
			cliGroup.POST("/connections/:id/activate", connectionHandlers.ActivateHandler())
			cliGroup.POST("/connections/:id/close", connectionHandlers.CloseHandler())
			cliGroup.POST("/config/download", configHandlers.DownloadHandler())
		}

		// Session-authenticated endpoints.
		authed := apiV1.Group("")
		authed.Use(sessionAuth)
		authed.Use(middleware.RateLimitMiddleware(generalRateLimiter))
		{
			authed.GET("/user/me/teams", userHandlers.MyTeamsHandler())
			authed.PATCH("/user/me/update", userHandlers.UpdateProfileHandler())
			authed.PATCH("/user/me/change-password", userHandlers.ChangePasswordHandler())

			authed.POST("/team", middleware.RequireSuperuser(), teamHandlers.CreateTeamHandler())

			authed.GET("/instance-settings", middleware.RequireSuperuser(), settingsHandlers.GetHandler())
			authed.PATCH("/instance-settings", middleware.RequireSuperuser(), settingsHandlers.UpdateHandler())

			// Team-scoped endpoints additionally require the X-Team-Slug header.
			scoped := authed.Group("")
			scoped.Use(teamScope)
			{
				scoped.GET("/user/me", userHandlers.MeHandler())
				scoped.PATCH("/user/me/rotate-secret-key", userHandlers.RotateSecretKeyHandler())

				scoped.GET("/team/users", teamHandlers.ListMembersHandler())
				scoped.POST("/team/add", middleware.RequireAdmin(), teamHandlers.AddMemberHandler())
				scoped.DELETE("/team/users/:id", middleware.RequireAdmin(), teamHandlers.RemoveMemberHandler())
				scoped.GET("/team/settings", middleware.RequireAdmin(), teamHandlers.GetSettingsHandler())
				scoped.PATCH("/team/settings", middleware.RequireAdmin(), teamHandlers.UpdateSettingsHandler())

				scoped.GET("/connections", connectionHandlers.ListHandler())

				scoped.GET("/config/setup-script", configHandlers.SetupScriptHandler())
			}
		}
	}

	bg := &BackgroundServices{
		reclaimer:    reclaimer,
		rateLimiters: []*middleware.RateLimiter{authRateLimiter, generalRateLimiter},
	}

	return router, bg, nil
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(database *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := database.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Description  Returns the current API version.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured request logging via slog.
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		requestID, _ := c.Get(middleware.RequestIDKey)
		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", latency),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", fmt.Sprintf("%v", requestID)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}
