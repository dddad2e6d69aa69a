// Package api wires together all HTTP routes for the ResolveIt gateway.
//
// Route grouping philosophy:
//   - The public integration surface (/public/v1/) authenticates with app API keys
//     through the verification gateway. It never sees admin JWTs, and its error
//     responses are deliberately uniform so callers cannot probe for valid keys.
//   - Admin and management routes (/api/v1/) always require a JWT and the
//     appropriate RBAC scope.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/resolveit/resolveit/internal/api/admin"
	"github.com/resolveit/resolveit/internal/api/public"
	"github.com/resolveit/resolveit/internal/auth"
	"github.com/resolveit/resolveit/internal/config"
	"github.com/resolveit/resolveit/internal/db/repositories"
	"github.com/resolveit/resolveit/internal/jobs"
	"github.com/resolveit/resolveit/internal/middleware"
)

// BackgroundServices holds references to background jobs and resources that must
// be stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	expirySweeper *jobs.APIKeyExpirySweeper
	rateLimiters  []*middleware.RateLimiter
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.expirySweeper != nil {
		bg.expirySweeper.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	keyRepo := repositories.NewAppAPIKeyRepository(db)
	whitelistRepo := repositories.NewIPWhitelistRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	// Wrap *sql.DB with sqlx for the ticket repository
	sqlxDB := sqlx.NewDb(db, "postgres")

	// The verification service backing the public gateway
	verifier := auth.NewVerifier(keyRepo, whitelistRepo)

	// Start the expiry sweeper so keys past expires_at are deactivated even
	// when they are never presented again
	expirySweeper := jobs.NewAPIKeyExpirySweeper(keyRepo, &cfg.Jobs)
	go expirySweeper.Start(context.Background())

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// Readiness check endpoint
	router.GET("/ready", readinessHandler(db))

	// API version
	router.GET("/version", versionHandler())

	// Initialize admin handlers
	authHandlers := admin.NewAuthHandlers(cfg, db)
	appHandlers := admin.NewAppHandlers(cfg, db)
	apiKeyHandlers := admin.NewAPIKeyHandlers(cfg, db)
	whitelistHandlers := admin.NewWhitelistHandlers(cfg, db)
	userHandlers := admin.NewUserHandlers(cfg, db)
	orgHandlers := admin.NewOrganizationHandlers(cfg, db)
	auditHandlers := admin.NewAuditHandlers(db)

	// Initialize public handlers
	ticketHandlers := public.NewTicketHandlers(sqlxDB)

	// Initialize rate limiters
	authRateLimiter := middleware.NewRateLimiter(middleware.AuthRateLimitConfig())
	generalRateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
	publicRateLimiter := middleware.NewRateLimiter(middleware.PublicAPIRateLimitConfig(
		cfg.Security.RateLimiting.PublicRequestsPerMinute,
		cfg.Security.RateLimiting.PublicBurst,
	))

	// Admin API endpoints
	apiV1 := router.Group("/api/v1")
	{
		// Login endpoint (no auth required, but strictly rate limited)
		authGroup := apiV1.Group("/auth")
		authGroup.Use(middleware.RateLimitMiddleware(authRateLimiter))
		{
			authGroup.POST("/login", authHandlers.LoginHandler())
		}

		// Authenticated management endpoints
		authenticatedGroup := apiV1.Group("")
		authenticatedGroup.Use(middleware.AdminAuthMiddleware(userRepo))
		authenticatedGroup.Use(middleware.RateLimitMiddleware(generalRateLimiter))
		authenticatedGroup.Use(middleware.AuditMiddleware(auditRepo, &cfg.Audit))
		{
			authenticatedGroup.GET("/auth/me", authHandlers.MeHandler())

			// App management
			appsGroup := authenticatedGroup.Group("/apps")
			{
				appsGroup.GET("", middleware.RequireScope(auth.ScopeAppsRead), appHandlers.ListAppsHandler())
				appsGroup.GET("/:id", middleware.RequireScope(auth.ScopeAppsRead), appHandlers.GetAppHandler())
				appsGroup.POST("", middleware.RequireScope(auth.ScopeAppsManage), appHandlers.CreateAppHandler())
				appsGroup.PUT("/:id", middleware.RequireScope(auth.ScopeAppsManage), appHandlers.UpdateAppHandler())
				appsGroup.DELETE("/:id", middleware.RequireScope(auth.ScopeAppsManage), appHandlers.DeleteAppHandler())

				// API keys (app-scoped)
				appsGroup.GET("/:id/api-keys", middleware.RequireScope(auth.ScopeAppsRead), apiKeyHandlers.ListAPIKeysHandler())
				appsGroup.POST("/:id/api-keys", middleware.RequireScope(auth.ScopeAppsManage), apiKeyHandlers.CreateAPIKeyHandler())
				appsGroup.DELETE("/:id/api-keys/:keyId", middleware.RequireScope(auth.ScopeAppsManage), apiKeyHandlers.RevokeAPIKeyHandler())

				// IP whitelist (app-scoped)
				appsGroup.GET("/:id/ip-whitelist", middleware.RequireScope(auth.ScopeAppsRead), whitelistHandlers.ListWhitelistHandler())
				appsGroup.POST("/:id/ip-whitelist", middleware.RequireScope(auth.ScopeAppsManage), whitelistHandlers.CreateWhitelistEntryHandler())
				appsGroup.PUT("/:id/ip-whitelist/:entryId", middleware.RequireScope(auth.ScopeAppsManage), whitelistHandlers.UpdateWhitelistEntryHandler())
				appsGroup.DELETE("/:id/ip-whitelist/:entryId", middleware.RequireScope(auth.ScopeAppsManage), whitelistHandlers.DeleteWhitelistEntryHandler())
			}

			// User management
			usersGroup := authenticatedGroup.Group("/users")
			{
				usersGroup.GET("", middleware.RequireScope(auth.ScopeUsersRead), userHandlers.ListUsersHandler())
				usersGroup.GET("/:id", middleware.RequireScope(auth.ScopeUsersRead), userHandlers.GetUserHandler())
				usersGroup.POST("", middleware.RequireScope(auth.ScopeUsersWrite), userHandlers.CreateUserHandler())
				usersGroup.PUT("/:id", middleware.RequireScope(auth.ScopeUsersWrite), userHandlers.UpdateUserHandler())
				usersGroup.DELETE("/:id", middleware.RequireScope(auth.ScopeUsersWrite), userHandlers.DeleteUserHandler())
			}

			// Organization management
			orgsGroup := authenticatedGroup.Group("/organizations")
			{
				orgsGroup.GET("", middleware.RequireScope(auth.ScopeOrganizationsRead), orgHandlers.ListOrganizationsHandler())
				orgsGroup.GET("/:id", middleware.RequireScope(auth.ScopeOrganizationsRead), orgHandlers.GetOrganizationHandler())
				orgsGroup.POST("", middleware.RequireScope(auth.ScopeOrganizationsWrite), orgHandlers.CreateOrganizationHandler())
				orgsGroup.PUT("/:id", middleware.RequireScope(auth.ScopeOrganizationsWrite), orgHandlers.UpdateOrganizationHandler())
				orgsGroup.DELETE("/:id", middleware.RequireScope(auth.ScopeOrganizationsWrite), orgHandlers.DeleteOrganizationHandler())
			}

			// Audit trail (read-only)
			auditGroup := authenticatedGroup.Group("/audit-logs")
			{
				auditGroup.GET("", middleware.RequireScope(auth.ScopeAdmin), auditHandlers.ListAuditLogsHandler())
				auditGroup.GET("/:id", middleware.RequireScope(auth.ScopeAdmin), auditHandlers.GetAuditLogHandler())
			}
		}
	}

	// Public integration endpoints (app API key auth)
	publicV1 := router.Group("/public/v1")
	publicV1.Use(middleware.RateLimitMiddleware(publicRateLimiter))
	publicV1.Use(middleware.APIKeyAuthMiddleware(verifier))
	{
		publicV1.GET("/app", public.AppIdentityHandler())

		publicV1.GET("/tickets", ticketHandlers.ListTicketsHandler())
		publicV1.POST("/tickets", ticketHandlers.CreateTicketHandler())
		publicV1.GET("/tickets/:id", ticketHandlers.GetTicketHandler())
		publicV1.POST("/tickets/:id/close", ticketHandlers.CloseTicketHandler())
	}

	bg := &BackgroundServices{
		expirySweeper: expirySweeper,
		rateLimiters:  []*middleware.RateLimiter{authRateLimiter, generalRateLimiter, publicRateLimiter},
	}

	return router, bg
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check database connection
		if err := db.Ping(); err != nil {
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

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "ready: false, error: database not ready"
// @Router       /ready [get]
// readinessHandler returns the readiness status of the service.
// Verification cannot serve a single request without the database, so the
// readiness gate is database connectivity alone.
func readinessHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.Ping(); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
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

// LoggerMiddleware provides structured logging
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		// Log the request
		if cfg.Logging.Format == "json" {
			logJSON(c, latency, path, query)
		} else {
			logText(c, latency, path, query)
		}
	}
}

// logJSON logs a request as a JSON-structured slog record.
func logJSON(c *gin.Context, latency time.Duration, path, query string) {
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

// logText logs a request as a human-readable slog text record.
func logText(c *gin.Context, latency time.Duration, path, query string) {
	// reuse the same structured output; slog will emit text format when the global
	// handler is a TextHandler (configured in telemetry.SetupLogger).
	logJSON(c, latency, path, query)
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-API-Key")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
