// Package middleware provides Gin HTTP middleware for authentication, authorization,
// rate limiting, security headers, and audit logging.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → RateLimit → Auth → RBAC → Audit → Handler
//
// Security headers run first so they appear on all responses including errors.
// Rate limiting runs before auth to block brute-force attacks before any DB or
// bcrypt work. Auth populates the caller identity and scopes; RBAC reads from
// that context. Audit logging runs after RBAC so only successfully authorized
// mutations are recorded as successful actions.
//
// Two authentication middlewares exist: AdminAuthMiddleware (JWT sessions on the
// management surface, this file) and APIKeyAuthMiddleware (the public
// integration gateway, apikey.go).
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/resolveit/resolveit/internal/auth"
	"github.com/resolveit/resolveit/internal/db/repositories"
)

// AdminAuthMiddleware validates the admin session JWT on the management surface.
// The verified user and their scopes are attached to the Gin context for the
// RBAC and audit middlewares downstream.
func AdminAuthMiddleware(userRepo *repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing authorization header",
			})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header must start with 'Bearer '",
			})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token is empty",
			})
			return
		}

		claims, err := auth.ValidateJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired session",
			})
			return
		}

		// The token is stateless but the account state is not: a deactivated
		// or deleted user must lose access before their token expires.
		user, err := userRepo.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to load user",
			})
			return
		}

		if user == nil || !user.IsActive {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "User not found or inactive",
			})
			return
		}

		c.Set("user", user)
		c.Set("user_id", user.ID)
		c.Set("organization_id", user.OrganizationID)
		c.Set("scopes", user.Scopes)
		c.Set("auth_method", "jwt")

		c.Next()
	}
}
