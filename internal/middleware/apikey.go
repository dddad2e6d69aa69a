// apikey.go implements the public integration gateway: it extracts the API key
// credential and source address from the request, runs them through the
// verification service, and attaches the resulting principal to the context.
package middleware

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/resolveit/resolveit/internal/auth"
)

// PrincipalKey is the Gin context key holding the verified *auth.Principal
const PrincipalKey = "principal"

// APIKeyAuthMiddleware authenticates public API requests with an app API key.
// The key is read from X-API-Key, falling back to an Authorization Bearer token.
// AppInactive and IPNotWhitelisted surface as 400 with specific messages; every
// other failure is a uniform 401 so responses never reveal whether a presented
// key exists.
func APIKeyAuthMiddleware(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawKey := extractCredential(c)
		if rawKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing API key credential",
			})
			return
		}

		clientIP := ClientIPFromRequest(c)

		principal, err := verifier.Verify(c.Request.Context(), rawKey, clientIP)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrAppInactive):
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"error": "App is inactive",
				})
			case errors.Is(err, auth.ErrIPNotWhitelisted):
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"error": "IP address not whitelisted",
				})
			default:
				if !errors.Is(err, auth.ErrInvalidAPIKey) {
					slog.Error("API key verification failed", "error", err)
				}
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "Invalid API key",
				})
			}
			return
		}

		c.Set(PrincipalKey, principal)
		c.Set("app_id", principal.App.ID)
		c.Set("organization_id", principal.App.OrganizationID)
		c.Set("auth_method", "api_key")

		c.Next()
	}
}

// GetPrincipal returns the verified principal attached by APIKeyAuthMiddleware
func GetPrincipal(c *gin.Context) (*auth.Principal, bool) {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return nil, false
	}
	principal, ok := v.(*auth.Principal)
	return principal, ok
}

// extractCredential pulls the raw API key from the request.
// X-API-Key wins over the Authorization header when both are present.
func extractCredential(c *gin.Context) string {
	if key := strings.TrimSpace(c.GetHeader("X-API-Key")); key != "" {
		return key
	}

	key, err := auth.ExtractAPIKeyFromHeader(c.GetHeader("Authorization"))
	if err != nil {
		return ""
	}
	return key
}

// ClientIPFromRequest resolves the source address used for whitelist matching.
// Gin's ClientIP honours the trusted proxy configuration; the fallbacks cover
// requests arriving outside the normal proxy chain. The result is normalized
// so IPv6 loopback and IPv4-mapped forms match IPv4 whitelist entries.
func ClientIPFromRequest(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return auth.NormalizeClientIP(ip)
	}

	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
		if first != "" {
			return auth.NormalizeClientIP(first)
		}
	}

	if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil && host != "" {
		return auth.NormalizeClientIP(host)
	}

	return "unknown"
}
