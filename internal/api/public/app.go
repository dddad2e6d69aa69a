// app.go implements the app identity endpoint. Integrators hit it after provisioning
// a key to confirm the credential works and see which app the gateway resolved.
package public

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/resolveit/resolveit/internal/middleware"
)

// @Summary      App identity
// @Description  Return the app and key the presented credential resolved to. Useful as a connectivity and credential check.
// @Tags         Public
// @Security     ApiKeyAuth
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "app and key metadata"
// @Failure      401  {object}  map[string]interface{}  "Invalid API key"
// @Router       /public/v1/app [get]
// AppIdentityHandler returns the verified app for the presented API key
// GET /public/v1/app
func AppIdentityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := middleware.GetPrincipal(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid API key",
			})
			return
		}

		app := principal.App
		key := principal.APIKey

		desc := ""
		if app.Description != nil {
			desc = *app.Description
		}

		c.JSON(http.StatusOK, gin.H{
			"app": gin.H{
				"id":              app.ID,
				"organization_id": app.OrganizationID,
				"name":            app.Name,
				"description":     desc,
				"created_at":      app.CreatedAt.Format(time.RFC3339),
			},
			"key": gin.H{
				"id":         key.ID,
				"name":       key.Name,
				"key_prefix": key.KeyPrefix,
				"expires_at": key.ExpiresAt,
			},
		})
	}
}
