// audit.go provides Gin middleware that records authenticated write operations on the
// management surface to the audit log.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/resolveit/resolveit/internal/config"
	"github.com/resolveit/resolveit/internal/db/models"
	"github.com/resolveit/resolveit/internal/db/repositories"
	"github.com/resolveit/resolveit/internal/safego"
)

// AuditMiddleware logs authenticated actions to the database.
// Default behavior (nil config): only successful write operations are recorded.
func AuditMiddleware(auditRepo *repositories.AuditRepository, auditCfg *config.AuditConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Process request first
		c.Next()

		// Skip OPTIONS always
		if c.Request.Method == "OPTIONS" {
			return
		}

		logReadOps := auditCfg != nil && auditCfg.LogReadOperations
		logFailedReqs := auditCfg != nil && auditCfg.LogFailedRequests

		isReadOp := c.Request.Method == "GET"
		isFailed := c.Writer.Status() >= 400

		if isReadOp && !logReadOps {
			return
		}
		if isFailed && !logFailedReqs {
			return
		}

		userID, _ := c.Get("user_id")
		orgID, _ := c.Get("organization_id")
		authMethod, _ := c.Get("auth_method")

		action := fmt.Sprintf("%s %s", c.Request.Method, c.Request.URL.Path)
		ipAddress := c.ClientIP()

		auditLog := &models.AuditLog{
			Action:    action,
			IPAddress: &ipAddress,
			CreatedAt: time.Now(),
		}

		if uid, ok := userID.(string); ok && uid != "" {
			auditLog.UserID = &uid
		}
		if oid, ok := orgID.(string); ok && oid != "" {
			auditLog.OrganizationID = &oid
		}

		if rt := resourceTypeFromPath(c.Request.URL.Path); rt != "" {
			auditLog.ResourceType = &rt
		}

		metadata := map[string]interface{}{
			"status_code": c.Writer.Status(),
		}
		if am, ok := authMethod.(string); ok {
			metadata["auth_method"] = am
		}
		auditLog.Metadata = metadata

		// Async log creation (non-blocking)
		safego.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := auditRepo.CreateAuditLog(ctx, auditLog); err != nil {
				slog.Error("failed to create audit log", "action", auditLog.Action, "error", err)
			}
		})
	}
}

// resourceTypeFromPath maps a management URL to the audited resource type.
// The most specific segment wins: /apps/:id/api-keys is an api_key action, not an app action.
func resourceTypeFromPath(path string) string {
	switch {
	case strings.Contains(path, "/api-keys"):
		return "api_key"
	case strings.Contains(path, "/ip-whitelist"):
		return "ip_whitelist"
	case strings.Contains(path, "/apps"):
		return "app"
	case strings.Contains(path, "/users"):
		return "user"
	case strings.Contains(path, "/organizations"):
		return "organization"
	case strings.Contains(path, "/tickets"):
		return "ticket"
	default:
		return ""
	}
}
