// audit.go implements read handlers for the audit trail.
package admin

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/resolveit/resolveit/internal/db/models"
	"github.com/resolveit/resolveit/internal/db/repositories"
)

// AuditHandlers handles audit log read endpoints
type AuditHandlers struct {
	db        *sql.DB
	auditRepo *repositories.AuditRepository
}

// NewAuditHandlers creates a new AuditHandlers instance
func NewAuditHandlers(db *sql.DB) *AuditHandlers {
	return &AuditHandlers{
		db:        db,
		auditRepo: repositories.NewAuditRepository(db),
	}
}

// auditLogResponse maps an audit log entry to a JSON-friendly shape (snake_case)
func auditLogResponse(log *models.AuditLog) gin.H {
	return gin.H{
		"id":              log.ID,
		"user_id":         log.UserID,
		"organization_id": log.OrganizationID,
		"action":          log.Action,
		"resource_type":   log.ResourceType,
		"resource_id":     log.ResourceID,
		"metadata":        log.Metadata,
		"ip_address":      log.IPAddress,
		"created_at":      log.CreatedAt.Format(time.RFC3339),
	}
}

// @Summary      List audit logs
// @Description  Get a paginated list of audit log entries with optional filters. Requires admin scope.
// @Tags         Audit
// @Security     Bearer
// @Produce      json
// @Param        page           query  int     false  "Page number (default 1)"
// @Param        per_page       query  int     false  "Items per page, max 100 (default 20)"
// @Param        user_id        query  string  false  "Filter by acting user ID"
// @Param        organization_id query string  false  "Filter by organization ID"
// @Param        action         query  string  false  "Filter by action (e.g. POST /api/v1/apps)"
// @Param        resource_type  query  string  false  "Filter by resource type"
// @Param        start_date     query  string  false  "Entries at or after this RFC3339 timestamp"
// @Param        end_date       query  string  false  "Entries at or before this RFC3339 timestamp"
// @Success      200  {object}  map[string]interface{}  "audit_logs: list, pagination: {page, per_page, total}"
// @Failure      400  {object}  map[string]interface{}  "Invalid date filter"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/audit-logs [get]
// ListAuditLogsHandler lists audit log entries with filters and pagination
// GET /api/v1/audit-logs?page=1&per_page=20&user_id=...&action=...
func (h *AuditHandlers) ListAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

		if page < 1 {
			page = 1
		}
		if perPage < 1 || perPage > 100 {
			perPage = 20
		}

		offset := (page - 1) * perPage

		var filters repositories.AuditFilters
		if v := c.Query("user_id"); v != "" {
			filters.UserID = &v
		}
		if v := c.Query("organization_id"); v != "" {
			filters.OrganizationID = &v
		}
		if v := c.Query("action"); v != "" {
			filters.Action = &v
		}
		if v := c.Query("resource_type"); v != "" {
			filters.ResourceType = &v
		}
		if v := c.Query("start_date"); v != "" {
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "Invalid start_date, must be RFC3339",
				})
				return
			}
			filters.StartDate = &ts
		}
		if v := c.Query("end_date"); v != "" {
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "Invalid end_date, must be RFC3339",
				})
				return
			}
			filters.EndDate = &ts
		}

		logs, total, err := h.auditRepo.ListAuditLogs(c.Request.Context(), filters, perPage, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list audit logs",
			})
			return
		}

		resp := make([]gin.H, 0, len(logs))
		for _, log := range logs {
			resp = append(resp, auditLogResponse(log))
		}

		c.JSON(http.StatusOK, gin.H{
			"audit_logs": resp,
			"pagination": gin.H{
				"page":     page,
				"per_page": perPage,
				"total":    total,
			},
		})
	}
}

// @Summary      Get audit log entry
// @Description  Get a single audit log entry by ID. Requires admin scope.
// @Tags         Audit
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Audit log entry ID"
// @Success      200  {object}  map[string]interface{}  "audit_log: entry details"
// @Failure      404  {object}  map[string]interface{}  "Audit log entry not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/audit-logs/{id} [get]
// GetAuditLogHandler retrieves a single audit log entry by ID
// GET /api/v1/audit-logs/:id
func (h *AuditHandlers) GetAuditLogHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logID := c.Param("id")

		log, err := h.auditRepo.GetAuditLog(c.Request.Context(), logID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve audit log",
			})
			return
		}

		if log == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Audit log entry not found",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"audit_log": auditLogResponse(log),
		})
	}
}
