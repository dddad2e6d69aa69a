// whitelist.go implements handlers for per-app IP whitelist management. Entries are
// validated on the way in (exact IP or IPv4 CIDR); the verification path is deliberately
// lenient and skips anything malformed, so validation here is the only gate.
package admin

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/resolveit/resolveit/internal/auth"
	"github.com/resolveit/resolveit/internal/config"
	"github.com/resolveit/resolveit/internal/db/models"
	"github.com/resolveit/resolveit/internal/db/repositories"
)

// WhitelistHandlers handles app IP whitelist management endpoints
type WhitelistHandlers struct {
	cfg           *config.Config
	db            *sql.DB
	whitelistRepo *repositories.IPWhitelistRepository
	appRepo       *repositories.AppRepository
}

// NewWhitelistHandlers creates a new WhitelistHandlers instance
func NewWhitelistHandlers(cfg *config.Config, db *sql.DB) *WhitelistHandlers {
	return &WhitelistHandlers{
		cfg:           cfg,
		db:            db,
		whitelistRepo: repositories.NewIPWhitelistRepository(db),
		appRepo:       repositories.NewAppRepository(db),
	}
}

// CreateWhitelistEntryRequest represents the request to add a whitelist entry
type CreateWhitelistEntryRequest struct {
	IPAddress   string  `json:"ip_address" binding:"required"`
	Description *string `json:"description"`
}

// whitelistEntryResponse maps an entry to a JSON-friendly shape (snake_case)
func whitelistEntryResponse(entry *models.AppIPWhitelistEntry) gin.H {
	desc := ""
	if entry.Description != nil {
		desc = *entry.Description
	}

	return gin.H{
		"id":          entry.ID,
		"app_id":      entry.AppID,
		"ip_address":  entry.IPAddress,
		"description": desc,
		"is_active":   entry.IsActive,
		"created_by":  entry.CreatedByID,
		"created_at":  entry.CreatedAt.Format(time.RFC3339),
		"updated_at":  entry.UpdatedAt.Format(time.RFC3339),
	}
}

// loadApp resolves the :id path parameter to an app, writing the error response
// itself when the app cannot be served. Returns nil when the request is done.
func (h *WhitelistHandlers) loadApp(c *gin.Context) *models.App {
	appID := c.Param("id")

	app, err := h.appRepo.GetByID(c.Request.Context(), appID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve app",
		})
		return nil
	}

	if app == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "App not found",
		})
		return nil
	}

	return app
}

// @Summary      List whitelist entries
// @Description  List all IP whitelist entries for an app, including inactive ones. An app with zero active entries accepts requests from any address.
// @Tags         IP Whitelist
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "App ID"
// @Success      200  {object}  map[string]interface{}  "entries: list of whitelist entries"
// @Failure      404  {object}  map[string]interface{}  "App not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/apps/{id}/ip-whitelist [get]
// ListWhitelistHandler lists the whitelist entries of an app
// GET /api/v1/apps/:id/ip-whitelist
func (h *WhitelistHandlers) ListWhitelistHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		app := h.loadApp(c)
		if app == nil {
			return
		}

		entries, err := h.whitelistRepo.ListByApp(c.Request.Context(), app.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list whitelist entries",
			})
			return
		}

		resp := make([]gin.H, 0, len(entries))
		for _, entry := range entries {
			resp = append(resp, whitelistEntryResponse(entry))
		}

		c.JSON(http.StatusOK, gin.H{
			"entries": resp,
		})
	}
}

// @Summary      Add whitelist entry
// @Description  Add an IP or IPv4 CIDR entry to an app's whitelist. The entry must parse as an exact IP address or a CIDR block; duplicates within an app are rejected.
// @Tags         IP Whitelist
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                       true  "App ID"
// @Param        body  body  CreateWhitelistEntryRequest  true  "Whitelist entry"
// @Success      201  {object}  map[string]interface{}  "entry: created entry"
// @Failure      400  {object}  map[string]interface{}  "Invalid request or malformed IP/CIDR"
// @Failure      404  {object}  map[string]interface{}  "App not found"
// @Failure      409  {object}  map[string]interface{}  "Entry already exists for this app"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/apps/{id}/ip-whitelist [post]
// CreateWhitelistEntryHandler adds a whitelist entry to an app
// POST /api/v1/apps/:id/ip-whitelist
func (h *WhitelistHandlers) CreateWhitelistEntryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		app := h.loadApp(c)
		if app == nil {
			return
		}

		var req CreateWhitelistEntryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request",
			})
			return
		}

		// Store the canonical form so the unique constraint catches duplicates
		// regardless of surrounding whitespace.
		ipAddress := strings.TrimSpace(req.IPAddress)
		if err := auth.ValidateWhitelistEntry(ipAddress); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid whitelist entry: " + err.Error(),
			})
			return
		}

		entry := &models.AppIPWhitelistEntry{
			AppID:       app.ID,
			IPAddress:   ipAddress,
			Description: req.Description,
			IsActive:    true,
			CreatedByID: actorID(c),
		}

		if err := h.whitelistRepo.Create(c.Request.Context(), entry); err != nil {
			if errors.Is(err, repositories.ErrDuplicateEntry) {
				c.JSON(http.StatusConflict, gin.H{
					"error": "Whitelist entry already exists for this app",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create whitelist entry",
			})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"entry": whitelistEntryResponse(entry),
		})
	}
}

// @Summary      Update whitelist entry
// @Description  Update a whitelist entry's address, description, or active state. An entry belonging to a different app is reported as not found.
// @Tags         IP Whitelist
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id       path  string  true  "App ID"
// @Param        entryId  path  string  true  "Whitelist entry ID"
// @Param        body     body  object  true  "Update request with optional ip_address, description, and is_active fields"
// @Success      200  {object}  map[string]interface{}  "entry: updated entry"
// @Failure      400  {object}  map[string]interface{}  "Invalid request or malformed IP/CIDR"
// @Failure      404  {object}  map[string]interface{}  "App or entry not found"
// @Failure      409  {object}  map[string]interface{}  "Entry already exists for this app"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/apps/{id}/ip-whitelist/{entryId} [put]
// UpdateWhitelistEntryHandler updates a whitelist entry
// PUT /api/v1/apps/:id/ip-whitelist/:entryId
func (h *WhitelistHandlers) UpdateWhitelistEntryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		app := h.loadApp(c)
		if app == nil {
			return
		}

		entryID := c.Param("entryId")

		var req struct {
			IPAddress   *string `json:"ip_address"`
			Description *string `json:"description"`
			IsActive    *bool   `json:"is_active"`
		}

		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request",
			})
			return
		}

		entry, err := h.whitelistRepo.GetByIDForApp(c.Request.Context(), entryID, app.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve whitelist entry",
			})
			return
		}

		if entry == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Whitelist entry not found",
			})
			return
		}

		if req.IPAddress != nil {
			ipAddress := strings.TrimSpace(*req.IPAddress)
			if err := auth.ValidateWhitelistEntry(ipAddress); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "Invalid whitelist entry: " + err.Error(),
				})
				return
			}
			entry.IPAddress = ipAddress
		}
		if req.Description != nil {
			entry.Description = req.Description
		}
		if req.IsActive != nil {
			entry.IsActive = *req.IsActive
		}

		updated, err := h.whitelistRepo.Update(c.Request.Context(), entry)
		if err != nil {
			if errors.Is(err, repositories.ErrDuplicateEntry) {
				c.JSON(http.StatusConflict, gin.H{
					"error": "Whitelist entry already exists for this app",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to update whitelist entry",
			})
			return
		}

		if !updated {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Whitelist entry not found",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"entry": whitelistEntryResponse(entry),
		})
	}
}

// @Summary      Remove whitelist entry
// @Description  Remove a whitelist entry. Removing the last active entry reopens the app to all addresses.
// @Tags         IP Whitelist
// @Security     Bearer
// @Produce      json
// @Param        id       path  string  true  "App ID"
// @Param        entryId  path  string  true  "Whitelist entry ID"
// @Success      200  {object}  map[string]interface{}  "Deletion confirmation"
// @Failure      404  {object}  map[string]interface{}  "App or entry not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/apps/{id}/ip-whitelist/{entryId} [delete]
// DeleteWhitelistEntryHandler removes a whitelist entry
// DELETE /api/v1/apps/:id/ip-whitelist/:entryId
func (h *WhitelistHandlers) DeleteWhitelistEntryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		app := h.loadApp(c)
		if app == nil {
			return
		}

		entryID := c.Param("entryId")

		deleted, err := h.whitelistRepo.Delete(c.Request.Context(), entryID, app.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to delete whitelist entry",
			})
			return
		}

		if !deleted {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Whitelist entry not found",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Whitelist entry deleted successfully",
		})
	}
}
