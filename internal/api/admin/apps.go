// apps.go implements handlers for integration app CRUD operations. Apps are the unit of
// access on the public API: each owns API keys and an IP whitelist, and deactivating an
// app immediately blocks every key it owns.
package admin

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/resolveit/resolveit/internal/config"
	"github.com/resolveit/resolveit/internal/db/models"
	"github.com/resolveit/resolveit/internal/db/repositories"
)

// AppHandlers handles app management endpoints
type AppHandlers struct {
	cfg     *config.Config
	db      *sql.DB
	appRepo *repositories.AppRepository
	orgRepo *repositories.OrganizationRepository
}

// NewAppHandlers creates a new AppHandlers instance
func NewAppHandlers(cfg *config.Config, db *sql.DB) *AppHandlers {
	return &AppHandlers{
		cfg:     cfg,
		db:      db,
		appRepo: repositories.NewAppRepository(db),
		orgRepo: repositories.NewOrganizationRepository(db),
	}
}

// CreateAppRequest represents the request to register a new app
type CreateAppRequest struct {
	Name           string  `json:"name" binding:"required"`
	OrganizationID string  `json:"organization_id" binding:"required"`
	Description    *string `json:"description"`
}

// actorID returns the authenticated admin's user ID for attribution columns,
// or nil when the context carries none.
func actorID(c *gin.Context) *string {
	if id := c.GetString("user_id"); id != "" {
		return &id
	}
	return nil
}

// appResponse maps an app to a JSON-friendly shape (snake_case)
func appResponse(app *models.App) gin.H {
	desc := ""
	if app.Description != nil {
		desc = *app.Description
	}

	return gin.H{
		"id":              app.ID,
		"organization_id": app.OrganizationID,
		"name":            app.Name,
		"description":     desc,
		"is_active":       app.IsActive,
		"created_by":      app.CreatedBy,
		"updated_by":      app.UpdatedBy,
		"created_at":      app.CreatedAt.Format(time.RFC3339),
		"updated_at":      app.UpdatedAt.Format(time.RFC3339),
	}
}

// @Summary      List apps
// @Description  Get a paginated list of registered apps, optionally filtered by organization.
// @Tags         Apps
// @Security     Bearer
// @Produce      json
// @Param        organization_id  query  string  false  "Filter by organization ID"
// @Param        page             query  int     false  "Page number (default 1)"
// @Param        per_page         query  int     false  "Items per page, max 100 (default 20)"
// @Success      200  {object}  map[string]interface{}  "apps: list, pagination: {page, per_page, total}"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/apps [get]
// ListAppsHandler lists registered apps with pagination
// GET /api/v1/apps?page=1&per_page=20
func (h *AppHandlers) ListAppsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Organization filter short-circuits pagination: org app counts are small
		if orgID := c.Query("organization_id"); orgID != "" {
			apps, err := h.appRepo.ListByOrganization(c.Request.Context(), orgID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Failed to list apps",
				})
				return
			}

			resp := make([]gin.H, 0, len(apps))
			for _, app := range apps {
				resp = append(resp, appResponse(app))
			}

			c.JSON(http.StatusOK, gin.H{
				"apps": resp,
			})
			return
		}

		// Parse pagination parameters
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

		if page < 1 {
			page = 1
		}
		if perPage < 1 || perPage > 100 {
			perPage = 20
		}

		offset := (page - 1) * perPage

		apps, err := h.appRepo.List(c.Request.Context(), perPage, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list apps",
			})
			return
		}

		total, err := h.appRepo.Count(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to count apps",
			})
			return
		}

		resp := make([]gin.H, 0, len(apps))
		for _, app := range apps {
			resp = append(resp, appResponse(app))
		}

		c.JSON(http.StatusOK, gin.H{
			"apps": resp,
			"pagination": gin.H{
				"page":     page,
				"per_page": perPage,
				"total":    total,
			},
		})
	}
}

// @Summary      Get app
// @Description  Get a registered app by ID.
// @Tags         Apps
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "App ID"
// @Success      200  {object}  map[string]interface{}  "app: app details"
// @Failure      404  {object}  map[string]interface{}  "App not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/apps/{id} [get]
// GetAppHandler retrieves a specific app by ID
// GET /api/v1/apps/:id
func (h *AppHandlers) GetAppHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		appID := c.Param("id")

		app, err := h.appRepo.GetByID(c.Request.Context(), appID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve app",
			})
			return
		}

		if app == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "App not found",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"app": appResponse(app),
		})
	}
}

// @Summary      Create app
// @Description  Register a new app under an organization. New apps start active with no API keys and an empty whitelist.
// @Tags         Apps
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  CreateAppRequest  true  "App registration request"
// @Success      201  {object}  map[string]interface{}  "app: created app"
// @Failure      400  {object}  map[string]interface{}  "Invalid request or unknown organization"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/apps [post]
// CreateAppHandler registers a new app
// POST /api/v1/apps
func (h *AppHandlers) CreateAppHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateAppRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request",
			})
			return
		}

		org, err := h.orgRepo.GetByID(c.Request.Context(), req.OrganizationID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve organization",
			})
			return
		}
		if org == nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Organization not found",
			})
			return
		}

		actor := actorID(c)
		app := &models.App{
			OrganizationID: req.OrganizationID,
			Name:           req.Name,
			Description:    req.Description,
			IsActive:       true,
			CreatedBy:      actor,
			UpdatedBy:      actor,
		}

		if err := h.appRepo.Create(c.Request.Context(), app); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create app",
			})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"app": appResponse(app),
		})
	}
}

// @Summary      Update app
// @Description  Update an app's name, description, or active state. Setting is_active=false blocks all of the app's keys on the next request.
// @Tags         Apps
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string  true  "App ID"
// @Param        body  body  object  true  "Update request with optional name, description, and is_active fields"
// @Success      200  {object}  map[string]interface{}  "app: updated app"
// @Failure      400  {object}  map[string]interface{}  "Invalid request"
// @Failure      404  {object}  map[string]interface{}  "App not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/apps/{id} [put]
// UpdateAppHandler updates an app
// PUT /api/v1/apps/:id
func (h *AppHandlers) UpdateAppHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		appID := c.Param("id")

		var req struct {
			Name        *string `json:"name"`
			Description *string `json:"description"`
			IsActive    *bool   `json:"is_active"`
		}

		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request",
			})
			return
		}

		app, err := h.appRepo.GetByID(c.Request.Context(), appID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve app",
			})
			return
		}

		if app == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "App not found",
			})
			return
		}

		if req.Name != nil {
			app.Name = *req.Name
		}
		if req.Description != nil {
			app.Description = req.Description
		}
		if req.IsActive != nil {
			app.IsActive = *req.IsActive
		}
		app.UpdatedBy = actorID(c)

		if err := h.appRepo.Update(c.Request.Context(), app); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to update app",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"app": appResponse(app),
		})
	}
}

// @Summary      Delete app
// @Description  Delete an app. API keys and whitelist entries are removed with it (ON DELETE CASCADE).
// @Tags         Apps
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "App ID"
// @Success      200  {object}  map[string]interface{}  "Deletion confirmation"
// @Failure      404  {object}  map[string]interface{}  "App not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/apps/{id} [delete]
// DeleteAppHandler deletes an app
// DELETE /api/v1/apps/:id
func (h *AppHandlers) DeleteAppHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		appID := c.Param("id")

		app, err := h.appRepo.GetByID(c.Request.Context(), appID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve app",
			})
			return
		}

		if app == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "App not found",
			})
			return
		}

		if err := h.appRepo.Delete(c.Request.Context(), appID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to delete app",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "App deleted successfully",
		})
	}
}
