// Package admin implements the administrative HTTP handlers for ResolveIt.
// These handlers require authentication and appropriate RBAC scopes (see internal/middleware/rbac.go),
// unlike the public integration handlers in the sibling public package, which authenticate
// with app API keys instead of admin JWTs.
package admin

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/resolveit/resolveit/internal/auth"
	"github.com/resolveit/resolveit/internal/config"
	"github.com/resolveit/resolveit/internal/db/models"
	"github.com/resolveit/resolveit/internal/db/repositories"
)

// APIKeyHandlers handles app API key management endpoints
type APIKeyHandlers struct {
	cfg     *config.Config
	db      *sql.DB
	keyRepo *repositories.AppAPIKeyRepository
	appRepo *repositories.AppRepository
}

// NewAPIKeyHandlers creates a new APIKeyHandlers instance
func NewAPIKeyHandlers(cfg *config.Config, db *sql.DB) *APIKeyHandlers {
	return &APIKeyHandlers{
		cfg:     cfg,
		db:      db,
		keyRepo: repositories.NewAppAPIKeyRepository(db),
		appRepo: repositories.NewAppRepository(db),
	}
}

// CreateAPIKeyRequest represents the request to create a new API key
type CreateAPIKeyRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
	ExpiresAt   *string `json:"expires_at"` // RFC3339 format
}

// CreateAPIKeyResponse represents the response when creating an API key
type CreateAPIKeyResponse struct {
	ID          string     `json:"id"`
	AppID       string     `json:"app_id"`
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	APIKey      string     `json:"api_key"` // Only returned once during creation
	KeyPrefix   string     `json:"key_prefix"`
	ExpiresAt   *time.Time `json:"expires_at"`
	CreatedBy   *string    `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	Message     string     `json:"message"`
}

// loadApp resolves the :id path parameter to an app, writing the error response
// itself when the app cannot be served. Returns nil when the request is done.
func (h *APIKeyHandlers) loadApp(c *gin.Context) *models.App {
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

// @Summary      Create API key
// @Description  Create a new API key for an app. The full key is only returned once during creation; only a bcrypt hash and a display prefix are stored.
// @Tags         API Keys
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string               true  "App ID"
// @Param        body  body  CreateAPIKeyRequest  true  "API key creation request"
// @Success      201  {object}  CreateAPIKeyResponse  "API key created (full key returned once)"
// @Failure      400  {object}  map[string]interface{}  "Invalid request or expires_at format"
// @Failure      404  {object}  map[string]interface{}  "App not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/apps/{id}/api-keys [post]
// CreateAPIKeyHandler creates a new API key for an app
// POST /api/v1/apps/:id/api-keys
func (h *APIKeyHandlers) CreateAPIKeyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		app := h.loadApp(c)
		if app == nil {
			return
		}

		var req CreateAPIKeyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request",
			})
			return
		}

		// Parse expiration if provided
		var expiresAt *time.Time
		if req.ExpiresAt != nil {
			parsed, err := time.Parse(time.RFC3339, *req.ExpiresAt)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "Invalid expires_at format. Use RFC3339",
				})
				return
			}
			expiresAt = &parsed
		}

		fullKey, keyHash, displayPrefix, err := auth.GenerateAPIKey()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to generate API key",
			})
			return
		}

		apiKey := &models.AppAPIKey{
			AppID:       app.ID,
			Name:        req.Name,
			Description: req.Description,
			KeyHash:     keyHash,
			KeyPrefix:   displayPrefix,
			ExpiresAt:   expiresAt,
			CreatedByID: actorID(c),
		}

		if err := h.keyRepo.Create(c.Request.Context(), apiKey); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create API key",
			})
			return
		}

		// Return full key (only time it's visible)
		c.JSON(http.StatusCreated, CreateAPIKeyResponse{
			ID:          apiKey.ID,
			AppID:       apiKey.AppID,
			Name:        apiKey.Name,
			Description: apiKey.Description,
			APIKey:      fullKey, // IMPORTANT: Only returned once
			KeyPrefix:   displayPrefix,
			ExpiresAt:   apiKey.ExpiresAt,
			CreatedBy:   apiKey.CreatedByID,
			CreatedAt:   apiKey.CreatedAt,
			Message:     "Save this API key now. It cannot be retrieved again.",
		})
	}
}

// @Summary      List API keys
// @Description  List all API keys for an app. Key hashes are never included; only the display prefix identifies each key.
// @Tags         API Keys
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "App ID"
// @Success      200  {object}  map[string]interface{}  "keys: list of API key metadata"
// @Failure      404  {object}  map[string]interface{}  "App not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/apps/{id}/api-keys [get]
// ListAPIKeysHandler lists the API keys of an app
// GET /api/v1/apps/:id/api-keys
func (h *APIKeyHandlers) ListAPIKeysHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		app := h.loadApp(c)
		if app == nil {
			return
		}

		keys, err := h.keyRepo.ListByApp(c.Request.Context(), app.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list API keys",
			})
			return
		}

		// Map keys to a JSON-friendly shape (snake_case) and avoid exposing the hash
		resp := make([]gin.H, 0, len(keys))
		for _, k := range keys {
			var expiresAt interface{}
			var lastUsed interface{}

			if k.ExpiresAt != nil {
				expiresAt = k.ExpiresAt.Format(time.RFC3339)
			}
			if k.LastUsedAt != nil {
				lastUsed = k.LastUsedAt.Format(time.RFC3339)
			}

			desc := ""
			if k.Description != nil {
				desc = *k.Description
			}

			resp = append(resp, gin.H{
				"id":           k.ID,
				"app_id":       k.AppID,
				"name":         k.Name,
				"description":  desc,
				"key_prefix":   k.KeyPrefix,
				"is_active":    k.IsActive,
				"expires_at":   expiresAt,
				"last_used_at": lastUsed,
				"last_used_ip": k.LastUsedIP,
				"created_by":   k.CreatedByID,
				"created_at":   k.CreatedAt.Format(time.RFC3339),
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"keys": resp,
		})
	}
}

// @Summary      Revoke API key
// @Description  Revoke an API key by ID. The row is kept for audit purposes but the key never verifies again. A key belonging to a different app is reported as not found.
// @Tags         API Keys
// @Security     Bearer
// @Produce      json
// @Param        id     path  string  true  "App ID"
// @Param        keyId  path  string  true  "API key ID"
// @Success      200  {object}  map[string]interface{}  "Revocation confirmation"
// @Failure      404  {object}  map[string]interface{}  "App or API key not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/apps/{id}/api-keys/{keyId} [delete]
// RevokeAPIKeyHandler revokes an API key
// DELETE /api/v1/apps/:id/api-keys/:keyId
func (h *APIKeyHandlers) RevokeAPIKeyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		app := h.loadApp(c)
		if app == nil {
			return
		}

		keyID := c.Param("keyId")

		revoked, err := h.keyRepo.Revoke(c.Request.Context(), keyID, app.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to revoke API key",
			})
			return
		}

		if !revoked {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "API key not found",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "API key revoked successfully",
		})
	}
}
