// users.go implements handlers for admin user account CRUD operations including listing,
// creating, updating, and deleting users.
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

// UserHandlers handles user management endpoints
type UserHandlers struct {
	cfg      *config.Config
	db       *sql.DB
	userRepo *repositories.UserRepository
	orgRepo  *repositories.OrganizationRepository
}

// NewUserHandlers creates a new UserHandlers instance
func NewUserHandlers(cfg *config.Config, db *sql.DB) *UserHandlers {
	return &UserHandlers{
		cfg:      cfg,
		db:       db,
		userRepo: repositories.NewUserRepository(db),
		orgRepo:  repositories.NewOrganizationRepository(db),
	}
}

// CreateUserRequest represents the request to create an admin user
type CreateUserRequest struct {
	Email          string   `json:"email" binding:"required,email"`
	Name           string   `json:"name" binding:"required"`
	Password       string   `json:"password" binding:"required,min=12"`
	OrganizationID string   `json:"organization_id" binding:"required"`
	Scopes         []string `json:"scopes"`
}

// userResponse maps a user to a JSON-friendly shape (snake_case).
// The password hash never leaves the handler layer.
func userResponse(user *models.User) gin.H {
	return gin.H{
		"id":              user.ID,
		"organization_id": user.OrganizationID,
		"email":           user.Email,
		"name":            user.Name,
		"scopes":          user.Scopes,
		"is_active":       user.IsActive,
		"created_at":      user.CreatedAt.Format(time.RFC3339),
		"updated_at":      user.UpdatedAt.Format(time.RFC3339),
	}
}

// @Summary      List users
// @Description  List admin users in an organization. Defaults to the caller's organization when organization_id is not given. Requires users:read scope.
// @Tags         Users
// @Security     Bearer
// @Produce      json
// @Param        organization_id  query  string  false  "Organization ID (defaults to caller's organization)"
// @Success      200  {object}  map[string]interface{}  "users: list of users"
// @Failure      400  {object}  map[string]interface{}  "No organization to list"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/users [get]
// ListUsersHandler lists admin users for an organization
// GET /api/v1/users?organization_id=...
func (h *UserHandlers) ListUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.Query("organization_id")
		if orgID == "" {
			if v, ok := c.Get("organization_id"); ok {
				orgID, _ = v.(string)
			}
		}

		if orgID == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "organization_id is required",
			})
			return
		}

		users, err := h.userRepo.ListByOrganization(c.Request.Context(), orgID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list users",
			})
			return
		}

		resp := make([]gin.H, 0, len(users))
		for _, user := range users {
			resp = append(resp, userResponse(user))
		}

		c.JSON(http.StatusOK, gin.H{
			"users": resp,
		})
	}
}

// @Summary      Get user
// @Description  Get an admin user by ID. Requires users:read scope.
// @Tags         Users
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "User ID"
// @Success      200  {object}  map[string]interface{}  "user: user details"
// @Failure      404  {object}  map[string]interface{}  "User not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/users/{id} [get]
// GetUserHandler retrieves a specific user by ID
// GET /api/v1/users/:id
func (h *UserHandlers) GetUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("id")

		user, err := h.userRepo.GetByID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve user",
			})
			return
		}

		if user == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "User not found",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"user": userResponse(user),
		})
	}
}

// @Summary      Create user
// @Description  Create a new admin user. Scopes default to read-only when omitted. Requires users:write scope.
// @Tags         Users
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  CreateUserRequest  true  "User creation request"
// @Success      201  {object}  map[string]interface{}  "user: created user"
// @Failure      400  {object}  map[string]interface{}  "Invalid request, scopes, or unknown organization"
// @Failure      409  {object}  map[string]interface{}  "Email already registered"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/users [post]
// CreateUserHandler creates a new admin user
// POST /api/v1/users
func (h *UserHandlers) CreateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request",
			})
			return
		}

		scopes := req.Scopes
		if len(scopes) == 0 {
			scopes = auth.GetDefaultScopes()
		}
		if err := auth.ValidateScopes(scopes); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid scopes: " + err.Error(),
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

		existing, err := h.userRepo.GetByEmail(c.Request.Context(), req.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to check existing user",
			})
			return
		}
		if existing != nil {
			c.JSON(http.StatusConflict, gin.H{
				"error": "Email already registered",
			})
			return
		}

		passwordHash, err := auth.HashPassword(req.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to hash password",
			})
			return
		}

		user := &models.User{
			OrganizationID: req.OrganizationID,
			Email:          req.Email,
			Name:           req.Name,
			PasswordHash:   passwordHash,
			Scopes:         scopes,
			IsActive:       true,
		}

		if err := h.userRepo.Create(c.Request.Context(), user); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create user",
			})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"user": userResponse(user),
		})
	}
}

// @Summary      Update user
// @Description  Update a user's name, scopes, password, or active state. Scope changes take effect on the user's next request. Requires users:write scope.
// @Tags         Users
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string  true  "User ID"
// @Param        body  body  object  true  "Update request with optional name, scopes, password, and is_active fields"
// @Success      200  {object}  map[string]interface{}  "user: updated user"
// @Failure      400  {object}  map[string]interface{}  "Invalid request or scopes"
// @Failure      404  {object}  map[string]interface{}  "User not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/users/{id} [put]
// UpdateUserHandler updates an admin user
// PUT /api/v1/users/:id
func (h *UserHandlers) UpdateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("id")

		var req struct {
			Name     *string  `json:"name"`
			Scopes   []string `json:"scopes"`
			Password *string  `json:"password"`
			IsActive *bool    `json:"is_active"`
		}

		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request",
			})
			return
		}

		user, err := h.userRepo.GetByID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve user",
			})
			return
		}

		if user == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "User not found",
			})
			return
		}

		if req.Name != nil {
			user.Name = *req.Name
		}
		if req.Scopes != nil {
			if err := auth.ValidateScopes(req.Scopes); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "Invalid scopes: " + err.Error(),
				})
				return
			}
			user.Scopes = req.Scopes
		}
		if req.Password != nil {
			if len(*req.Password) < 12 {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "Password must be at least 12 characters",
				})
				return
			}
			passwordHash, err := auth.HashPassword(*req.Password)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Failed to hash password",
				})
				return
			}
			user.PasswordHash = passwordHash
		}
		if req.IsActive != nil {
			user.IsActive = *req.IsActive
		}

		if err := h.userRepo.Update(c.Request.Context(), user); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to update user",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"user": userResponse(user),
		})
	}
}

// @Summary      Delete user
// @Description  Delete an admin user. Requires users:write scope.
// @Tags         Users
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "User ID"
// @Success      200  {object}  map[string]interface{}  "Deletion confirmation"
// @Failure      404  {object}  map[string]interface{}  "User not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/users/{id} [delete]
// DeleteUserHandler deletes an admin user
// DELETE /api/v1/users/:id
func (h *UserHandlers) DeleteUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("id")

		user, err := h.userRepo.GetByID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve user",
			})
			return
		}

		if user == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "User not found",
			})
			return
		}

		if err := h.userRepo.Delete(c.Request.Context(), userID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to delete user",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "User deleted successfully",
		})
	}
}
