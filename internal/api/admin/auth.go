// auth.go implements the admin login and identity endpoints. Login exchanges an
// email and password for a short-lived JWT; the comparison runs against a bcrypt
// hash even when the email is unknown so timing does not reveal which accounts
// exist.
package admin

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/resolveit/resolveit/internal/auth"
	"github.com/resolveit/resolveit/internal/config"
	"github.com/resolveit/resolveit/internal/db/repositories"
)

// dummyHash is a bcrypt hash of a random string, compared against when the
// email does not resolve to a user so both paths cost one bcrypt comparison.
const dummyHash = "$2a$12$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// AuthHandlers handles admin authentication endpoints
type AuthHandlers struct {
	cfg      *config.Config
	db       *sql.DB
	userRepo *repositories.UserRepository
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(cfg *config.Config, db *sql.DB) *AuthHandlers {
	return &AuthHandlers{
		cfg:      cfg,
		db:       db,
		userRepo: repositories.NewUserRepository(db),
	}
}

// LoginRequest represents the admin login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// @Summary      Admin login
// @Description  Exchange email and password for a JWT. Failed logins always return the same 401 regardless of whether the email exists.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body  LoginRequest  true  "Login credentials"
// @Success      200  {object}  map[string]interface{}  "token, expires_at, user"
// @Failure      400  {object}  map[string]interface{}  "Invalid request"
// @Failure      401  {object}  map[string]interface{}  "Invalid credentials"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/auth/login [post]
// LoginHandler authenticates an admin user and issues a JWT
// POST /api/v1/auth/login
func (h *AuthHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request",
			})
			return
		}

		user, err := h.userRepo.GetByEmail(c.Request.Context(), req.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to look up user",
			})
			return
		}

		storedHash := dummyHash
		if user != nil {
			storedHash = user.PasswordHash
		}

		if !auth.CheckPassword(req.Password, storedHash) || user == nil || !user.IsActive {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid credentials",
			})
			return
		}

		sessionDuration := h.cfg.Auth.SessionDuration
		if sessionDuration <= 0 {
			sessionDuration = 24 * time.Hour
		}

		token, err := auth.GenerateJWT(user.ID, user.Email, user.OrganizationID, user.Scopes, sessionDuration)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to generate token",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":      token,
			"expires_at": time.Now().Add(sessionDuration).UTC().Format(time.RFC3339),
			"user":       userResponse(user),
		})
	}
}

// @Summary      Current user
// @Description  Return the authenticated admin user, as loaded from the database for this request.
// @Tags         Auth
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "user: current user"
// @Failure      401  {object}  map[string]interface{}  "Not authenticated"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/auth/me [get]
// MeHandler returns the authenticated user
// GET /api/v1/auth/me
func (h *AuthHandlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userIDVal, exists := c.Get("user_id")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "User not authenticated",
			})
			return
		}

		userID, _ := userIDVal.(string)

		// Re-read rather than trusting the cached context value so the response
		// reflects scope or profile changes made during this session.
		user, err := h.userRepo.GetByID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve user",
			})
			return
		}

		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "User not found",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"user": userResponse(user),
		})
	}
}
