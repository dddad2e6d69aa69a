// Package public implements the handlers behind the API-key-authenticated
// integration surface (/public/v1). Every handler runs after
// middleware.APIKeyAuthMiddleware, so a verified principal is always on the
// context; data access is scoped to the principal's organization.
package public

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/resolveit/resolveit/internal/db/models"
	"github.com/resolveit/resolveit/internal/db/repositories"
	"github.com/resolveit/resolveit/internal/middleware"
)

// TicketHandlers serves tickets to integrating apps
type TicketHandlers struct {
	ticketRepo *repositories.TicketRepository
}

// NewTicketHandlers creates a new TicketHandlers instance
func NewTicketHandlers(db *sqlx.DB) *TicketHandlers {
	return &TicketHandlers{
		ticketRepo: repositories.NewTicketRepository(db),
	}
}

// CreateTicketRequest represents the request to open a ticket
type CreateTicketRequest struct {
	Subject string `json:"subject" binding:"required"`
	Body    string `json:"body" binding:"required"`
}

// @Summary      List tickets
// @Description  List tickets belonging to the calling app's organization, newest first.
// @Tags         Public
// @Security     ApiKeyAuth
// @Produce      json
// @Param        page      query  int  false  "Page number (default 1)"
// @Param        per_page  query  int  false  "Items per page, max 100 (default 20)"
// @Success      200  {object}  map[string]interface{}  "tickets: list"
// @Failure      401  {object}  map[string]interface{}  "Invalid API key"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /public/v1/tickets [get]
// ListTicketsHandler lists the organization's tickets
// GET /public/v1/tickets
func (h *TicketHandlers) ListTicketsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := middleware.GetPrincipal(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid API key",
			})
			return
		}

		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

		if page < 1 {
			page = 1
		}
		if perPage < 1 || perPage > 100 {
			perPage = 20
		}

		offset := (page - 1) * perPage

		tickets, err := h.ticketRepo.ListByOrganization(c.Request.Context(), principal.App.OrganizationID, perPage, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list tickets",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"tickets": tickets,
			"pagination": gin.H{
				"page":     page,
				"per_page": perPage,
			},
		})
	}
}

// @Summary      Get ticket
// @Description  Get one ticket by ID. Tickets of other organizations are reported as not found.
// @Tags         Public
// @Security     ApiKeyAuth
// @Produce      json
// @Param        id  path  string  true  "Ticket ID"
// @Success      200  {object}  map[string]interface{}  "ticket: ticket details"
// @Failure      401  {object}  map[string]interface{}  "Invalid API key"
// @Failure      404  {object}  map[string]interface{}  "Ticket not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /public/v1/tickets/{id} [get]
// GetTicketHandler retrieves one ticket
// GET /public/v1/tickets/:id
func (h *TicketHandlers) GetTicketHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := middleware.GetPrincipal(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid API key",
			})
			return
		}

		ticket, err := h.ticketRepo.GetByIDForOrganization(c.Request.Context(), c.Param("id"), principal.App.OrganizationID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve ticket",
			})
			return
		}

		if ticket == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Ticket not found",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"ticket": ticket,
		})
	}
}

// @Summary      Create ticket
// @Description  Open a new ticket in the calling app's organization. The ticket records which app created it.
// @Tags         Public
// @Security     ApiKeyAuth
// @Accept       json
// @Produce      json
// @Param        body  body  CreateTicketRequest  true  "Ticket contents"
// @Success      201  {object}  map[string]interface{}  "ticket: created ticket"
// @Failure      400  {object}  map[string]interface{}  "Invalid request"
// @Failure      401  {object}  map[string]interface{}  "Invalid API key"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /public/v1/tickets [post]
// CreateTicketHandler opens a new ticket
// POST /public/v1/tickets
func (h *TicketHandlers) CreateTicketHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := middleware.GetPrincipal(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid API key",
			})
			return
		}

		var req CreateTicketRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request",
			})
			return
		}

		appID := principal.App.ID
		ticket := &models.Ticket{
			OrganizationID: principal.App.OrganizationID,
			AppID:          &appID,
			Subject:        req.Subject,
			Body:           req.Body,
			Status:         models.TicketStatusOpen,
		}

		if err := h.ticketRepo.Create(c.Request.Context(), ticket); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create ticket",
			})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"ticket": ticket,
		})
	}
}

// @Summary      Close ticket
// @Description  Mark a ticket closed. Tickets of other organizations are reported as not found.
// @Tags         Public
// @Security     ApiKeyAuth
// @Produce      json
// @Param        id  path  string  true  "Ticket ID"
// @Success      200  {object}  map[string]interface{}  "Close confirmation"
// @Failure      401  {object}  map[string]interface{}  "Invalid API key"
// @Failure      404  {object}  map[string]interface{}  "Ticket not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /public/v1/tickets/{id}/close [post]
// CloseTicketHandler closes a ticket
// POST /public/v1/tickets/:id/close
func (h *TicketHandlers) CloseTicketHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := middleware.GetPrincipal(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid API key",
			})
			return
		}

		closed, err := h.ticketRepo.UpdateStatus(c.Request.Context(), c.Param("id"), principal.App.OrganizationID, models.TicketStatusClosed)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to close ticket",
			})
			return
		}

		if !closed {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Ticket not found",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Ticket closed successfully",
		})
	}
}
