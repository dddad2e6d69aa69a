// ticket_repository.go implements TicketRepository, providing database queries for the
// tickets served over the public integration API. Uses sqlx struct scanning.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/resolveit/resolveit/internal/db/models"
)

// TicketRepository handles ticket database operations
type TicketRepository struct {
	db *sqlx.DB
}

// NewTicketRepository creates a new TicketRepository
func NewTicketRepository(db *sqlx.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// Create creates a new ticket
func (r *TicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	ticket.ID = uuid.New().String()
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	if ticket.Status == "" {
		ticket.Status = models.TicketStatusOpen
	}

	query := `
		INSERT INTO tickets (id, organization_id, app_id, subject, body, status, created_at, updated_at)
		VALUES (:id, :organization_id, :app_id, :subject, :body, :status, :created_at, :updated_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, ticket)
	return err
}

// GetByIDForOrganization retrieves a ticket by ID, scoped to an organization.
// Tickets belonging to another organization are treated as not found.
func (r *TicketRepository) GetByIDForOrganization(ctx context.Context, ticketID, orgID string) (*models.Ticket, error) {
	var ticket models.Ticket
	query := `SELECT * FROM tickets WHERE id = $1 AND organization_id = $2`
	err := r.db.GetContext(ctx, &ticket, query, ticketID, orgID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// ListByOrganization retrieves tickets for an organization, newest first
func (r *TicketRepository) ListByOrganization(ctx context.Context, orgID string, limit, offset int) ([]*models.Ticket, error) {
	var tickets []*models.Ticket
	query := `
		SELECT * FROM tickets
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	err := r.db.SelectContext(ctx, &tickets, query, orgID, limit, offset)
	if tickets == nil {
		tickets = make([]*models.Ticket, 0)
	}
	return tickets, err
}

// UpdateStatus sets a ticket's status, scoped to an organization. Returns false when no row matched.
func (r *TicketRepository) UpdateStatus(ctx context.Context, ticketID, orgID, status string) (bool, error) {
	query := `
		UPDATE tickets
		SET status = $3, updated_at = $4
		WHERE id = $1 AND organization_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, ticketID, orgID, status, time.Now())
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}
