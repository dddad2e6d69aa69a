// Package models - ticket.go defines the Ticket model served over the public
// integration API. Tickets are scoped to the organization of the calling app.
package models

import "time"

// Ticket statuses
const (
	TicketStatusOpen   = "open"
	TicketStatusClosed = "closed"
)

// Ticket represents a support ticket reachable through the public API
type Ticket struct {
	ID             string     `db:"id" json:"id"`
	OrganizationID string     `db:"organization_id" json:"organization_id"`
	AppID          *string    `db:"app_id" json:"app_id,omitempty"` // App that created the ticket, if any
	Subject        string     `db:"subject" json:"subject"`
	Body           string     `db:"body" json:"body"`
	Status         string     `db:"status" json:"status"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
