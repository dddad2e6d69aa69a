// Package models - organization.go defines the Organization model representing a tenant
// that owns apps, users, and tickets.
package models

import "time"

// Organization represents a customer organization
type Organization struct {
	ID          string
	Name        string // URL-safe name
	DisplayName string // Human-readable display name
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
