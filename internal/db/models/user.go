// Package models - user.go defines the User model for admin accounts on the
// management surface, with a bcrypt password hash and a JSONB scope list.
package models

import "time"

// User represents an admin user in the system
type User struct {
	ID             string
	OrganizationID string
	Email          string
	Name           string
	PasswordHash   string   // Bcrypt hash; never serialized
	Scopes         []string // JSONB array: ["apps:manage", "users:read", ...]
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
