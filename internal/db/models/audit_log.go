// Package models - audit_log.go defines the AuditLog model for recording security-relevant
// events, capturing actor, action, affected resource, client IP, and arbitrary metadata.
package models

import "time"

// AuditLog represents an audit log entry for tracking admin actions
type AuditLog struct {
	ID             string
	UserID         *string // Nullable for system actions
	OrganizationID *string
	Action         string  // "app.created", "api_key.revoked", "ip_whitelist.deleted"
	ResourceType   *string // "app", "api_key", "ip_whitelist", "user", "organization"
	ResourceID     *string // UUID of affected resource
	Metadata       map[string]interface{}
	IPAddress      *string // Client IP
	CreatedAt      time.Time
}
