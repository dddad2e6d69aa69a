// Package models - app_ip_whitelist.go defines the AppIPWhitelistEntry model for per-app
// source-IP restrictions. Entries are plain IPs or IPv4 CIDR blocks stored as text.
package models

import "time"

// AppIPWhitelistEntry represents one allowed source address or CIDR block for an app.
// An app with zero active entries accepts requests from any address.
type AppIPWhitelistEntry struct {
	ID          string
	AppID       string
	IPAddress   string // Exact IP ("203.0.113.7") or IPv4 CIDR ("10.0.0.0/8")
	Description *string
	IsActive    bool
	CreatedByID *string // Admin user who added the entry; nil after that user is deleted
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
