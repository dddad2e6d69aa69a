// Package models - app_api_key.go defines the AppAPIKey model for per-app API credentials.
// Only the bcrypt hash and a short display prefix are stored; the raw key is shown once at creation.
package models

import "time"

// AppAPIKey represents an API key issued to an app
type AppAPIKey struct {
	ID          string
	AppID       string
	Name        string  // Friendly name (e.g., "Zendesk integration")
	Description *string // Optional human-friendly description
	KeyHash     string  // Bcrypt hash of the full key
	KeyPrefix   string  // First chars of the raw key for display (e.g., "rsk_ab12")
	IsActive    bool    // Revocation flag; revoked keys never match
	ExpiresAt   *time.Time
	LastUsedAt  *time.Time
	LastUsedIP  *string
	CreatedByID *string // Admin user who issued the key; nil after that user is deleted
	CreatedAt   time.Time
}

// IsExpired reports whether the key has an expiry in the past
func (k *AppAPIKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(now)
}

// AppAPIKeyWithApp is an AppAPIKey joined with its owning app.
// Used by the verification path so one load yields everything needed for a decision.
type AppAPIKeyWithApp struct {
	AppAPIKey
	App App
}
