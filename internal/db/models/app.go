// Package models defines the database model types for ResolveIt.
// Each type corresponds to a database table and uses struct tags for both JSON serialization and sqlx row scanning.
// Models are pure data types; query logic lives in the repositories layer.
package models

import "time"

// App represents a registered integration application. Apps own API keys and
// an IP whitelist, and every public API request is attributed to exactly one app.
type App struct {
	ID             string
	OrganizationID string
	Name           string
	Description    *string
	IsActive       bool    // Kill switch: an inactive app fails verification for all of its keys
	CreatedBy      *string // Admin user who registered the app; nil after that user is deleted
	UpdatedBy      *string // Admin user who last modified the app
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
