// app_repository.go implements AppRepository, providing database queries for the
// registered integration apps that own API keys and IP whitelists.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/resolveit/resolveit/internal/db/models"
)

// AppRepository handles app database operations
type AppRepository struct {
	db *sql.DB
}

// NewAppRepository creates a new AppRepository
func NewAppRepository(db *sql.DB) *AppRepository {
	return &AppRepository{db: db}
}

// Create creates a new app
func (r *AppRepository) Create(ctx context.Context, app *models.App) error {
	app.ID = uuid.New().String()
	app.CreatedAt = time.Now()
	app.UpdatedAt = app.CreatedAt

	query := `
		INSERT INTO apps (id, organization_id, name, description, is_active, created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		app.ID,
		app.OrganizationID,
		app.Name,
		app.Description,
		app.IsActive,
		app.CreatedBy,
		app.UpdatedBy,
		app.CreatedAt,
		app.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	return nil
}

// GetByID retrieves an app by ID
func (r *AppRepository) GetByID(ctx context.Context, appID string) (*models.App, error) {
	query := `
		SELECT id, organization_id, name, description, is_active, created_by, updated_by, created_at, updated_at
		FROM apps
		WHERE id = $1
	`

	app := &models.App{}
	err := r.db.QueryRowContext(ctx, query, appID).Scan(
		&app.ID,
		&app.OrganizationID,
		&app.Name,
		&app.Description,
		&app.IsActive,
		&app.CreatedBy,
		&app.UpdatedBy,
		&app.CreatedAt,
		&app.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get app: %w", err)
	}

	return app, nil
}

// List retrieves a paginated list of apps
func (r *AppRepository) List(ctx context.Context, limit, offset int) ([]*models.App, error) {
	query := `
		SELECT id, organization_id, name, description, is_active, created_by, updated_by, created_at, updated_at
		FROM apps
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list apps: %w", err)
	}
	defer rows.Close()

	apps := make([]*models.App, 0)
	for rows.Next() {
		app := &models.App{}
		err := rows.Scan(
			&app.ID,
			&app.OrganizationID,
			&app.Name,
			&app.Description,
			&app.IsActive,
			&app.CreatedBy,
			&app.UpdatedBy,
			&app.CreatedAt,
			&app.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan app: %w", err)
		}
		apps = append(apps, app)
	}

	return apps, rows.Err()
}

// ListByOrganization retrieves all apps for an organization
func (r *AppRepository) ListByOrganization(ctx context.Context, orgID string) ([]*models.App, error) {
	query := `
		SELECT id, organization_id, name, description, is_active, created_by, updated_by, created_at, updated_at
		FROM apps
		WHERE organization_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list apps: %w", err)
	}
	defer rows.Close()

	apps := make([]*models.App, 0)
	for rows.Next() {
		app := &models.App{}
		err := rows.Scan(
			&app.ID,
			&app.OrganizationID,
			&app.Name,
			&app.Description,
			&app.IsActive,
			&app.CreatedBy,
			&app.UpdatedBy,
			&app.CreatedAt,
			&app.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan app: %w", err)
		}
		apps = append(apps, app)
	}

	return apps, rows.Err()
}

// Update updates an app's name, description, active flag, and last editor
func (r *AppRepository) Update(ctx context.Context, app *models.App) error {
	query := `
		UPDATE apps
		SET name = $2, description = $3, is_active = $4, updated_by = $5, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		app.ID,
		app.Name,
		app.Description,
		app.IsActive,
		app.UpdatedBy,
	)

	if err != nil {
		return fmt.Errorf("failed to update app: %w", err)
	}

	return nil
}

// Delete hard-deletes an app. Keys and whitelist entries cascade in the database.
func (r *AppRepository) Delete(ctx context.Context, appID string) error {
	query := `DELETE FROM apps WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, appID)
	if err != nil {
		return fmt.Errorf("failed to delete app: %w", err)
	}

	return nil
}

// Count returns the total number of apps
func (r *AppRepository) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM apps`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count apps: %w", err)
	}

	return count, nil
}
