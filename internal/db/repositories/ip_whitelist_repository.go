// ip_whitelist_repository.go implements IPWhitelistRepository, providing database queries
// for per-app IP whitelist entries. The UNIQUE(app_id, ip_address) constraint is the
// authoritative duplicate guard; violations surface as ErrDuplicateEntry.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/resolveit/resolveit/internal/db/models"
)

// ErrDuplicateEntry is returned when an insert or update collides with the
// unique constraint on (app_id, ip_address).
var ErrDuplicateEntry = errors.New("whitelist entry already exists for this app")

// pqUniqueViolation is the PostgreSQL error code for unique_violation
const pqUniqueViolation = "23505"

// IPWhitelistRepository handles IP whitelist database operations
type IPWhitelistRepository struct {
	db *sql.DB
}

// NewIPWhitelistRepository creates a new IPWhitelistRepository
func NewIPWhitelistRepository(db *sql.DB) *IPWhitelistRepository {
	return &IPWhitelistRepository{db: db}
}

// isUniqueViolation reports whether err is a unique-constraint violation
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// Create inserts a new whitelist entry for an app
func (r *IPWhitelistRepository) Create(ctx context.Context, entry *models.AppIPWhitelistEntry) error {
	entry.ID = uuid.New().String()
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = entry.CreatedAt
	entry.IsActive = true

	query := `
		INSERT INTO app_ip_whitelist (id, app_id, ip_address, description, is_active, created_by_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.AppID,
		entry.IPAddress,
		entry.Description,
		entry.IsActive,
		entry.CreatedByID,
		entry.CreatedAt,
		entry.UpdatedAt,
	)

	if isUniqueViolation(err) {
		return ErrDuplicateEntry
	}

	if err != nil {
		return fmt.Errorf("failed to create whitelist entry: %w", err)
	}

	return nil
}

// GetByIDForApp retrieves a whitelist entry by ID, scoped to an app.
// An entry that exists under a different app is treated as not found.
func (r *IPWhitelistRepository) GetByIDForApp(ctx context.Context, entryID, appID string) (*models.AppIPWhitelistEntry, error) {
	query := `
		SELECT id, app_id, ip_address, description, is_active, created_by_id, created_at, updated_at
		FROM app_ip_whitelist
		WHERE id = $1 AND app_id = $2
	`

	entry := &models.AppIPWhitelistEntry{}
	err := r.db.QueryRowContext(ctx, query, entryID, appID).Scan(
		&entry.ID,
		&entry.AppID,
		&entry.IPAddress,
		&entry.Description,
		&entry.IsActive,
		&entry.CreatedByID,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get whitelist entry: %w", err)
	}

	return entry, nil
}

// ListByApp retrieves all whitelist entries for an app
func (r *IPWhitelistRepository) ListByApp(ctx context.Context, appID string) ([]*models.AppIPWhitelistEntry, error) {
	query := `
		SELECT id, app_id, ip_address, description, is_active, created_by_id, created_at, updated_at
		FROM app_ip_whitelist
		WHERE app_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to list whitelist entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.AppIPWhitelistEntry, 0)
	for rows.Next() {
		entry := &models.AppIPWhitelistEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.AppID,
			&entry.IPAddress,
			&entry.Description,
			&entry.IsActive,
			&entry.CreatedByID,
			&entry.CreatedAt,
			&entry.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan whitelist entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// ListActiveByApp retrieves the active whitelist entries for an app.
// The verification path uses this set; an empty result means no IP restriction.
func (r *IPWhitelistRepository) ListActiveByApp(ctx context.Context, appID string) ([]*models.AppIPWhitelistEntry, error) {
	query := `
		SELECT id, app_id, ip_address, description, is_active, created_at, updated_at
		FROM app_ip_whitelist
		WHERE app_id = $1 AND is_active = TRUE
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active whitelist entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.AppIPWhitelistEntry, 0)
	for rows.Next() {
		entry := &models.AppIPWhitelistEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.AppID,
			&entry.IPAddress,
			&entry.Description,
			&entry.IsActive,
			&entry.CreatedAt,
			&entry.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan whitelist entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Update updates a whitelist entry, scoped to an app. Returns false when no row matched.
func (r *IPWhitelistRepository) Update(ctx context.Context, entry *models.AppIPWhitelistEntry) (bool, error) {
	query := `
		UPDATE app_ip_whitelist
		SET ip_address = $3, description = $4, is_active = $5, updated_at = NOW()
		WHERE id = $1 AND app_id = $2
	`

	result, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.AppID,
		entry.IPAddress,
		entry.Description,
		entry.IsActive,
	)

	if isUniqueViolation(err) {
		return false, ErrDuplicateEntry
	}

	if err != nil {
		return false, fmt.Errorf("failed to update whitelist entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// Delete removes a whitelist entry, scoped to an app. Returns false when no row matched.
func (r *IPWhitelistRepository) Delete(ctx context.Context, entryID, appID string) (bool, error) {
	query := `DELETE FROM app_ip_whitelist WHERE id = $1 AND app_id = $2`

	result, err := r.db.ExecContext(ctx, query, entryID, appID)
	if err != nil {
		return false, fmt.Errorf("failed to delete whitelist entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}
