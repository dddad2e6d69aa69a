// app_api_key_repository.go implements AppAPIKeyRepository, providing database queries for
// API key creation, app-scoped lookup, revocation, expiry housekeeping, and last-used updates.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/resolveit/resolveit/internal/db/models"
)

// AppAPIKeyRepository handles app API key database operations
type AppAPIKeyRepository struct {
	db *sql.DB
}

// NewAppAPIKeyRepository creates a new AppAPIKeyRepository
func NewAppAPIKeyRepository(db *sql.DB) *AppAPIKeyRepository {
	return &AppAPIKeyRepository{db: db}
}

// Create inserts a new API key row
func (r *AppAPIKeyRepository) Create(ctx context.Context, key *models.AppAPIKey) error {
	key.ID = uuid.New().String()
	key.CreatedAt = time.Now()
	key.IsActive = true

	query := `
		INSERT INTO app_api_keys (id, app_id, name, description, key_hash, key_prefix, is_active, expires_at, last_used_at, last_used_ip, created_by_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		key.ID,
		key.AppID,
		key.Name,
		key.Description,
		key.KeyHash,
		key.KeyPrefix,
		key.IsActive,
		key.ExpiresAt,
		key.LastUsedAt,
		key.LastUsedIP,
		key.CreatedByID,
		key.CreatedAt,
	)

	return err
}

// GetByIDForApp retrieves an API key by ID, scoped to an app.
// A key that exists under a different app is treated as not found.
func (r *AppAPIKeyRepository) GetByIDForApp(ctx context.Context, keyID, appID string) (*models.AppAPIKey, error) {
	query := `
		SELECT id, app_id, name, description, key_hash, key_prefix, is_active, expires_at, last_used_at, last_used_ip, created_by_id, created_at
		FROM app_api_keys
		WHERE id = $1 AND app_id = $2
	`

	key := &models.AppAPIKey{}

	err := r.db.QueryRowContext(ctx, query, keyID, appID).Scan(
		&key.ID,
		&key.AppID,
		&key.Name,
		&key.Description,
		&key.KeyHash,
		&key.KeyPrefix,
		&key.IsActive,
		&key.ExpiresAt,
		&key.LastUsedAt,
		&key.LastUsedIP,
		&key.CreatedByID,
		&key.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return key, nil
}

// ListByApp retrieves all API keys for an app, newest first
func (r *AppAPIKeyRepository) ListByApp(ctx context.Context, appID string) ([]*models.AppAPIKey, error) {
	query := `
		SELECT id, app_id, name, description, key_hash, key_prefix, is_active, expires_at, last_used_at, last_used_ip, created_by_id, created_at
		FROM app_api_keys
		WHERE app_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]*models.AppAPIKey, 0)
	for rows.Next() {
		key := &models.AppAPIKey{}

		err := rows.Scan(
			&key.ID,
			&key.AppID,
			&key.Name,
			&key.Description,
			&key.KeyHash,
			&key.KeyPrefix,
			&key.IsActive,
			&key.ExpiresAt,
			&key.LastUsedAt,
			&key.LastUsedIP,
			&key.CreatedByID,
			&key.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		keys = append(keys, key)
	}

	return keys, rows.Err()
}

// ListActiveWithApp retrieves every active, unexpired API key joined with its owning app.
// This is the candidate set for request verification.
func (r *AppAPIKeyRepository) ListActiveWithApp(ctx context.Context) ([]*models.AppAPIKeyWithApp, error) {
	query := `
		SELECT k.id, k.app_id, k.name, k.description, k.key_hash, k.key_prefix, k.is_active,
		       k.expires_at, k.last_used_at, k.last_used_ip, k.created_at,
		       a.id, a.organization_id, a.name, a.description, a.is_active, a.created_at, a.updated_at
		FROM app_api_keys k
		JOIN apps a ON k.app_id = a.id
		WHERE k.is_active = TRUE
		  AND (k.expires_at IS NULL OR k.expires_at > NOW())
		ORDER BY k.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]*models.AppAPIKeyWithApp, 0)
	for rows.Next() {
		key := &models.AppAPIKeyWithApp{}

		err := rows.Scan(
			&key.ID,
			&key.AppID,
			&key.Name,
			&key.Description,
			&key.KeyHash,
			&key.KeyPrefix,
			&key.IsActive,
			&key.ExpiresAt,
			&key.LastUsedAt,
			&key.LastUsedIP,
			&key.CreatedAt,
			&key.App.ID,
			&key.App.OrganizationID,
			&key.App.Name,
			&key.App.Description,
			&key.App.IsActive,
			&key.App.CreatedAt,
			&key.App.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		keys = append(keys, key)
	}

	return keys, rows.Err()
}

// UpdateLastUsed records the last successful use of an API key
func (r *AppAPIKeyRepository) UpdateLastUsed(ctx context.Context, keyID, clientIP string) error {
	query := `
		UPDATE app_api_keys
		SET last_used_at = $2, last_used_ip = $3
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, keyID, time.Now(), clientIP)
	return err
}

// Revoke deactivates an API key, scoped to an app. Returns false when no row matched.
// The row is kept for audit purposes; a revoked key never verifies again.
func (r *AppAPIKeyRepository) Revoke(ctx context.Context, keyID, appID string) (bool, error) {
	query := `
		UPDATE app_api_keys
		SET is_active = FALSE
		WHERE id = $1 AND app_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, keyID, appID)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// DeactivateExpiredKeys flips is_active off for every key whose expiry has passed.
// Verification already rejects expired keys; this is housekeeping for the sweeper job.
func (r *AppAPIKeyRepository) DeactivateExpiredKeys(ctx context.Context) (int64, error) {
	query := `
		UPDATE app_api_keys
		SET is_active = FALSE
		WHERE is_active = TRUE
		  AND expires_at IS NOT NULL
		  AND expires_at < $1
	`

	result, err := r.db.ExecContext(ctx, query, time.Now())
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
