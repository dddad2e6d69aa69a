package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/resolveit/resolveit/internal/db/models"
)

var keyCols = []string{
	"id", "app_id", "name", "description", "key_hash", "key_prefix", "is_active",
	"expires_at", "last_used_at", "last_used_ip", "created_by_id", "created_at",
}

// keyWithAppCols matches the verification join: key columns then app columns
var keyWithAppCols = []string{
	"id", "app_id", "name", "description", "key_hash", "key_prefix", "is_active",
	"expires_at", "last_used_at", "last_used_ip", "created_at",
	"a_id", "a_organization_id", "a_name", "a_description", "a_is_active", "a_created_at", "a_updated_at",
}

func newKeyRepo(t *testing.T) (*AppAPIKeyRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAppAPIKeyRepository(db), mock
}

func sampleKeyRow() *sqlmock.Rows {
	return sqlmock.NewRows(keyCols).
		AddRow("key-1", "app-1", "CI Key", nil, "$2a$12$hash", "rsk_ab12", true,
			nil, nil, nil, nil, time.Now())
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestKeyCreate(t *testing.T) {
	repo, mock := newKeyRepo(t)

	mock.ExpectExec("INSERT INTO app_api_keys").
		WithArgs(sqlmock.AnyArg(), "app-1", "CI Key", nil, "$2a$12$hash", "rsk_ab12",
			true, nil, nil, nil, "admin-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	key := &models.AppAPIKey{
		AppID:       "app-1",
		Name:        "CI Key",
		KeyHash:     "$2a$12$hash",
		KeyPrefix:   "rsk_ab12",
		CreatedByID: strPtr("admin-1"),
	}
	if err := repo.Create(context.Background(), key); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if key.ID == "" {
		t.Error("Create should assign an id")
	}
	if !key.IsActive {
		t.Error("Create should mark the key active")
	}
}

// ---------------------------------------------------------------------------
// GetByIDForApp
// ---------------------------------------------------------------------------

func TestKeyGetByIDForApp_Found(t *testing.T) {
	repo, mock := newKeyRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM app_api_keys").
		WithArgs("key-1", "app-1").
		WillReturnRows(sampleKeyRow())

	key, err := repo.GetByIDForApp(context.Background(), "key-1", "app-1")
	if err != nil {
		t.Fatalf("GetByIDForApp: %v", err)
	}
	if key == nil || key.KeyPrefix != "rsk_ab12" {
		t.Errorf("key = %+v, want rsk_ab12 prefix", key)
	}
}

func TestKeyGetByIDForApp_WrongApp(t *testing.T) {
	repo, mock := newKeyRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM app_api_keys").
		WithArgs("key-1", "other-app").
		WillReturnRows(sqlmock.NewRows(keyCols))

	key, err := repo.GetByIDForApp(context.Background(), "key-1", "other-app")
	if err != nil {
		t.Fatalf("GetByIDForApp: %v", err)
	}
	if key != nil {
		t.Errorf("key = %+v, want nil when scoped to the wrong app", key)
	}
}

// ---------------------------------------------------------------------------
// ListByApp / ListActiveWithApp
// ---------------------------------------------------------------------------

func TestKeyListByApp(t *testing.T) {
	repo, mock := newKeyRepo(t)

	now := time.Now()
	expiry := now.Add(30 * 24 * time.Hour)
	mock.ExpectQuery("SELECT (.+) FROM app_api_keys").
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows(keyCols).
			AddRow("key-1", "app-1", "CI Key", nil, "$2a$12$a", "rsk_ab12", true, nil, nil, nil, nil, now).
			AddRow("key-2", "app-1", "Temp Key", nil, "$2a$12$b", "rsk_cd34", false, expiry, now, "203.0.113.9", "admin-1", now))

	keys, err := repo.ListByApp(context.Background(), "app-1")
	if err != nil {
		t.Fatalf("ListByApp: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("len(keys) = %d, want 2", len(keys))
	}
	if keys[1].ExpiresAt == nil {
		t.Error("second key should carry its expiry")
	}
	if keys[1].LastUsedIP == nil || *keys[1].LastUsedIP != "203.0.113.9" {
		t.Errorf("last_used_ip = %v, want 203.0.113.9", keys[1].LastUsedIP)
	}
	if keys[0].CreatedByID != nil {
		t.Errorf("created_by_id = %v, want nil for the first key", keys[0].CreatedByID)
	}
	if keys[1].CreatedByID == nil || *keys[1].CreatedByID != "admin-1" {
		t.Errorf("created_by_id = %v, want admin-1", keys[1].CreatedByID)
	}
}

func TestKeyListActiveWithApp(t *testing.T) {
	repo, mock := newKeyRepo(t)

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM app_api_keys k").
		WillReturnRows(sqlmock.NewRows(keyWithAppCols).
			AddRow("key-1", "app-1", "CI Key", nil, "$2a$12$hash", "rsk_ab12", true,
				nil, nil, nil, now,
				"app-1", "org-1", "Zendesk Sync", nil, true, now, now))

	keys, err := repo.ListActiveWithApp(context.Background())
	if err != nil {
		t.Fatalf("ListActiveWithApp: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("len(keys) = %d, want 1", len(keys))
	}
	if keys[0].App.OrganizationID != "org-1" {
		t.Errorf("app.organization_id = %q, want org-1", keys[0].App.OrganizationID)
	}
	if keys[0].KeyHash != "$2a$12$hash" {
		t.Errorf("key_hash = %q, want the stored hash", keys[0].KeyHash)
	}
}

// ---------------------------------------------------------------------------
// UpdateLastUsed
// ---------------------------------------------------------------------------

func TestKeyUpdateLastUsed(t *testing.T) {
	repo, mock := newKeyRepo(t)

	mock.ExpectExec("UPDATE app_api_keys").
		WithArgs("key-1", sqlmock.AnyArg(), "203.0.113.9").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateLastUsed(context.Background(), "key-1", "203.0.113.9"); err != nil {
		t.Fatalf("UpdateLastUsed: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Revoke
// ---------------------------------------------------------------------------

func TestKeyRevoke(t *testing.T) {
	repo, mock := newKeyRepo(t)

	mock.ExpectExec("UPDATE app_api_keys").
		WithArgs("key-1", "app-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	revoked, err := repo.Revoke(context.Background(), "key-1", "app-1")
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if !revoked {
		t.Error("revoked = false, want true")
	}
}

func TestKeyRevoke_WrongApp(t *testing.T) {
	repo, mock := newKeyRepo(t)

	mock.ExpectExec("UPDATE app_api_keys").
		WithArgs("key-1", "other-app").
		WillReturnResult(sqlmock.NewResult(0, 0))

	revoked, err := repo.Revoke(context.Background(), "key-1", "other-app")
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if revoked {
		t.Error("revoked = true, want false when scoped to the wrong app")
	}
}

// ---------------------------------------------------------------------------
// DeactivateExpiredKeys
// ---------------------------------------------------------------------------

func TestDeactivateExpiredKeys(t *testing.T) {
	repo, mock := newKeyRepo(t)

	mock.ExpectExec("UPDATE app_api_keys").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeactivateExpiredKeys(context.Background())
	if err != nil {
		t.Fatalf("DeactivateExpiredKeys: %v", err)
	}
	if n != 4 {
		t.Errorf("deactivated = %d, want 4", n)
	}
}

func TestDeactivateExpiredKeys_Error(t *testing.T) {
	repo, mock := newKeyRepo(t)

	mock.ExpectExec("UPDATE app_api_keys").
		WillReturnError(errDB)

	_, err := repo.DeactivateExpiredKeys(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
}
