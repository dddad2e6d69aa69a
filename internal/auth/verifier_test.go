package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/resolveit/resolveit/internal/db/repositories"
)

func newVerifierForTest(t *testing.T) (*Verifier, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	keys := repositories.NewAppAPIKeyRepository(db)
	whitelist := repositories.NewIPWhitelistRepository(db)
	return NewVerifier(keys, whitelist), mock
}

var candidateColumns = []string{
	"id", "app_id", "name", "description", "key_hash", "key_prefix", "is_active",
	"expires_at", "last_used_at", "last_used_ip", "created_at",
	"app_id", "organization_id", "app_name", "app_description", "app_is_active", "app_created_at", "app_updated_at",
}

var whitelistColumns = []string{
	"id", "app_id", "ip_address", "description", "is_active", "created_at", "updated_at",
}

// addCandidate appends a joined key+app row to a candidate result set
func addCandidate(rows *sqlmock.Rows, keyID, appID, keyHash, keyPrefix string, appActive bool) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(
		keyID, appID, "test key", nil, keyHash, keyPrefix, true,
		nil, nil, nil, now,
		appID, "org-1", "test app", nil, appActive, now, now,
	)
}

func TestVerify(t *testing.T) {
	rawKey, keyHash, keyPrefix, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey() error: %v", err)
	}

	t.Run("valid key with empty whitelist succeeds", func(t *testing.T) {
		verifier, mock := newVerifierForTest(t)

		mock.ExpectQuery("SELECT (.+) FROM app_api_keys k").
			WillReturnRows(addCandidate(sqlmock.NewRows(candidateColumns), "key-1", "app-1", keyHash, keyPrefix, true))
		mock.ExpectQuery("SELECT (.+) FROM app_ip_whitelist").
			WithArgs("app-1").
			WillReturnRows(sqlmock.NewRows(whitelistColumns))
		// Async last-used write from the success path
		mock.ExpectExec("UPDATE app_api_keys").
			WillReturnResult(sqlmock.NewResult(0, 1))

		principal, err := verifier.Verify(context.Background(), rawKey, "10.0.0.1")
		if err != nil {
			t.Fatalf("Verify() unexpected error: %v", err)
		}
		if principal == nil {
			t.Fatal("Verify() returned nil principal")
		}
		if principal.App.ID != "app-1" {
			t.Errorf("principal.App.ID = %q, want %q", principal.App.ID, "app-1")
		}
		if principal.APIKey.ID != "key-1" {
			t.Errorf("principal.APIKey.ID = %q, want %q", principal.APIKey.ID, "key-1")
		}

		// Give the background last-used write a moment to land
		time.Sleep(100 * time.Millisecond)
	})

	t.Run("unknown key returns ErrInvalidAPIKey", func(t *testing.T) {
		verifier, mock := newVerifierForTest(t)

		mock.ExpectQuery("SELECT (.+) FROM app_api_keys k").
			WillReturnRows(addCandidate(sqlmock.NewRows(candidateColumns), "key-1", "app-1", keyHash, keyPrefix, true))

		_, err := verifier.Verify(context.Background(), "rsk_definitely_not_the_key", "10.0.0.1")
		if !errors.Is(err, ErrInvalidAPIKey) {
			t.Errorf("Verify() error = %v, want ErrInvalidAPIKey", err)
		}
	})

	t.Run("no candidates returns ErrInvalidAPIKey", func(t *testing.T) {
		verifier, mock := newVerifierForTest(t)

		mock.ExpectQuery("SELECT (.+) FROM app_api_keys k").
			WillReturnRows(sqlmock.NewRows(candidateColumns))

		_, err := verifier.Verify(context.Background(), rawKey, "10.0.0.1")
		if !errors.Is(err, ErrInvalidAPIKey) {
			t.Errorf("Verify() error = %v, want ErrInvalidAPIKey", err)
		}
	})

	t.Run("prefix mismatch skips bcrypt and fails closed", func(t *testing.T) {
		verifier, mock := newVerifierForTest(t)

		// Candidate has a full-length prefix that cannot match the presented key,
		// so the loop never reaches the whitelist query
		mock.ExpectQuery("SELECT (.+) FROM app_api_keys k").
			WillReturnRows(addCandidate(sqlmock.NewRows(candidateColumns), "key-1", "app-1", keyHash, "rsk_zzzz", true))

		start := time.Now()
		_, err := verifier.Verify(context.Background(), rawKey, "10.0.0.1")
		elapsed := time.Since(start)

		if !errors.Is(err, ErrInvalidAPIKey) {
			t.Errorf("Verify() error = %v, want ErrInvalidAPIKey", err)
		}
		// A skipped candidate should not pay the bcrypt cost
		if elapsed > 50*time.Millisecond {
			t.Errorf("Verify() took %v, prefix filter did not short-circuit", elapsed)
		}
	})

	t.Run("inactive app returns ErrAppInactive", func(t *testing.T) {
		verifier, mock := newVerifierForTest(t)

		mock.ExpectQuery("SELECT (.+) FROM app_api_keys k").
			WillReturnRows(addCandidate(sqlmock.NewRows(candidateColumns), "key-1", "app-1", keyHash, keyPrefix, false))

		_, err := verifier.Verify(context.Background(), rawKey, "10.0.0.1")
		if !errors.Is(err, ErrAppInactive) {
			t.Errorf("Verify() error = %v, want ErrAppInactive", err)
		}
	})

	t.Run("non-whitelisted IP returns ErrIPNotWhitelisted", func(t *testing.T) {
		verifier, mock := newVerifierForTest(t)

		now := time.Now()
		mock.ExpectQuery("SELECT (.+) FROM app_api_keys k").
			WillReturnRows(addCandidate(sqlmock.NewRows(candidateColumns), "key-1", "app-1", keyHash, keyPrefix, true))
		mock.ExpectQuery("SELECT (.+) FROM app_ip_whitelist").
			WithArgs("app-1").
			WillReturnRows(sqlmock.NewRows(whitelistColumns).
				AddRow("wl-1", "app-1", "192.168.1.0/24", nil, true, now, now))

		_, err := verifier.Verify(context.Background(), rawKey, "10.0.0.1")
		if !errors.Is(err, ErrIPNotWhitelisted) {
			t.Errorf("Verify() error = %v, want ErrIPNotWhitelisted", err)
		}
	})

	t.Run("whitelisted IP via CIDR succeeds", func(t *testing.T) {
		verifier, mock := newVerifierForTest(t)

		now := time.Now()
		mock.ExpectQuery("SELECT (.+) FROM app_api_keys k").
			WillReturnRows(addCandidate(sqlmock.NewRows(candidateColumns), "key-1", "app-1", keyHash, keyPrefix, true))
		mock.ExpectQuery("SELECT (.+) FROM app_ip_whitelist").
			WithArgs("app-1").
			WillReturnRows(sqlmock.NewRows(whitelistColumns).
				AddRow("wl-1", "app-1", "192.168.1.0/24", nil, true, now, now))
		mock.ExpectExec("UPDATE app_api_keys").
			WillReturnResult(sqlmock.NewResult(0, 1))

		principal, err := verifier.Verify(context.Background(), rawKey, "192.168.1.42")
		if err != nil {
			t.Fatalf("Verify() unexpected error: %v", err)
		}
		if principal.App.ID != "app-1" {
			t.Errorf("principal.App.ID = %q, want %q", principal.App.ID, "app-1")
		}

		time.Sleep(100 * time.Millisecond)
	})

	t.Run("candidate query error is wrapped", func(t *testing.T) {
		verifier, mock := newVerifierForTest(t)

		mock.ExpectQuery("SELECT (.+) FROM app_api_keys k").
			WillReturnError(errors.New("connection refused"))

		_, err := verifier.Verify(context.Background(), rawKey, "10.0.0.1")
		if err == nil {
			t.Fatal("Verify() expected error, got nil")
		}
		if errors.Is(err, ErrInvalidAPIKey) {
			t.Error("Verify() infrastructure error must not map to ErrInvalidAPIKey")
		}
	})

	t.Run("whitelist query error is wrapped", func(t *testing.T) {
		verifier, mock := newVerifierForTest(t)

		mock.ExpectQuery("SELECT (.+) FROM app_api_keys k").
			WillReturnRows(addCandidate(sqlmock.NewRows(candidateColumns), "key-1", "app-1", keyHash, keyPrefix, true))
		mock.ExpectQuery("SELECT (.+) FROM app_ip_whitelist").
			WithArgs("app-1").
			WillReturnError(errors.New("connection refused"))

		_, err := verifier.Verify(context.Background(), rawKey, "10.0.0.1")
		if err == nil {
			t.Fatal("Verify() expected error, got nil")
		}
		if errors.Is(err, ErrIPNotWhitelisted) {
			t.Error("Verify() infrastructure error must not map to ErrIPNotWhitelisted")
		}
	})

	t.Run("expired candidate is skipped", func(t *testing.T) {
		verifier, mock := newVerifierForTest(t)

		now := time.Now()
		past := now.Add(-time.Hour)
		rows := sqlmock.NewRows(candidateColumns).AddRow(
			"key-1", "app-1", "stale key", nil, keyHash, keyPrefix, true,
			past, nil, nil, now,
			"app-1", "org-1", "test app", nil, true, now, now,
		)
		mock.ExpectQuery("SELECT (.+) FROM app_api_keys k").WillReturnRows(rows)

		_, err := verifier.Verify(context.Background(), rawKey, "10.0.0.1")
		if !errors.Is(err, ErrInvalidAPIKey) {
			t.Errorf("Verify() error = %v, want ErrInvalidAPIKey", err)
		}
	})
}
