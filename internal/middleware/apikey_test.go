package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/resolveit/resolveit/internal/auth"
	"github.com/resolveit/resolveit/internal/db/repositories"
)

var candidateCols = []string{
	"id", "app_id", "name", "description", "key_hash", "key_prefix", "is_active",
	"expires_at", "last_used_at", "last_used_ip", "created_at",
	"app_id", "organization_id", "app_name", "app_description", "app_is_active", "app_created_at", "app_updated_at",
}

var whitelistCols = []string{
	"id", "app_id", "ip_address", "description", "is_active", "created_at", "updated_at",
}

func newVerifier(t *testing.T) (*auth.Verifier, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return auth.NewVerifier(
		repositories.NewAppAPIKeyRepository(db),
		repositories.NewIPWhitelistRepository(db),
	), mock
}

func newGatewayRouter(verifier *auth.Verifier) *gin.Engine {
	r := gin.New()
	r.Use(APIKeyAuthMiddleware(verifier))
	r.GET("/", func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok || principal == nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"app_id": principal.App.ID})
	})
	return r
}

func candidateRow(keyHash, keyPrefix string, appActive bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(candidateCols).AddRow(
		"key-1", "app-1", "test key", nil, keyHash, keyPrefix, true,
		nil, nil, nil, now,
		"app-1", "org-1", "test app", nil, appActive, now, now,
	)
}

func TestAPIKeyAuthMiddleware_MissingCredential(t *testing.T) {
	r := newGatewayRouter(nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAPIKeyAuthMiddleware_InvalidKey(t *testing.T) {
	verifier, mock := newVerifier(t)
	r := newGatewayRouter(verifier)

	mock.ExpectQuery("SELECT (.+) FROM app_api_keys k").
		WillReturnRows(sqlmock.NewRows(candidateCols))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "rsk_not_a_real_key")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAPIKeyAuthMiddleware_ValidKey(t *testing.T) {
	rawKey, keyHash, keyPrefix, err := auth.GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}

	verifier, mock := newVerifier(t)
	r := newGatewayRouter(verifier)

	mock.ExpectQuery("SELECT (.+) FROM app_api_keys k").
		WillReturnRows(candidateRow(keyHash, keyPrefix, true))
	mock.ExpectQuery("SELECT (.+) FROM app_ip_whitelist").
		WillReturnRows(sqlmock.NewRows(whitelistCols))
	mock.ExpectExec("UPDATE app_api_keys").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", rawKey)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}

	// Let the async last-used write complete against the mock
	time.Sleep(100 * time.Millisecond)
}

func TestAPIKeyAuthMiddleware_BearerFallback(t *testing.T) {
	rawKey, keyHash, keyPrefix, err := auth.GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}

	verifier, mock := newVerifier(t)
	r := newGatewayRouter(verifier)

	mock.ExpectQuery("SELECT (.+) FROM app_api_keys k").
		WillReturnRows(candidateRow(keyHash, keyPrefix, true))
	mock.ExpectQuery("SELECT (.+) FROM app_ip_whitelist").
		WillReturnRows(sqlmock.NewRows(whitelistCols))
	mock.ExpectExec("UPDATE app_api_keys").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+rawKey)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	time.Sleep(100 * time.Millisecond)
}

func TestAPIKeyAuthMiddleware_AppInactive(t *testing.T) {
	rawKey, keyHash, keyPrefix, err := auth.GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}

	verifier, mock := newVerifier(t)
	r := newGatewayRouter(verifier)

	mock.ExpectQuery("SELECT (.+) FROM app_api_keys k").
		WillReturnRows(candidateRow(keyHash, keyPrefix, false))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", rawKey)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400: inactive app is a distinct failure", w.Code)
	}
}

func TestAPIKeyAuthMiddleware_IPNotWhitelisted(t *testing.T) {
	rawKey, keyHash, keyPrefix, err := auth.GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}

	verifier, mock := newVerifier(t)
	r := newGatewayRouter(verifier)

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM app_api_keys k").
		WillReturnRows(candidateRow(keyHash, keyPrefix, true))
	mock.ExpectQuery("SELECT (.+) FROM app_ip_whitelist").
		WillReturnRows(sqlmock.NewRows(whitelistCols).
			AddRow("wl-1", "app-1", "203.0.113.0/24", nil, true, now, now))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", rawKey)
	req.RemoteAddr = "192.0.2.1:12345"
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400: source address outside whitelist", w.Code)
	}
}

func TestExtractCredential_XAPIKeyWins(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("X-API-Key", "rsk_from_header")
	c.Request.Header.Set("Authorization", "Bearer rsk_from_bearer")

	if got := extractCredential(c); got != "rsk_from_header" {
		t.Errorf("extractCredential = %q, want X-API-Key value", got)
	}
}

func TestExtractCredential_Empty(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/", nil)

	if got := extractCredential(c); got != "" {
		t.Errorf("extractCredential = %q, want empty", got)
	}
}

func TestClientIPFromRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("remote addr", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request, _ = http.NewRequest(http.MethodGet, "/", nil)
		c.Request.RemoteAddr = "192.0.2.10:54321"

		if got := ClientIPFromRequest(c); got != "192.0.2.10" {
			t.Errorf("ClientIPFromRequest = %q, want %q", got, "192.0.2.10")
		}
	})

	t.Run("ipv6 loopback normalized", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request, _ = http.NewRequest(http.MethodGet, "/", nil)
		c.Request.RemoteAddr = "[::1]:54321"

		if got := ClientIPFromRequest(c); got != "127.0.0.1" {
			t.Errorf("ClientIPFromRequest = %q, want %q", got, "127.0.0.1")
		}
	})
}

func TestGetPrincipal_NotSet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	if _, ok := GetPrincipal(c); ok {
		t.Error("GetPrincipal returned ok for empty context")
	}
}
