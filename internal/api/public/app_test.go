package public

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/resolveit/resolveit/internal/auth"
	"github.com/resolveit/resolveit/internal/middleware"
)

func newIdentityRouter(principal *auth.Principal) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if principal != nil {
			c.Set(middleware.PrincipalKey, principal)
		}
		c.Next()
	})
	r.GET("/app", AppIdentityHandler())
	return r
}

func TestAppIdentityHandler_Success(t *testing.T) {
	r := newIdentityRouter(testPrincipal())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/app", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		App map[string]interface{} `json:"app"`
		Key map[string]interface{} `json:"key"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response parse error: %v", err)
	}
	if resp.App["id"] != "app-1" {
		t.Errorf("app.id = %v, want app-1", resp.App["id"])
	}
	if resp.App["organization_id"] != "org-1" {
		t.Errorf("app.organization_id = %v, want org-1", resp.App["organization_id"])
	}
	if resp.Key["key_prefix"] != "rsk_ab12" {
		t.Errorf("key.key_prefix = %v, want rsk_ab12", resp.Key["key_prefix"])
	}
	// The stored hash never appears on the identity endpoint
	if _, present := resp.Key["key_hash"]; present {
		t.Error("key_hash must not be serialized")
	}
}

func TestAppIdentityHandler_NoPrincipal(t *testing.T) {
	r := newIdentityRouter(nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/app", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
