package admin

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/resolveit/resolveit/internal/config"
)

func newAppTestRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := NewAppHandlers(&config.Config{}, db)
	r := gin.New()
	r.GET("/apps", h.ListAppsHandler())
	r.GET("/apps/:id", h.GetAppHandler())
	r.POST("/apps", h.CreateAppHandler())
	r.PUT("/apps/:id", h.UpdateAppHandler())
	r.DELETE("/apps/:id", h.DeleteAppHandler())
	return r, mock
}

// ---------------------------------------------------------------------------
// ListAppsHandler
// ---------------------------------------------------------------------------

func TestListAppsHandler_Paginated(t *testing.T) {
	r, mock := newAppTestRouter(t)

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM apps").
		WithArgs(20, 0).
		WillReturnRows(sqlmock.NewRows(appCols).
			AddRow("app-1", "org-1", "Zendesk Sync", nil, true, nil, nil, now, now).
			AddRow("app-2", "org-1", "Slack Bot", nil, false, "admin-1", "admin-1", now, now))
	mock.ExpectQuery("SELECT COUNT(.+) FROM apps").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/apps", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Apps       []map[string]interface{} `json:"apps"`
		Pagination map[string]interface{}   `json:"pagination"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response parse error: %v", err)
	}
	if len(resp.Apps) != 2 {
		t.Errorf("len(apps) = %d, want 2", len(resp.Apps))
	}
	if resp.Pagination["total"] != float64(2) {
		t.Errorf("pagination.total = %v, want 2", resp.Pagination["total"])
	}
}

func TestListAppsHandler_ByOrganization(t *testing.T) {
	r, mock := newAppTestRouter(t)

	// Organization filter bypasses the count query
	mock.ExpectQuery("SELECT (.+) FROM apps").
		WithArgs("org-1").
		WillReturnRows(sampleAppRow())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/apps?organization_id=org-1", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Apps       []map[string]interface{} `json:"apps"`
		Pagination map[string]interface{}   `json:"pagination"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response parse error: %v", err)
	}
	if len(resp.Apps) != 1 {
		t.Errorf("len(apps) = %d, want 1", len(resp.Apps))
	}
	if resp.Pagination != nil {
		t.Error("organization-filtered listing should not include pagination")
	}
}

func TestListAppsHandler_PaginationClamped(t *testing.T) {
	r, mock := newAppTestRouter(t)

	mock.ExpectQuery("SELECT (.+) FROM apps").
		WithArgs(20, 0).
		WillReturnRows(sqlmock.NewRows(appCols))
	mock.ExpectQuery("SELECT COUNT(.+) FROM apps").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/apps?page=-3&per_page=9999", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}
}

// ---------------------------------------------------------------------------
// GetAppHandler
// ---------------------------------------------------------------------------

func TestGetAppHandler_Success(t *testing.T) {
	r, mock := newAppTestRouter(t)

	mock.ExpectQuery("SELECT (.+) FROM apps").
		WithArgs("app-1").
		WillReturnRows(sampleAppRow())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/apps/app-1", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		App map[string]interface{} `json:"app"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response parse error: %v", err)
	}
	if resp.App["name"] != "Zendesk Sync" {
		t.Errorf("name = %v, want Zendesk Sync", resp.App["name"])
	}
	if resp.App["is_active"] != true {
		t.Errorf("is_active = %v, want true", resp.App["is_active"])
	}
}

func TestGetAppHandler_NotFound(t *testing.T) {
	r, mock := newAppTestRouter(t)

	mock.ExpectQuery("SELECT (.+) FROM apps").
		WithArgs("missing").
		WillReturnRows(emptyAppRows())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/apps/missing", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// ---------------------------------------------------------------------------
// CreateAppHandler
// ---------------------------------------------------------------------------

func TestCreateAppHandler_Success(t *testing.T) {
	r, mock := newAppTestRouter(t)

	mock.ExpectQuery("SELECT (.+) FROM organizations").
		WithArgs("org-1").
		WillReturnRows(sampleOrgRow())
	mock.ExpectExec("INSERT INTO apps").
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := bytes.NewBufferString(`{"name": "Zendesk Sync", "organization_id": "org-1"}`)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/apps", body)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		App map[string]interface{} `json:"app"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response parse error: %v", err)
	}
	if resp.App["name"] != "Zendesk Sync" {
		t.Errorf("name = %v, want Zendesk Sync", resp.App["name"])
	}
	if resp.App["is_active"] != true {
		t.Error("new apps should start active")
	}
	if resp.App["id"] == "" {
		t.Error("created app has no id")
	}
}

func TestCreateAppHandler_RecordsActor(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := NewAppHandlers(&config.Config{}, db)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", "admin-1")
		c.Next()
	})
	r.POST("/apps", h.CreateAppHandler())

	mock.ExpectQuery("SELECT (.+) FROM organizations").
		WithArgs("org-1").
		WillReturnRows(sampleOrgRow())
	mock.ExpectExec("INSERT INTO apps").
		WithArgs(sqlmock.AnyArg(), "org-1", "Zendesk Sync", nil, true, "admin-1", "admin-1",
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := bytes.NewBufferString(`{"name": "Zendesk Sync", "organization_id": "org-1"}`)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/apps", body)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		App map[string]interface{} `json:"app"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response parse error: %v", err)
	}
	if resp.App["created_by"] != "admin-1" {
		t.Errorf("created_by = %v, want admin-1", resp.App["created_by"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateAppHandler_UnknownOrganization(t *testing.T) {
	r, mock := newAppTestRouter(t)

	mock.ExpectQuery("SELECT (.+) FROM organizations").
		WithArgs("no-such-org").
		WillReturnRows(sqlmock.NewRows(orgCols))

	body := bytes.NewBufferString(`{"name": "Orphan", "organization_id": "no-such-org"}`)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/apps", body)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCreateAppHandler_MissingName(t *testing.T) {
	r, _ := newAppTestRouter(t)

	body := bytes.NewBufferString(`{"organization_id": "org-1"}`)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/apps", body)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// ---------------------------------------------------------------------------
// UpdateAppHandler
// ---------------------------------------------------------------------------

func TestUpdateAppHandler_Success(t *testing.T) {
	r, mock := newAppTestRouter(t)

	mock.ExpectQuery("SELECT (.+) FROM apps").
		WithArgs("app-1").
		WillReturnRows(sampleAppRow())
	mock.ExpectExec("UPDATE apps").
		WithArgs("app-1", "Renamed App", nil, false, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := bytes.NewBufferString(`{"name": "Renamed App", "is_active": false}`)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPut, "/apps/app-1", body)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		App map[string]interface{} `json:"app"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response parse error: %v", err)
	}
	if resp.App["name"] != "Renamed App" {
		t.Errorf("name = %v, want Renamed App", resp.App["name"])
	}
	if resp.App["is_active"] != false {
		t.Errorf("is_active = %v, want false", resp.App["is_active"])
	}
}

func TestUpdateAppHandler_NotFound(t *testing.T) {
	r, mock := newAppTestRouter(t)

	mock.ExpectQuery("SELECT (.+) FROM apps").
		WithArgs("missing").
		WillReturnRows(emptyAppRows())

	body := bytes.NewBufferString(`{"name": "Renamed"}`)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPut, "/apps/missing", body)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// ---------------------------------------------------------------------------
// DeleteAppHandler
// ---------------------------------------------------------------------------

func TestDeleteAppHandler_Success(t *testing.T) {
	r, mock := newAppTestRouter(t)

	mock.ExpectQuery("SELECT (.+) FROM apps").
		WithArgs("app-1").
		WillReturnRows(sampleAppRow())
	mock.ExpectExec("DELETE FROM apps").
		WithArgs("app-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodDelete, "/apps/app-1", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}
}

func TestDeleteAppHandler_NotFound(t *testing.T) {
	r, mock := newAppTestRouter(t)

	mock.ExpectQuery("SELECT (.+) FROM apps").
		WithArgs("missing").
		WillReturnRows(emptyAppRows())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodDelete, "/apps/missing", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
