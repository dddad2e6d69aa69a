package public

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/resolveit/resolveit/internal/auth"
	"github.com/resolveit/resolveit/internal/db/models"
	"github.com/resolveit/resolveit/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var ticketCols = []string{
	"id", "organization_id", "app_id", "subject", "body", "status", "created_at", "updated_at",
}

func testPrincipal() *auth.Principal {
	now := time.Now()
	return &auth.Principal{
		App: &models.App{
			ID:             "app-1",
			OrganizationID: "org-1",
			Name:           "Zendesk Sync",
			IsActive:       true,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
		APIKey: &models.AppAPIKey{
			ID:        "key-1",
			AppID:     "app-1",
			Name:      "CI Key",
			KeyPrefix: "rsk_ab12",
			IsActive:  true,
			CreatedAt: now,
		},
	}
}

// newTicketTestRouter wires the handlers behind a stand-in for the API key
// gateway. A nil principal simulates a request that skipped the middleware.
func newTicketTestRouter(t *testing.T, principal *auth.Principal) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := NewTicketHandlers(sqlx.NewDb(db, "postgres"))
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if principal != nil {
			c.Set(middleware.PrincipalKey, principal)
		}
		c.Next()
	})
	r.GET("/tickets", h.ListTicketsHandler())
	r.GET("/tickets/:id", h.GetTicketHandler())
	r.POST("/tickets", h.CreateTicketHandler())
	r.POST("/tickets/:id/close", h.CloseTicketHandler())
	return r, mock
}

// ---------------------------------------------------------------------------
// ListTicketsHandler
// ---------------------------------------------------------------------------

func TestListTicketsHandler_Success(t *testing.T) {
	r, mock := newTicketTestRouter(t, testPrincipal())

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM tickets").
		WithArgs("org-1", 20, 0).
		WillReturnRows(sqlmock.NewRows(ticketCols).
			AddRow("t-2", "org-1", "app-1", "Printer on fire", "Please advise", "open", now, now).
			AddRow("t-1", "org-1", nil, "Login broken", "Cannot sign in", "closed", now, now))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/tickets", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Tickets    []map[string]interface{} `json:"tickets"`
		Pagination map[string]interface{}   `json:"pagination"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response parse error: %v", err)
	}
	if len(resp.Tickets) != 2 {
		t.Fatalf("len(tickets) = %d, want 2", len(resp.Tickets))
	}
	if resp.Tickets[0]["subject"] != "Printer on fire" {
		t.Errorf("subject = %v, want Printer on fire", resp.Tickets[0]["subject"])
	}
	if resp.Pagination["page"] != float64(1) {
		t.Errorf("pagination.page = %v, want 1", resp.Pagination["page"])
	}
}

func TestListTicketsHandler_Pagination(t *testing.T) {
	r, mock := newTicketTestRouter(t, testPrincipal())

	mock.ExpectQuery("SELECT (.+) FROM tickets").
		WithArgs("org-1", 50, 100).
		WillReturnRows(sqlmock.NewRows(ticketCols))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/tickets?page=3&per_page=50", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}
}

func TestListTicketsHandler_NoPrincipal(t *testing.T) {
	r, _ := newTicketTestRouter(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/tickets", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestListTicketsHandler_DatabaseError(t *testing.T) {
	r, mock := newTicketTestRouter(t, testPrincipal())

	mock.ExpectQuery("SELECT (.+) FROM tickets").
		WillReturnError(errors.New("connection refused"))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/tickets", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

// ---------------------------------------------------------------------------
// GetTicketHandler
// ---------------------------------------------------------------------------

func TestGetTicketHandler_Success(t *testing.T) {
	r, mock := newTicketTestRouter(t, testPrincipal())

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM tickets").
		WithArgs("t-1", "org-1").
		WillReturnRows(sqlmock.NewRows(ticketCols).
			AddRow("t-1", "org-1", "app-1", "Login broken", "Cannot sign in", "open", now, now))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/tickets/t-1", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Ticket map[string]interface{} `json:"ticket"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response parse error: %v", err)
	}
	if resp.Ticket["subject"] != "Login broken" {
		t.Errorf("subject = %v, want Login broken", resp.Ticket["subject"])
	}
}

func TestGetTicketHandler_OtherOrganization(t *testing.T) {
	r, mock := newTicketTestRouter(t, testPrincipal())

	// Ticket exists under another organization: scoped query finds nothing
	mock.ExpectQuery("SELECT (.+) FROM tickets").
		WithArgs("t-other", "org-1").
		WillReturnRows(sqlmock.NewRows(ticketCols))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/tickets/t-other", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGetTicketHandler_NoPrincipal(t *testing.T) {
	r, _ := newTicketTestRouter(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/tickets/t-1", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// ---------------------------------------------------------------------------
// CreateTicketHandler
// ---------------------------------------------------------------------------

func TestCreateTicketHandler_Success(t *testing.T) {
	r, mock := newTicketTestRouter(t, testPrincipal())

	mock.ExpectExec("INSERT INTO tickets").
		WithArgs(sqlmock.AnyArg(), "org-1", "app-1", "Printer on fire", "Please advise", "open",
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := bytes.NewBufferString(`{"subject": "Printer on fire", "body": "Please advise"}`)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/tickets", body)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Ticket map[string]interface{} `json:"ticket"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response parse error: %v", err)
	}
	if resp.Ticket["status"] != "open" {
		t.Errorf("status = %v, want open", resp.Ticket["status"])
	}
	if resp.Ticket["organization_id"] != "org-1" {
		t.Errorf("organization_id = %v, want org-1", resp.Ticket["organization_id"])
	}
	if resp.Ticket["app_id"] != "app-1" {
		t.Errorf("app_id = %v, want app-1", resp.Ticket["app_id"])
	}
	if resp.Ticket["id"] == "" {
		t.Error("created ticket has no id")
	}
}

func TestCreateTicketHandler_InvalidRequest(t *testing.T) {
	r, _ := newTicketTestRouter(t, testPrincipal())

	for name, body := range map[string]string{
		"missing subject": `{"body": "text"}`,
		"missing body":    `{"subject": "help"}`,
		"not json":        `subject=help`,
	} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/tickets", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, w.Code)
		}
	}
}

func TestCreateTicketHandler_NoPrincipal(t *testing.T) {
	r, _ := newTicketTestRouter(t, nil)

	body := bytes.NewBufferString(`{"subject": "help", "body": "text"}`)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/tickets", body)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// ---------------------------------------------------------------------------
// CloseTicketHandler
// ---------------------------------------------------------------------------

func TestCloseTicketHandler_Success(t *testing.T) {
	r, mock := newTicketTestRouter(t, testPrincipal())

	mock.ExpectExec("UPDATE tickets").
		WithArgs("t-1", "org-1", "closed", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/tickets/t-1/close", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}
}

func TestCloseTicketHandler_OtherOrganization(t *testing.T) {
	r, mock := newTicketTestRouter(t, testPrincipal())

	mock.ExpectExec("UPDATE tickets").
		WithArgs("t-other", "org-1", "closed", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/tickets/t-other/close", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestCloseTicketHandler_NoPrincipal(t *testing.T) {
	r, _ := newTicketTestRouter(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/tickets/t-1/close", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
