package agent

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/galoberlyn/beezbuddy-be/pkg/ctxkeys"
	"github.com/galoberlyn/beezbuddy-be/pkg/logging"
)

func setupAgentRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := NewHandler(HandlerConfig{
		Store:  NewStore(db),
		Logger: logging.NewLoggerWithService("test"),
	})
	router := gin.New()
	group := router.Group("/api/agents", func(c *gin.Context) {
		c.Set(string(ctxkeys.KeyOrganizationID), "org-1")
	})
	h.RegisterRoutes(group)
	return router, mock
}

func TestGetIncludesStoredDocuments(t *testing.T) {
	router, mock := setupAgentRouter(t)

	mock.ExpectQuery("SELECT id, organization_id, name").
		WithArgs("agent-1", "org-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "organization_id", "name", "persona", "knowledge_base_type", "avatar_key", "created_at", "updated_at",
		}).AddRow("agent-1", "org-1", "Support", "helpful", "documents", "", now(), now()))
	mock.ExpectQuery("SELECT domain FROM beezbuddy.agent_authorized_domains").
		WithArgs("agent-1").
		WillReturnRows(sqlmock.NewRows([]string{"domain"}).AddRow("acme.example"))
	mock.ExpectQuery("SELECT url, is_spa").
		WithArgs("agent-1").
		WillReturnRows(sqlmock.NewRows([]string{"url", "is_spa"}))
	mock.ExpectQuery("SELECT id, agent_id, object_key").
		WithArgs("agent-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "agent_id", "object_key", "filename", "created_at"}).
			AddRow("doc-1", "agent-1", "org-1/documents/faq.pdf", "faq.pdf", now()))

	req := httptest.NewRequest(http.MethodGet, "/api/agents/agent-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var a Agent
	if err := json.Unmarshal(w.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(a.Documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(a.Documents))
	}
	if a.Documents[0].Filename != "faq.pdf" {
		t.Fatalf("expected filename faq.pdf, got %q", a.Documents[0].Filename)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetSkipsDocumentLookupForLinkAgents(t *testing.T) {
	router, mock := setupAgentRouter(t)

	mock.ExpectQuery("SELECT id, organization_id, name").
		WithArgs("agent-2", "org-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "organization_id", "name", "persona", "knowledge_base_type", "avatar_key", "created_at", "updated_at",
		}).AddRow("agent-2", "org-1", "Docs", "terse", "links", "", now(), now()))
	mock.ExpectQuery("SELECT domain FROM beezbuddy.agent_authorized_domains").
		WithArgs("agent-2").
		WillReturnRows(sqlmock.NewRows([]string{"domain"}))
	mock.ExpectQuery("SELECT url, is_spa").
		WithArgs("agent-2").
		WillReturnRows(sqlmock.NewRows([]string{"url", "is_spa"}).AddRow("https://acme.example/docs", false))

	req := httptest.NewRequest(http.MethodGet, "/api/agents/agent-2", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var a Agent
	if err := json.Unmarshal(w.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(a.Documents) != 0 {
		t.Fatalf("expected no documents, got %d", len(a.Documents))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
