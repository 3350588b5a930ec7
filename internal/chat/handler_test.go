package chat

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/galoberlyn/beezbuddy-be/pkg/ctxkeys"
	"github.com/galoberlyn/beezbuddy-be/pkg/logging"
)

func setupChatRouter(t *testing.T, pipeline *Pipeline, authed bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	handler := NewHandler(pipeline, logging.NewLoggerWithService("test"))
	router := gin.New()

	group := router.Group("/api/chat")
	if authed {
		group.Use(func(c *gin.Context) {
			c.Set(string(ctxkeys.KeyOrganizationID), "org-1")
			c.Set(string(ctxkeys.KeyUserID), "user-1")
		})
	}
	RegisterRoutes(group, handler)
	RegisterPublicRoutes(router.Group("/api/public/chat"), handler)
	return router
}

func answeringPipeline(t *testing.T, answer string) *Pipeline {
	t.Helper()
	server := modelServer(t, answer)
	return NewPipeline(PipelineConfig{
		Agents:        &fakeDirectory{profile: testProfile()},
		Conversations: &fakeTurnStore{},
		Sessions:      &fakeTurnStore{},
		Strategies:    testRegistry(t, &recordingSearcher{}, server.URL),
		Production:    true,
		Logger:        logging.NewLoggerWithService("test"),
	})
}

func TestAsk(t *testing.T) {
	router := setupChatRouter(t, answeringPipeline(t, "hello there"), true)

	req := httptest.NewRequest(http.MethodPost, "/api/chat/ask",
		strings.NewReader(`{"question":"hi","agentId":"agent-1"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "hello there") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestAskRequiresFields(t *testing.T) {
	router := setupChatRouter(t, answeringPipeline(t, "unused"), true)

	req := httptest.NewRequest(http.MethodPost, "/api/chat/ask",
		strings.NewReader(`{"question":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAskRequiresAuthContext(t *testing.T) {
	router := setupChatRouter(t, answeringPipeline(t, "unused"), false)

	req := httptest.NewRequest(http.MethodPost, "/api/chat/ask",
		strings.NewReader(`{"question":"hi","agentId":"agent-1"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAskRejectsOversizedQuestion(t *testing.T) {
	router := setupChatRouter(t, answeringPipeline(t, "unused"), true)

	question := strings.Repeat("a", maxQuestionRunes+1)
	req := httptest.NewRequest(http.MethodPost, "/api/chat/ask",
		strings.NewReader(`{"question":"`+question+`","agentId":"agent-1"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestPublicAsk(t *testing.T) {
	router := setupChatRouter(t, answeringPipeline(t, "welcome"), false)

	req := httptest.NewRequest(http.MethodPost, "/api/public/chat/ask",
		strings.NewReader(`{"question":"hi","agentId":"agent-1","organizationId":"org-1","sessionId":"session-1"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Host = "acme.example:3000"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPublicAskUnauthorizedDomain(t *testing.T) {
	router := setupChatRouter(t, answeringPipeline(t, "unused"), false)

	req := httptest.NewRequest(http.MethodPost, "/api/public/chat/ask",
		strings.NewReader(`{"question":"hi","agentId":"agent-1","organizationId":"org-1","sessionId":"session-1"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Host = "evil.example"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
	// The error body never reveals the allow-list.
	if strings.Contains(w.Body.String(), "acme.example") {
		t.Fatalf("response leaks authorized domains: %s", w.Body.String())
	}
}

func TestPublicAskAgentNotFound(t *testing.T) {
	router := setupChatRouter(t, answeringPipeline(t, "unused"), false)

	req := httptest.NewRequest(http.MethodPost, "/api/public/chat/ask",
		strings.NewReader(`{"question":"hi","agentId":"ghost","organizationId":"org-1","sessionId":"session-1"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Host = "acme.example"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}
