package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/galoberlyn/beezbuddy-be/internal/history"
	"github.com/galoberlyn/beezbuddy-be/internal/knowledge"
	"github.com/galoberlyn/beezbuddy-be/internal/strategy"
	"github.com/galoberlyn/beezbuddy-be/pkg/llm"
	"github.com/galoberlyn/beezbuddy-be/pkg/logging"
)

type fakeDirectory struct {
	profile *AgentProfile
}

func (f *fakeDirectory) Profile(ctx context.Context, agentID, organizationID string) (*AgentProfile, error) {
	if f.profile == nil || f.profile.ID != agentID || f.profile.OrganizationID != organizationID {
		return nil, nil
	}
	return f.profile, nil
}

type fakeTurnStore struct {
	mu       sync.Mutex
	turns    []history.Turn
	appends  int
	appendFn func() error
}

func (f *fakeTurnStore) Recent(ctx context.Context, key, agentID string, limit int) ([]history.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.turns, nil
}

func (f *fakeTurnStore) Append(ctx context.Context, key, agentID, question, answer string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendFn != nil {
		if err := f.appendFn(); err != nil {
			return err
		}
	}
	f.appends++
	f.turns = append([]history.Turn{{AgentID: agentID, Question: question, Answer: answer}}, f.turns...)
	return nil
}

type recordingSearcher struct {
	mu     sync.Mutex
	scopes []knowledge.Scope
	chunks []knowledge.Chunk
}

func (r *recordingSearcher) Search(ctx context.Context, scope knowledge.Scope, embedding []float32, limit int) ([]knowledge.Chunk, error) {
	if err := scopeError(scope); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scopes = append(r.scopes, scope)
	return r.chunks, nil
}

func (r *recordingSearcher) searchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.scopes)
}

func scopeError(scope knowledge.Scope) error {
	if scope.OrganizationID == "" || scope.AgentID == "" {
		return errors.New("scope is incomplete")
	}
	return nil
}

// modelServer fakes the local model runtime: the embedding endpoint used by
// the readiness probe and retrieval, and the streaming chat endpoint.
func modelServer(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/embeddings", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"embedding":[0.1,0.2,0.3]}`)
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", answer)
		fmt.Fprint(w, "data: [DONE]\n\n")
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testRegistry(t *testing.T, searcher knowledge.Searcher, serverURL string) *strategy.Registry {
	t.Helper()
	registry := strategy.NewRegistry(searcher, false, logging.NewLoggerWithService("test"))
	_, err := registry.Switch(strategy.Ollama, strategy.Config{
		Chat:      llm.Config{Model: "llama3.2:latest", APIURL: serverURL},
		Embedding: llm.Config{Model: "nomic-embed-text:v1.5", APIURL: serverURL},
	})
	if err != nil {
		t.Fatalf("switch strategy: %v", err)
	}
	return registry
}

func testProfile() *AgentProfile {
	return &AgentProfile{
		ID:                "agent-1",
		OrganizationID:    "org-1",
		OrganizationName:  "Acme",
		Name:              "Support Bot",
		AuthorizedDomains: []string{"acme.example"},
	}
}

func TestPipelineAnswer(t *testing.T) {
	server := modelServer(t, "Refunds take 5 business days.")
	searcher := &recordingSearcher{chunks: []knowledge.Chunk{
		{ID: "c1", Text: "Refunds are processed within 5 business days.", Similarity: 0.9},
	}}
	store := &fakeTurnStore{}

	pipeline := NewPipeline(PipelineConfig{
		Agents:        &fakeDirectory{profile: testProfile()},
		Conversations: store,
		Sessions:      &fakeTurnStore{},
		Strategies:    testRegistry(t, searcher, server.URL),
		Logger:        logging.NewLoggerWithService("test"),
	})

	result, err := pipeline.Answer(context.Background(), AnswerRequest{
		Question:       "How long do refunds take?",
		OrganizationID: "org-1",
		AgentID:        "agent-1",
		Identity:       Identity{UserID: "user-1"},
	})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if result.Answer != "Refunds take 5 business days." {
		t.Fatalf("unexpected answer: %q", result.Answer)
	}

	if len(searcher.scopes) != 1 {
		t.Fatalf("expected 1 search, got %d", len(searcher.scopes))
	}
	scope := searcher.scopes[0]
	if scope.OrganizationID != "org-1" || scope.AgentID != "agent-1" {
		t.Fatalf("search ran with wrong scope: %+v", scope)
	}

	if store.appends != 1 {
		t.Fatalf("expected 1 appended turn, got %d", store.appends)
	}
}

func TestPipelineAgentNotFound(t *testing.T) {
	server := modelServer(t, "unused")
	searcher := &recordingSearcher{}

	pipeline := NewPipeline(PipelineConfig{
		Agents:        &fakeDirectory{},
		Conversations: &fakeTurnStore{},
		Sessions:      &fakeTurnStore{},
		Strategies:    testRegistry(t, searcher, server.URL),
		Logger:        logging.NewLoggerWithService("test"),
	})

	_, err := pipeline.Answer(context.Background(), AnswerRequest{
		Question:       "hello",
		OrganizationID: "org-1",
		AgentID:        "missing",
		Identity:       Identity{UserID: "user-1"},
	})
	if !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("expected ErrAgentNotFound, got %v", err)
	}
	if searcher.searchCount() != 0 {
		t.Fatal("search must not run for unknown agents")
	}
}

func TestPipelinePublicMissingHost(t *testing.T) {
	server := modelServer(t, "unused")
	searcher := &recordingSearcher{}

	pipeline := NewPipeline(PipelineConfig{
		Agents:        &fakeDirectory{profile: testProfile()},
		Conversations: &fakeTurnStore{},
		Sessions:      &fakeTurnStore{},
		Strategies:    testRegistry(t, searcher, server.URL),
		Production:    true,
		Logger:        logging.NewLoggerWithService("test"),
	})

	_, err := pipeline.Answer(context.Background(), AnswerRequest{
		Question:       "hello",
		OrganizationID: "org-1",
		AgentID:        "agent-1",
		Identity:       Identity{SessionID: "session-1"},
		Public:         true,
	})
	if !errors.Is(err, ErrMissingHost) {
		t.Fatalf("expected ErrMissingHost, got %v", err)
	}
}

func TestPipelinePublicUnauthorizedDomain(t *testing.T) {
	server := modelServer(t, "unused")
	searcher := &recordingSearcher{}

	pipeline := NewPipeline(PipelineConfig{
		Agents:        &fakeDirectory{profile: testProfile()},
		Conversations: &fakeTurnStore{},
		Sessions:      &fakeTurnStore{},
		Strategies:    testRegistry(t, searcher, server.URL),
		Production:    true,
		Logger:        logging.NewLoggerWithService("test"),
	})

	_, err := pipeline.Answer(context.Background(), AnswerRequest{
		Question:       "hello",
		OrganizationID: "org-1",
		AgentID:        "agent-1",
		Identity:       Identity{SessionID: "session-1"},
		Host:           "evil.example:443",
		Public:         true,
	})
	if !errors.Is(err, ErrUnauthorizedDomain) {
		t.Fatalf("expected ErrUnauthorizedDomain, got %v", err)
	}
	if searcher.searchCount() != 0 {
		t.Fatal("search must not run for unauthorized domains")
	}
}

func TestPipelinePublicAuthorizedDomainStripsPort(t *testing.T) {
	server := modelServer(t, "welcome")
	searcher := &recordingSearcher{}
	sessions := &fakeTurnStore{}

	pipeline := NewPipeline(PipelineConfig{
		Agents:        &fakeDirectory{profile: testProfile()},
		Conversations: &fakeTurnStore{},
		Sessions:      sessions,
		Strategies:    testRegistry(t, searcher, server.URL),
		Production:    true,
		Logger:        logging.NewLoggerWithService("test"),
	})

	result, err := pipeline.Answer(context.Background(), AnswerRequest{
		Question:       "hello",
		OrganizationID: "org-1",
		AgentID:        "agent-1",
		Identity:       Identity{SessionID: "session-1"},
		Host:           "acme.example:8443",
		Public:         true,
	})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if result.Answer != "welcome" {
		t.Fatalf("unexpected answer: %q", result.Answer)
	}
	if sessions.appends != 1 {
		t.Fatalf("expected session turn appended, got %d", sessions.appends)
	}
}

func TestPipelineAppendFailureDoesNotLoseAnswer(t *testing.T) {
	server := modelServer(t, "still answered")
	searcher := &recordingSearcher{}
	store := &fakeTurnStore{appendFn: func() error { return errors.New("db down") }}

	pipeline := NewPipeline(PipelineConfig{
		Agents:        &fakeDirectory{profile: testProfile()},
		Conversations: store,
		Sessions:      &fakeTurnStore{},
		Strategies:    testRegistry(t, searcher, server.URL),
		Logger:        logging.NewLoggerWithService("test"),
	})

	result, err := pipeline.Answer(context.Background(), AnswerRequest{
		Question:       "hello",
		OrganizationID: "org-1",
		AgentID:        "agent-1",
		Identity:       Identity{UserID: "user-1"},
	})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if result.Answer != "still answered" {
		t.Fatalf("unexpected answer: %q", result.Answer)
	}
}

func TestPipelineSessionHistoryRoundTrip(t *testing.T) {
	server := modelServer(t, "second answer")
	searcher := &recordingSearcher{}
	sessions := &fakeTurnStore{turns: []history.Turn{
		{AgentID: "agent-1", Question: "first question", Answer: "first answer"},
	}}

	pipeline := NewPipeline(PipelineConfig{
		Agents:        &fakeDirectory{profile: testProfile()},
		Conversations: &fakeTurnStore{},
		Sessions:      sessions,
		Strategies:    testRegistry(t, searcher, server.URL),
		Logger:        logging.NewLoggerWithService("test"),
	})

	_, err := pipeline.Answer(context.Background(), AnswerRequest{
		Question:       "second question",
		OrganizationID: "org-1",
		AgentID:        "agent-1",
		Identity:       Identity{SessionID: "session-1"},
		Host:           "acme.example",
		Public:         true,
	})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}

	if len(sessions.turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(sessions.turns))
	}
	// Newest first, matching the store contract.
	if sessions.turns[0].Question != "second question" {
		t.Fatalf("expected new turn first, got %q", sessions.turns[0].Question)
	}
}
