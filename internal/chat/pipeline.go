package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/galoberlyn/beezbuddy-be/internal/history"
	"github.com/galoberlyn/beezbuddy-be/internal/knowledge"
	"github.com/galoberlyn/beezbuddy-be/internal/strategy"
	"github.com/galoberlyn/beezbuddy-be/pkg/llm"
	"github.com/galoberlyn/beezbuddy-be/pkg/logging"
)

var (
	// ErrAgentNotFound is returned when the agent does not exist or does
	// not belong to the requested organization.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrMissingHost is returned when a public request carries no host
	// header.
	ErrMissingHost = errors.New("host not found")
	// ErrUnauthorizedDomain is returned when the inbound host is not in
	// the agent's authorized domain set. The message deliberately does not
	// reveal which domains are allowed.
	ErrUnauthorizedDomain = errors.New("unauthorized domain")
	// ErrModelFailure wraps model invocation errors.
	ErrModelFailure = errors.New("model invocation failed")
	// ErrRetrievalFailure wraps embedding and vector search errors.
	ErrRetrievalFailure = errors.New("knowledge retrieval failed")
)

// AgentProfile is the slice of agent state the pipeline needs: identity,
// the owning organization's display name, and the public-chat domain
// allow-list.
type AgentProfile struct {
	ID                string
	OrganizationID    string
	OrganizationName  string
	Name              string
	Persona           string
	AuthorizedDomains []string
}

// AgentDirectory resolves agents within an organization.
type AgentDirectory interface {
	Profile(ctx context.Context, agentID, organizationID string) (*AgentProfile, error)
}

// TurnStore is the slice of the history stores the pipeline uses. The
// first argument is the scoping key: user id for authenticated
// conversations, session id for public ones.
type TurnStore interface {
	Recent(ctx context.Context, key, agentID string, limit int) ([]history.Turn, error)
	Append(ctx context.Context, key, agentID, question, answer string) error
}

// Identity is either an authenticated user or an anonymous widget session.
type Identity struct {
	UserID    string
	SessionID string
}

// AnswerRequest is one question within one agent's tenant scope.
type AnswerRequest struct {
	Question       string
	OrganizationID string
	AgentID        string
	Identity       Identity
	// Host is the inbound host header; only consulted on the public path.
	Host   string
	Public bool
}

// AnswerResult carries the grounded answer.
type AnswerResult struct {
	Answer string
}

// PipelineConfig wires the pipeline's collaborators.
type PipelineConfig struct {
	Agents        AgentDirectory
	Conversations TurnStore
	Sessions      TurnStore
	Strategies    *strategy.Registry
	Prompt        *PromptTemplate
	TopK          int
	HistoryLimit  int
	Production    bool
	Logger        logging.Logger
}

// Pipeline produces grounded, policy-compliant answers under multi-tenant
// isolation. Order within one call: authorization, retrieval, history,
// prompt assembly, model invocation, best-effort persistence.
type Pipeline struct {
	agents        AgentDirectory
	conversations TurnStore
	sessions      TurnStore
	strategies    *strategy.Registry
	prompt        *PromptTemplate
	topK          int
	historyLimit  int
	production    bool
	logger        logging.Logger
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	if cfg.Prompt == nil {
		cfg.Prompt = NewPromptTemplate(DefaultPromptOptions())
	}
	return &Pipeline{
		agents:        cfg.Agents,
		conversations: cfg.Conversations,
		sessions:      cfg.Sessions,
		strategies:    cfg.Strategies,
		prompt:        cfg.Prompt,
		topK:          cfg.TopK,
		historyLimit:  cfg.HistoryLimit,
		production:    cfg.Production,
		logger:        cfg.Logger,
	}
}

// Answer runs the full pipeline for one question.
func (p *Pipeline) Answer(ctx context.Context, req AnswerRequest) (AnswerResult, error) {
	profile, err := p.agents.Profile(ctx, req.AgentID, req.OrganizationID)
	if err != nil {
		return AnswerResult{}, err
	}
	if profile == nil {
		return AnswerResult{}, ErrAgentNotFound
	}

	if req.Public {
		if err := p.authorizeDomain(profile, req.Host); err != nil {
			return AnswerResult{}, err
		}
	}

	// The strategy handle is resolved once and used for the whole request;
	// a concurrent switch cannot change the model/embedding pairing
	// mid-flight.
	st, err := p.strategies.Resolve(ctx)
	if err != nil {
		return AnswerResult{}, err
	}

	searchStart := time.Now()
	chunks, err := p.retrieve(ctx, st, req)
	if err != nil {
		return AnswerResult{}, err
	}
	vectorSearchDuration.Observe(time.Since(searchStart).Seconds())
	vectorSearchResults.Observe(float64(len(chunks)))

	store, key := p.historyFor(req)
	turns, err := store.Recent(ctx, key, req.AgentID, p.historyLimit)
	if err != nil {
		return AnswerResult{}, fmt.Errorf("fetch history: %w", err)
	}

	messages := p.prompt.Render(PromptInput{
		BrandName: profile.OrganizationName,
		Context:   formatContext(chunks),
		History:   history.Transcript(turns),
		Question:  req.Question,
	})

	answer, err := p.invoke(ctx, st, messages)
	if err != nil {
		answersTotal.WithLabelValues(st.Name, "error").Inc()
		return AnswerResult{}, err
	}
	answersTotal.WithLabelValues(st.Name, "ok").Inc()

	// Best-effort append: a failure here is logged but never invalidates
	// the answer already produced.
	if err := store.Append(ctx, key, req.AgentID, req.Question, answer); err != nil {
		p.logger.WithError(err).WithFields(logging.Fields{
			"organization_id": req.OrganizationID,
			"agent_id":        req.AgentID,
		}).Warn("Failed to record conversation turn")
	}

	return AnswerResult{Answer: answer}, nil
}

func (p *Pipeline) authorizeDomain(profile *AgentProfile, host string) error {
	if host == "" {
		return ErrMissingHost
	}
	domain := strings.Split(host, ":")[0]

	for _, authorized := range profile.AuthorizedDomains {
		if authorized == domain {
			return nil
		}
	}

	if p.production {
		domainRejectionsTotal.Inc()
		return ErrUnauthorizedDomain
	}

	p.logger.WithFields(logging.Fields{
		"agent_id": profile.ID,
		"domain":   domain,
	}).Debug("Domain not authorized; allowed outside production")
	return nil
}

func (p *Pipeline) retrieve(ctx context.Context, st *strategy.Strategy, req AnswerRequest) ([]knowledge.Chunk, error) {
	vectors, err := st.Embeddings().Embed(ctx, []string{req.Question})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalFailure, err)
	}

	scope := knowledge.Scope{
		OrganizationID: req.OrganizationID,
		AgentID:        req.AgentID,
	}
	chunks, err := st.Vectors().Search(ctx, scope, vectors[0], p.topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalFailure, err)
	}
	return chunks, nil
}

func (p *Pipeline) invoke(ctx context.Context, st *strategy.Strategy, messages []llm.Message) (string, error) {
	stream, err := st.Provider().Complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelFailure, err)
	}
	answer, err := llm.CollectText(stream)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelFailure, err)
	}
	return strings.TrimSpace(answer), nil
}

func (p *Pipeline) historyFor(req AnswerRequest) (TurnStore, string) {
	if req.Public {
		return p.sessions, req.Identity.SessionID
	}
	return p.conversations, req.Identity.UserID
}

// formatContext concatenates retrieved chunks into the prompt's context
// block. Each chunk gets a stable bracketed header carrying its source
// metadata; the prompt instructs the model to use headers for grounding
// only, never as literal content.
func formatContext(chunks []knowledge.Chunk) string {
	if len(chunks) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		source := ""
		if chunk.Metadata != nil {
			if s, ok := chunk.Metadata["source"].(string); ok {
				source = s
			}
		}
		fmt.Fprintf(&sb, "[%d | source: %s | relevance: %.2f]\n%s", i+1, source, chunk.Similarity, chunk.Text)
	}
	return sb.String()
}
